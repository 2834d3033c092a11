// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"log/slog"
	"time"

	"github.com/mochibot/kokoro/internal/quota"
)

// Scheduler rolls the daily diary quota over at local midnight. The
// tracker also rolls lazily on use; the scheduler just keeps an idle
// process from carrying yesterday's budget into today.
type Scheduler struct {
	tracker  *quota.Tracker
	interval time.Duration
	logger   *slog.Logger
	stopChan chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(tracker *quota.Tracker, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tracker:  tracker,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		stopChan: make(chan bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := s.tracker.RollIfNeeded(); err != nil {
					s.logger.Error("quota rollover failed", "error", err)
				}
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopChan <- true
}
