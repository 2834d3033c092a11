// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package quota

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mochibot/kokoro/internal/database"
	"gorm.io/gorm"
)

// Rejection reasons returned by TryReserve
const (
	ReasonExhausted     = "daily quota exhausted"
	ReasonTypeCompleted = "event type already claimed today"
)

// Clock supplies the current time; injectable for tests
type Clock func() time.Time

// Tracker owns the current day's diary budget. All reservation and
// rollover operations share one mutex so the check-and-increment is atomic
// system-wide.
type Tracker struct {
	db     *gorm.DB
	rng    *rand.Rand
	clock  Clock
	logger *slog.Logger

	minDaily int
	maxDaily int

	mu        sync.Mutex
	date      string
	total     int
	used      int
	completed map[string]bool
}

// NewTracker creates a quota tracker. rng and clock are injectable; nil
// selects time-seeded rand and time.Now.
func NewTracker(db *gorm.DB, minDaily, maxDaily int, rng *rand.Rand, clock Clock, logger *slog.Logger) (*Tracker, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		db:       db,
		rng:      rng,
		clock:    clock,
		logger:   logger.With("component", "quota"),
		minDaily: minDaily,
		maxDaily: maxDaily,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.loadOrRoll(dateKey(clock())); err != nil {
		return nil, err
	}
	return t, nil
}

func dateKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// TryReserve atomically claims one diary slot for the given event type.
// It returns (true, "") on success. A failed reservation is a normal
// ineligible outcome, not an error. Reservations are never refunded.
func (t *Tracker) TryReserve(eventType string) (bool, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rollIfNeededLocked(); err != nil {
		return false, "", err
	}

	if t.used >= t.total {
		return false, ReasonExhausted, nil
	}
	if t.completed[eventType] {
		return false, ReasonTypeCompleted, nil
	}

	t.used++
	t.completed[eventType] = true
	if err := t.persistLocked(); err != nil {
		// Roll the in-memory claim back so state matches the store.
		t.used--
		delete(t.completed, eventType)
		return false, "", err
	}

	return true, "", nil
}

// Peek reports whether a reservation for the event type would currently
// succeed, without claiming anything.
func (t *Tracker) Peek(eventType string) (bool, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rollIfNeededLocked(); err != nil {
		return false, "", err
	}
	if t.used >= t.total {
		return false, ReasonExhausted, nil
	}
	if t.completed[eventType] {
		return false, ReasonTypeCompleted, nil
	}
	return true, "", nil
}

// RollIfNeeded rolls to a fresh day when the clock has crossed midnight.
// Called by the scheduler; reservations also roll inline.
func (t *Tracker) RollIfNeeded() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollIfNeededLocked()
}

// Snapshot returns the current day's state
func (t *Tracker) Snapshot() (date string, total, used int, completed []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	completed = make([]string, 0, len(t.completed))
	for et := range t.completed {
		completed = append(completed, et)
	}
	return t.date, t.total, t.used, completed
}

func (t *Tracker) rollIfNeededLocked() error {
	today := dateKey(t.clock())
	if today == t.date {
		return nil
	}
	return t.loadOrRoll(today)
}

// loadOrRoll resumes a persisted day or draws a fresh budget for a new one
func (t *Tracker) loadOrRoll(date string) error {
	var row database.DailyQuota
	err := t.db.Where("date = ?", date).First(&row).Error
	switch {
	case err == nil:
		t.date = row.Date
		t.total = row.TotalQuota
		t.used = row.CurrentCount
		t.completed = splitTypes(row.CompletedTypes)
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		t.date = date
		t.total = t.drawTotal()
		t.used = 0
		t.completed = make(map[string]bool)
		if err := t.persistLocked(); err != nil {
			return err
		}
		t.logger.Info("daily quota rolled", "date", date, "total", t.total)
		return nil

	default:
		return fmt.Errorf("failed to load daily quota: %w", err)
	}
}

// drawTotal draws the day's budget uniformly from [minDaily, maxDaily]
func (t *Tracker) drawTotal() int {
	if t.maxDaily <= t.minDaily {
		return t.minDaily
	}
	return t.minDaily + t.rng.Intn(t.maxDaily-t.minDaily+1)
}

func (t *Tracker) persistLocked() error {
	types := make([]string, 0, len(t.completed))
	for et := range t.completed {
		types = append(types, et)
	}

	row := database.DailyQuota{
		Date:           t.date,
		TotalQuota:     t.total,
		CurrentCount:   t.used,
		CompletedTypes: strings.Join(types, ","),
	}

	err := t.db.Assign(map[string]interface{}{
		"total_quota":     row.TotalQuota,
		"current_count":   row.CurrentCount,
		"completed_types": row.CompletedTypes,
	}).FirstOrCreate(&database.DailyQuota{}, database.DailyQuota{Date: t.date}).Error
	if err != nil {
		return fmt.Errorf("failed to persist daily quota: %w", err)
	}
	return nil
}

func splitTypes(s string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out[part] = true
		}
	}
	return out
}
