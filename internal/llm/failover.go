// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Manager walks the provider registry in priority order for each request:
// INIT -> TRYING(provider_i) -> SUCCESS | TRYING(provider_i+1) | EXHAUSTED.
// Consecutive-failure counts are recorded for observability; they never
// reorder the registry.
type Manager struct {
	maxSwitches int
	logger      *slog.Logger

	mu      sync.Mutex
	entries []*Entry // sorted by priority, lower first
}

// NewManager creates a failover manager over the registry entries
func NewManager(entries []*Entry, maxSwitchesPerRequest int, logger *slog.Logger) *Manager {
	if maxSwitchesPerRequest < 1 {
		maxSwitchesPerRequest = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Config.Priority < sorted[j].Config.Priority
	})

	return &Manager{
		maxSwitches: maxSwitchesPerRequest,
		logger:      logger.With("component", "llm"),
		entries:     sorted,
	}
}

// Generate tries providers in priority order until one succeeds or the
// switch budget is spent. Each provider gets 1 + retry_attempts tries
// before the manager switches; a timeout failure counts like any other
// provider failure. All-failed returns ErrExhausted.
func (m *Manager) Generate(ctx context.Context, req Request) (string, error) {
	attempts := 0
	var lastErr error

	for _, entry := range m.snapshot() {
		if !entry.Config.Enabled {
			continue
		}
		if attempts >= m.maxSwitches {
			break
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrExhausted, ctx.Err())
		}
		attempts++

		tries := 1 + entry.Config.RetryAttempts
		for try := 1; try <= tries; try++ {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %v", ErrExhausted, ctx.Err())
			}

			started := time.Now()
			text, err := entry.Provider.Call(ctx, req)
			latency := time.Since(started)
			m.record(entry, err == nil, latency)

			if err == nil {
				return text, nil
			}
			lastErr = err
			m.logger.Warn("provider call failed",
				"provider", entry.Provider.Name(),
				"try", try,
				"tries", tries,
				"latency", latency,
				"error", err)
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: last error: %v", ErrExhausted, lastErr)
	}
	return "", fmt.Errorf("%w: no enabled providers", ErrExhausted)
}

// Stats reports per-provider runtime state, in priority order
func (m *Manager) Stats() []ProviderStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ProviderStats, 0, len(m.entries))
	for _, e := range m.entries {
		stats = append(stats, ProviderStats{
			Name:                e.Config.Name,
			Priority:            e.Config.Priority,
			Enabled:             e.Config.Enabled,
			ConsecutiveFailures: e.ConsecutiveFailures,
			LastLatency:         e.LastLatency,
		})
	}
	return stats
}

// ProviderStats is an observability snapshot of one registry entry
type ProviderStats struct {
	Name                string
	Priority            int
	Enabled             bool
	ConsecutiveFailures int
	LastLatency         time.Duration
}

func (m *Manager) snapshot() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Manager) record(entry *Entry, ok bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.LastLatency = latency
	if ok {
		entry.ConsecutiveFailures = 0
	} else {
		entry.ConsecutiveFailures++
	}
}
