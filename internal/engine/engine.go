// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/diary"
	"github.com/mochibot/kokoro/internal/emotion"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/journal"
	"github.com/mochibot/kokoro/internal/trigger"
	"gorm.io/gorm"
)

// Result is the outcome of processing one event. Entry is nil when the
// event was ineligible; Decision.Reason says why.
type Result struct {
	Decision trigger.Decision
	Profile  *database.EmotionProfile
	Entry    *diary.Entry
}

// Engine runs the full event flow: validation, trigger evaluation,
// emotion delta, content generation, persistence, journal append.
type Engine struct {
	tables    *config.Tables
	evaluator *trigger.Evaluator
	ledger    *emotion.Ledger
	pipeline  *diary.Pipeline
	db        *gorm.DB
	journal   *journal.Journal // nil when the archive is disabled
	logger    *slog.Logger

	// llmCtx is cancelled on shutdown so in-flight LLM calls are
	// abandoned; events then complete on the fallback path.
	llmCtx    context.Context
	cancelLLM context.CancelFunc
	wg        sync.WaitGroup
}

// New wires an engine from its collaborators
func New(tables *config.Tables, evaluator *trigger.Evaluator, ledger *emotion.Ledger, pipeline *diary.Pipeline, db *gorm.DB, jnl *journal.Journal, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	llmCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tables:    tables,
		evaluator: evaluator,
		ledger:    ledger,
		pipeline:  pipeline,
		db:        db,
		journal:   jnl,
		logger:    logger.With("component", "engine"),
		llmCtx:    llmCtx,
		cancelLLM: cancel,
	}
}

// Process handles one event synchronously. Malformed descriptors and
// unknown entities are the caller's problem; everything downstream of an
// eligible decision cannot fail, so a reserved quota slot always becomes
// a diary entry.
func (e *Engine) Process(ctx context.Context, ev *event.Descriptor) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	// Resolve the entity before evaluation so an unknown principal can
	// never burn a reserved quota slot.
	profile, err := e.ledger.Get(ev.PrincipalID)
	if err != nil {
		return nil, err
	}

	decision, err := e.evaluator.Evaluate(ev)
	if err != nil {
		return nil, fmt.Errorf("trigger evaluation failed: %w", err)
	}
	if !decision.Eligible {
		e.logger.Debug("event not eligible",
			"event", ev.EventName, "principal", ev.PrincipalID, "reason", decision.Reason)
		return &Result{Decision: decision, Profile: profile}, nil
	}

	cfg := e.tables.EventTypeByName(ev.EventName)
	profile, err = e.ledger.ApplyDelta(ctx, ev.PrincipalID, cfg)
	if err != nil {
		return nil, err
	}

	entry, err := e.pipeline.Generate(e.llmCtx, ev, profile, decision.Sync)
	if err != nil {
		// Only registry misuse reaches here; generation itself cannot fail.
		return nil, err
	}

	if err := e.db.Create(entry.ToModel()).Error; err != nil {
		return nil, fmt.Errorf("failed to persist diary entry: %w", err)
	}

	if e.journal != nil {
		if err := e.journal.Append(entry); err != nil {
			// The archive is best-effort; the entry is already persisted.
			e.logger.Warn("journal append failed", "entry", entry.ID, "error", err)
		}
	}

	e.logger.Info("diary entry created",
		"entry", entry.ID, "event", ev.EventName,
		"provenance", entry.Provenance, "principal", ev.PrincipalID)

	return &Result{Decision: decision, Profile: profile, Entry: entry}, nil
}

// Submit processes an event on its own goroutine. Errors are logged;
// producers that need the outcome use Process directly.
func (e *Engine) Submit(ev *event.Descriptor) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.Process(context.Background(), ev); err != nil {
			e.logger.Error("event processing failed",
				"event", ev.EventName, "principal", ev.PrincipalID, "error", err)
		}
	}()
}

// ListDiaries returns the persisted entries for one calendar day
func (e *Engine) ListDiaries(day time.Time) ([]*diary.Entry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var rows []database.DiaryEntry
	err := e.db.Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}

	entries := make([]*diary.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, diary.FromModel(&rows[i]))
	}
	return entries, nil
}

// Profile returns the current emotion profile for an entity
func (e *Engine) Profile(entityID string) (*database.EmotionProfile, error) {
	return e.ledger.Get(entityID)
}

// Close abandons in-flight LLM calls and waits for running events to
// finish their fallback path, up to the deadline.
func (e *Engine) Close(timeout time.Duration) error {
	e.cancelLLM()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
}
