// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package diary

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mochibot/kokoro/internal/config"
	"github.com/mochibot/kokoro/internal/database"
	"github.com/mochibot/kokoro/internal/event"
	"github.com/mochibot/kokoro/internal/llm"
	"github.com/mochibot/kokoro/internal/trigger"
)

// Generator is the text-generation collaborator (the failover manager in
// production, a stub in tests).
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// generatorKind identifies which generation path an event type uses
type generatorKind int

const (
	generatorStandard generatorKind = iota
	generatorSync
)

// Pipeline turns eligible events into diary entries. The primary path
// asks the LLM failover manager; anything that fails validation lands on
// the deterministic fallback tables, so Generate never fails.
type Pipeline struct {
	tables    *config.Tables
	generator Generator // nil disables the LLM path entirely
	registry  map[string]generatorKind
	timeout   time.Duration
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPipeline builds the pipeline and its event-name registry. The
// registry is closed and validated exhaustively: every configured event
// type has a generator identity and a fallback table behind it.
func NewPipeline(tables *config.Tables, generator Generator, timeout time.Duration, rng *rand.Rand, logger *slog.Logger) (*Pipeline, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	registry := make(map[string]generatorKind, len(tables.EventTypes))
	for name, ec := range tables.EventTypes {
		if ec.Synchronization {
			registry[name] = generatorSync
			continue
		}
		if len(tables.Fallback.Events[name]) == 0 {
			return nil, fmt.Errorf("event '%s' has no fallback table", name)
		}
		registry[name] = generatorStandard
	}

	return &Pipeline{
		tables:    tables,
		generator: generator,
		registry:  registry,
		timeout:   timeout,
		logger:    logger.With("component", "diary"),
		rng:       rng,
	}, nil
}

// Generate produces a diary entry for an eligible event. It cannot fail:
// when the LLM path is unavailable or produces invalid output, the
// fallback tables answer instead. match is non-nil for synchronization
// events.
func (p *Pipeline) Generate(ctx context.Context, ev *event.Descriptor, profile *database.EmotionProfile, match *trigger.SyncMatch) (*Entry, error) {
	kind, ok := p.registry[ev.EventName]
	if !ok {
		return nil, fmt.Errorf("no generator registered for event '%s'", ev.EventName)
	}
	if kind == generatorSync && match == nil {
		return nil, fmt.Errorf("synchronization event '%s' without a confirmed match", ev.EventName)
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		PrincipalID: ev.PrincipalID,
		Timestamp:   ev.Timestamp,
		EventType:   ev.EventType,
		EventName:   ev.EventName,
	}

	if p.generator == nil {
		title, content, tags := p.pickFallback(ev.EventName, profile, match)
		entry.Title, entry.Content, entry.EmotionTags = title, content, tags
		entry.Provenance = ProvenanceTemplate
		return entry, nil
	}

	if out := p.tryLLM(ctx, ev, profile, match); out != nil {
		entry.Title = out.Title
		entry.Content = out.Content
		entry.EmotionTags = out.EmotionTags
		entry.Provenance = ProvenanceLLM
		return entry, nil
	}

	title, content, tags := p.pickFallback(ev.EventName, profile, match)
	entry.Title, entry.Content, entry.EmotionTags = title, content, tags
	entry.Provenance = ProvenanceFallback
	return entry, nil
}

// tryLLM runs the primary path; nil means the result was unusable
func (p *Pipeline) tryLLM(ctx context.Context, ev *event.Descriptor, profile *database.EmotionProfile, match *trigger.SyncMatch) *llmOutput {
	system, user := buildPrompt(ev, profile, match, p.tables.EmotionTags)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Token and temperature limits stay unset here; each provider fills
	// in its own configured defaults.
	raw, err := p.generator.Generate(callCtx, llm.Request{
		System: system,
		User:   user,
	})
	if err != nil {
		// Includes llm.ErrExhausted; recovered here, never propagated.
		p.logger.Warn("llm generation failed, falling back",
			"event", ev.EventName, "error", err)
		return nil
	}

	out, err := parseResponse(raw)
	if err != nil {
		p.logger.Warn("discarding unparseable llm output",
			"event", ev.EventName, "error", err)
		return nil
	}
	if err := validateOutput(out, p.tables); err != nil {
		p.logger.Warn("discarding invalid llm output",
			"event", ev.EventName, "error", err)
		return nil
	}
	return out
}
