// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package llm

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/mochibot/kokoro/internal/config"
)

// ErrExhausted is returned when every provider in the registry failed for
// one request. Callers treat it as a mandatory fallback signal, never as a
// user-visible failure.
var ErrExhausted = errors.New("all llm providers exhausted")

// Request is one generation request
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Provider is a single generative-text backend
type Provider interface {
	Name() string
	Call(ctx context.Context, req Request) (string, error)
}

// Entry pairs a provider with its registry configuration and mutable
// runtime state.
type Entry struct {
	Provider Provider
	Config   config.ProviderConfig

	// Runtime state, owned by the failover manager.
	ConsecutiveFailures int
	LastLatency         time.Duration
}

// BuildRegistry constructs provider entries from the configured registry.
// Disabled providers are kept in the registry (their state is still
// reportable) but never attempted.
func BuildRegistry(cfgs []config.ProviderConfig) []*Entry {
	entries := make([]*Entry, 0, len(cfgs))
	for _, pc := range cfgs {
		apiKey := ""
		if pc.APIKeyEnv != "" {
			apiKey = os.Getenv(pc.APIKeyEnv)
		}
		entries = append(entries, &Entry{
			Provider: NewHTTPProvider(pc, apiKey),
			Config:   pc,
		})
	}
	return entries
}
