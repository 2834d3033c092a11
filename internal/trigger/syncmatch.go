// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package trigger

import (
	"sync"
	"time"
)

// Synchronization quality tiers
const (
	TierPerfect    = "perfect"
	TierExcellent  = "excellent"
	TierGood       = "good"
	TierAcceptable = "acceptable"
	TierPoor       = "poor"
)

// matchHorizon is the widest window two occurrences can span and still
// count as a match. Beyond it the pair is poor and ineligible.
const matchHorizon = 5 * time.Second

// ClassifyTier maps elapsed time between two occurrences to a quality tier
func ClassifyTier(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	switch {
	case elapsed <= 1*time.Second:
		return TierPerfect
	case elapsed <= 2*time.Second:
		return TierExcellent
	case elapsed <= 3*time.Second:
		return TierGood
	case elapsed <= matchHorizon:
		return TierAcceptable
	default:
		return TierPoor
	}
}

// SyncMatch is a confirmed pairing of two occurrences
type SyncMatch struct {
	Label            string
	Tier             string
	Elapsed          time.Duration
	PartnerPrincipal string
}

type occurrence struct {
	principal string
	at        time.Time
}

// SyncMatcher correlates same-label occurrences across principals. A lone
// occurrence parks in the pending window; it is matched by the first
// partner occurrence from a mutual contact inside the horizon, and expires
// silently otherwise. No quota is held for pending occurrences.
type SyncMatcher struct {
	contacts ContactRegistry

	mu      sync.Mutex
	pending map[string][]occurrence // label -> parked occurrences
}

// NewSyncMatcher creates a matcher over the given contact registry
func NewSyncMatcher(contacts ContactRegistry) *SyncMatcher {
	return &SyncMatcher{
		contacts: contacts,
		pending:  make(map[string][]occurrence),
	}
}

// Observe records an occurrence and returns a match if a partner
// occurrence from a mutual contact is parked within the horizon. A nil
// match means the occurrence is now parked awaiting its partner.
func (m *SyncMatcher) Observe(principal, label string, at time.Time) (*SyncMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(at)

	var best *SyncMatch
	bestIdx := -1
	for i, occ := range m.pending[label] {
		if occ.principal == principal {
			continue
		}
		paired, err := m.contacts.AreContacts(principal, occ.principal)
		if err != nil {
			return nil, err
		}
		if !paired {
			continue
		}

		elapsed := at.Sub(occ.at)
		if elapsed < 0 {
			elapsed = -elapsed
		}
		if best == nil || elapsed < best.Elapsed {
			best = &SyncMatch{
				Label:            label,
				Tier:             ClassifyTier(elapsed),
				Elapsed:          elapsed,
				PartnerPrincipal: occ.principal,
			}
			bestIdx = i
		}
	}

	if best != nil && best.Tier != TierPoor {
		m.pending[label] = append(m.pending[label][:bestIdx], m.pending[label][bestIdx+1:]...)
		return best, nil
	}

	m.pending[label] = append(m.pending[label], occurrence{principal: principal, at: at})
	return nil, nil
}

// expireLocked drops parked occurrences outside the horizon. All labels
// are swept, so a label that is never reported again cannot leak its
// parked occurrences.
func (m *SyncMatcher) expireLocked(now time.Time) {
	for label, occs := range m.pending {
		kept := occs[:0]
		for _, occ := range occs {
			if now.Sub(occ.at) <= matchHorizon {
				kept = append(kept, occ)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, label)
		} else {
			m.pending[label] = kept
		}
	}
}
