// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid marks a malformed event descriptor. Propagated to the
// ingestion boundary, never swallowed.
var ErrInvalid = errors.New("invalid event descriptor")

// PayloadLabelKey is the payload key carrying the interaction label of a
// synchronization event.
const PayloadLabelKey = "label"

// Descriptor is one reported life-event. Created by ingestion, consumed
// once by the engine, not persisted.
type Descriptor struct {
	EventID     string                 `json:"event_id"`
	EventType   string                 `json:"event_type"`
	EventName   string                 `json:"event_name"`
	Timestamp   time.Time              `json:"timestamp"`
	PrincipalID string                 `json:"principal_id"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Metadata    map[string]string      `json:"metadata,omitempty"`
}

// Validate checks required fields, filling EventID and Timestamp when the
// producer left them empty.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalid)
	}
	if d.EventType == "" {
		return fmt.Errorf("%w: event_type is required", ErrInvalid)
	}
	if d.EventName == "" {
		return fmt.Errorf("%w: event_name is required", ErrInvalid)
	}
	if d.PrincipalID == "" {
		return fmt.Errorf("%w: principal_id is required", ErrInvalid)
	}
	if d.EventID == "" {
		d.EventID = uuid.New().String()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	return nil
}

// Label returns the interaction label from the payload, if any
func (d *Descriptor) Label() string {
	if d.Payload == nil {
		return ""
	}
	if v, ok := d.Payload[PayloadLabelKey].(string); ok {
		return v
	}
	return ""
}
