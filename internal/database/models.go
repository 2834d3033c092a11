// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"time"
)

// Role classifies an entity's personality. It is fixed at creation and
// controls the weight multiplier applied to emotion deltas.
type Role string

const (
	RoleLively Role = "lively"
	RoleCalm   Role = "calm"
)

// EmotionProfile holds the emotion coordinates of one companion entity.
// Mutated only through the emotion ledger; never deleted.
type EmotionProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EntityID  string    `gorm:"uniqueIndex;not null" json:"entity_id"`
	XValue    int       `gorm:"not null;default:0" json:"x_value"`
	YValue    int       `gorm:"not null;default:0" json:"y_value"`
	Intimacy  int       `gorm:"not null;default:0" json:"intimacy"`
	Role      Role      `gorm:"not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for EmotionProfile
func (EmotionProfile) TableName() string {
	return "kokoro_emotion_profiles"
}

// DiaryEntry is a persisted diary record. Immutable once created.
type DiaryEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EntryID     string    `gorm:"uniqueIndex;not null" json:"entry_id"`
	PrincipalID string    `gorm:"index;not null" json:"principal_id"`
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	EventType   string    `gorm:"not null" json:"event_type"`
	EventName   string    `gorm:"not null" json:"event_name"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"not null" json:"content"`
	EmotionTags string    `gorm:"not null" json:"emotion_tags"` // comma-joined
	Provenance  string    `gorm:"not null" json:"provenance"`   // llm, template, fallback
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for DiaryEntry
func (DiaryEntry) TableName() string {
	return "kokoro_diary_entries"
}

// DailyQuota records one calendar day's diary budget and claims. A new row
// is created at each rollover; rows for past days are never mutated.
type DailyQuota struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Date           string    `gorm:"uniqueIndex;not null" json:"date"` // YYYY-MM-DD
	TotalQuota     int       `gorm:"not null" json:"total_quota"`
	CurrentCount   int       `gorm:"not null;default:0" json:"current_count"`
	CompletedTypes string    `gorm:"not null;default:''" json:"completed_types"` // comma-joined
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for DailyQuota
func (DailyQuota) TableName() string {
	return "kokoro_daily_quotas"
}

// ContactPair registers two principals as mutual contacts. Synchronization
// events only correlate occurrences between registered pairs. Pairs are
// stored with PrincipalA < PrincipalB so each pair has one row.
type ContactPair struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PrincipalA string    `gorm:"index:idx_contact_pair,unique;not null" json:"principal_a"`
	PrincipalB string    `gorm:"index:idx_contact_pair,unique;not null" json:"principal_b"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for ContactPair
func (ContactPair) TableName() string {
	return "kokoro_contact_pairs"
}
