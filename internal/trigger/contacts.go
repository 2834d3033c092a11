// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package trigger

import (
	"fmt"

	"github.com/mochibot/kokoro/internal/database"
	"gorm.io/gorm"
)

// ContactRegistry answers whether two principals are registered mutual
// contacts. Synchronization events only correlate across contact pairs.
type ContactRegistry interface {
	AreContacts(a, b string) (bool, error)
}

// GormContacts is the gorm-backed contact registry
type GormContacts struct {
	db *gorm.DB
}

// NewGormContacts creates a contact registry over the database
func NewGormContacts(db *gorm.DB) *GormContacts {
	return &GormContacts{db: db}
}

// orderPair normalizes a pair so each pair is stored once
func orderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Add registers two principals as mutual contacts. Adding an existing
// pair is a no-op.
func (c *GormContacts) Add(a, b string) error {
	if a == b {
		return fmt.Errorf("cannot pair a principal with itself")
	}
	lo, hi := orderPair(a, b)
	pair := database.ContactPair{PrincipalA: lo, PrincipalB: hi}
	err := c.db.Where(database.ContactPair{PrincipalA: lo, PrincipalB: hi}).
		FirstOrCreate(&pair).Error
	if err != nil {
		return fmt.Errorf("failed to register contact pair: %w", err)
	}
	return nil
}

// AreContacts reports whether the two principals are a registered pair
func (c *GormContacts) AreContacts(a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	lo, hi := orderPair(a, b)
	var count int64
	err := c.db.Model(&database.ContactPair{}).
		Where("principal_a = ? AND principal_b = ?", lo, hi).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query contact pair: %w", err)
	}
	return count > 0, nil
}
