// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package emotion

import (
	"errors"
	"fmt"

	"github.com/mochibot/kokoro/internal/database"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no emotion profile exists for an entity
var ErrNotFound = errors.New("emotion profile not found")

// Bounds for the x and y emotion coordinates. Intimacy is unbounded.
const (
	MinCoordinate = -30
	MaxCoordinate = 30
)

// Store is the persistence collaborator for emotion profiles
type Store interface {
	// Get returns the profile for an entity, or ErrNotFound
	Get(entityID string) (*database.EmotionProfile, error)

	// Update applies deltas to an entity's coordinates and persists the
	// result. The store re-enforces the coordinate bounds as a backstop.
	Update(entityID string, dx, dy, dIntimacy int) (*database.EmotionProfile, error)
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed emotion store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the profile for an entity
func (s *GormStore) Get(entityID string) (*database.EmotionProfile, error) {
	var profile database.EmotionProfile
	err := s.db.Where("entity_id = ?", entityID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load emotion profile: %w", err)
	}
	return &profile, nil
}

// Create registers a new entity profile with zeroed coordinates
func (s *GormStore) Create(entityID string, role database.Role) (*database.EmotionProfile, error) {
	profile := database.EmotionProfile{
		EntityID: entityID,
		Role:     role,
	}
	if err := s.db.Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create emotion profile: %w", err)
	}
	return &profile, nil
}

// Update applies deltas inside a transaction and re-clamps x/y
func (s *GormStore) Update(entityID string, dx, dy, dIntimacy int) (*database.EmotionProfile, error) {
	var updated *database.EmotionProfile

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var profile database.EmotionProfile
		err := tx.Where("entity_id = ?", entityID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		profile.XValue = Clamp(profile.XValue + dx)
		profile.YValue = Clamp(profile.YValue + dy)
		profile.Intimacy += dIntimacy

		if err := tx.Save(&profile).Error; err != nil {
			return err
		}
		updated = &profile
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update emotion profile: %w", err)
	}

	return updated, nil
}

// Clamp bounds a coordinate into [MinCoordinate, MaxCoordinate]
func Clamp(v int) int {
	if v < MinCoordinate {
		return MinCoordinate
	}
	if v > MaxCoordinate {
		return MaxCoordinate
	}
	return v
}
