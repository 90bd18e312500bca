package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
)

// SettingsRepository handles database operations for the numbering policy settings
// Settings is a singleton table with only one row
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves the settings (creates with defaults if not exists)
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	result := r.db.WithContext(ctx).Where("id = ?", 1).First(&settings)

	// If not found, create with defaults
	if result.Error != nil {
		if errors.Is(MapGormError(result.Error), ErrNotFound) {
			defaultSettings := models.DefaultSettings()
			if err := r.db.WithContext(ctx).Create(defaultSettings).Error; err != nil {
				return nil, fmt.Errorf("failed to create default settings: %w", MapGormError(err))
			}
			return defaultSettings, nil
		}
		return nil, MapGormError(result.Error)
	}

	return &settings, nil
}

// Update updates the settings (singleton row)
func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	// Ensure we're always updating the singleton row
	settings.ID = 1
	settings.UpdatedAt = time.Now().UTC()

	// Select every column so that false values are written too
	result := r.db.WithContext(ctx).
		Model(&models.Settings{}).
		Where("id = ?", 1).
		Select(
			"sync_channel_groups",
			"backend_channel_order",
			"use_backend_channel_numbers",
			"use_backend_channel_numbers_always",
			"start_group_channel_numbers_from_one",
			"updated_at",
		).
		Updates(settings)
	if result.Error != nil {
		return fmt.Errorf("failed to update settings: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Flags returns the settings keyed by policy setting key
func (r *SettingsRepository) Flags(ctx context.Context) (map[string]bool, error) {
	settings, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	return settings.Flags(), nil
}

// SetFlag stores one policy flag
func (r *SettingsRepository) SetFlag(ctx context.Context, key string, value bool) error {
	settings, err := r.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.SetFlag(key, value) {
		return fmt.Errorf("unknown setting %q: %w", key, ErrInvalidInput)
	}
	return r.Update(ctx, settings)
}
