// Package db provides database connection management and repository interfaces.
package db

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/lineup/internal/models"
	"gorm.io/gorm"
)

// ChannelRepository handles database operations for channels
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db.DB}
}

// WithTx returns a repository bound to the given transaction
func (r *ChannelRepository) WithTx(tx *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: tx}
}

// Upsert inserts the channel or updates the row with the same backend key.
// The record's ID is set to the stored row id.
func (r *ChannelRepository) Upsert(ctx context.Context, channel *models.ChannelRecord) error {
	var existing models.ChannelRecord
	result := r.db.WithContext(ctx).
		Where("backend_id = ? AND unique_id = ?", channel.BackendID, channel.UniqueID).
		Limit(1).
		Find(&existing)
	if result.Error != nil {
		return fmt.Errorf("failed to look up channel: %w", MapGormError(result.Error))
	}

	if result.RowsAffected == 0 {
		channel.ID = 0
		if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
			return fmt.Errorf("failed to create channel: %w", MapGormError(err))
		}
		return nil
	}

	channel.ID = existing.ID
	// Use Select to explicitly update all fields including zero values
	err := r.db.WithContext(ctx).
		Model(&models.ChannelRecord{}).
		Where("id = ?", existing.ID).
		Select("radio", "name", "icon_path", "hidden", "locked", "epg_id", "last_watched").
		Updates(channel).Error
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", MapGormError(err))
	}
	return nil
}

// GetByID retrieves a channel by its database id
func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*models.ChannelRecord, error) {
	var channel models.ChannelRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// GetByKey retrieves a channel by its backend key
func (r *ChannelRepository) GetByKey(ctx context.Context, key models.StorageID) (*models.ChannelRecord, error) {
	var channel models.ChannelRecord
	result := r.db.WithContext(ctx).
		Where("backend_id = ? AND unique_id = ?", key.BackendID, key.UniqueID).
		First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// ListByRadio retrieves all TV or all radio channels ordered by backend key
func (r *ChannelRepository) ListByRadio(ctx context.Context, radio bool) ([]*models.ChannelRecord, error) {
	var channels []*models.ChannelRecord
	result := r.db.WithContext(ctx).
		Where("radio = ?", radio).
		Order("backend_id ASC, unique_id ASC").
		Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// Delete deletes a channel by its id (cascade delete to group members)
func (r *ChannelRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ChannelRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete channel: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
