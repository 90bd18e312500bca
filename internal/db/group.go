package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
	"gorm.io/gorm"
)

// GroupRepository handles database operations for channel groups
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new channel group repository
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db.DB}
}

// WithTx returns a repository bound to the given transaction
func (r *GroupRepository) WithTx(tx *gorm.DB) *GroupRepository {
	return &GroupRepository{db: tx}
}

// Create inserts a new group and sets its id
func (r *GroupRepository) Create(ctx context.Context, group *models.GroupRecord) error {
	if group.Name == "" {
		return fmt.Errorf("group name is required: %w", ErrInvalidInput)
	}
	group.ID = 0
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create channel group: %w", MapGormError(err))
	}
	return nil
}

// Get retrieves a group by id
func (r *GroupRepository) Get(ctx context.Context, id int64) (*models.GroupRecord, error) {
	var group models.GroupRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&group)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &group, nil
}

// GetByName retrieves a group by kind and name
func (r *GroupRepository) GetByName(ctx context.Context, radio bool, name string) (*models.GroupRecord, error) {
	var group models.GroupRecord
	result := r.db.WithContext(ctx).Where("radio = ? AND name = ?", radio, name).First(&group)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &group, nil
}

// GetInternal retrieves the internal group of the given kind
func (r *GroupRepository) GetInternal(ctx context.Context, radio bool) (*models.GroupRecord, error) {
	var group models.GroupRecord
	result := r.db.WithContext(ctx).
		Where("radio = ? AND group_type = ?", radio, models.GroupTypeInternal).
		First(&group)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &group, nil
}

// ListByRadio retrieves all groups of one kind ordered by position
func (r *GroupRepository) ListByRadio(ctx context.Context, radio bool) ([]*models.GroupRecord, error) {
	var groups []*models.GroupRecord
	result := r.db.WithContext(ctx).
		Where("radio = ?", radio).
		Order("position ASC, id ASC").
		Find(&groups)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channel groups: %w", MapGormError(result.Error))
	}
	return groups, nil
}

// Update writes all group attributes
func (r *GroupRepository) Update(ctx context.Context, group *models.GroupRecord) error {
	result := r.db.WithContext(ctx).
		Model(&models.GroupRecord{}).
		Where("id = ?", group.ID).
		Select("radio", "group_type", "name", "position", "hidden", "last_watched", "last_opened").
		Updates(group)
	if result.Error != nil {
		return fmt.Errorf("failed to update channel group: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastWatched stores when a channel of the group was last watched
func (r *GroupRepository) UpdateLastWatched(ctx context.Context, id int64, lastWatched time.Time) error {
	return r.updateColumn(ctx, id, "last_watched", lastWatched)
}

// UpdateLastOpened stores when the group was last opened
func (r *GroupRepository) UpdateLastOpened(ctx context.Context, id int64, lastOpened time.Time) error {
	return r.updateColumn(ctx, id, "last_opened", lastOpened)
}

func (r *GroupRepository) updateColumn(ctx context.Context, id int64, column string, value any) error {
	result := r.db.WithContext(ctx).
		Model(&models.GroupRecord{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("failed to update channel group %s: %w", column, MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a group by id (cascade delete to members)
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.GroupRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete channel group: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
