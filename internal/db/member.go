package db

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/lineup/internal/models"
	"gorm.io/gorm"
)

const memberBatchSize = 200

// MemberRepository handles database operations for group memberships
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db.DB}
}

// WithTx returns a repository bound to the given transaction
func (r *MemberRepository) WithTx(tx *gorm.DB) *MemberRepository {
	return &MemberRepository{db: tx}
}

// ListByGroup retrieves the members of a group with their channels, in number order
func (r *MemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.MemberRecord, error) {
	var members []*models.MemberRecord
	result := r.db.WithContext(ctx).
		Preload("Channel").
		Where("group_id = ?", groupID).
		Order("channel_number ASC, sub_channel_number ASC, sort_order ASC").
		Find(&members)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list group members: %w", MapGormError(result.Error))
	}
	return members, nil
}

// ReplaceForGroup replaces all members of a group. Call it inside a transaction.
func (r *MemberRepository) ReplaceForGroup(ctx context.Context, groupID int64, members []*models.MemberRecord) error {
	if err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.MemberRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear group members: %w", MapGormError(err))
	}
	if len(members) == 0 {
		return nil
	}

	for _, m := range members {
		m.GroupID = groupID
		m.Channel = nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(members, memberBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert group members: %w", MapGormError(err))
	}
	return nil
}

// CountByGroup returns the number of members of a group
func (r *MemberRepository) CountByGroup(ctx context.Context, groupID int64) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.MemberRecord{}).
		Where("group_id = ?", groupID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count group members: %w", MapGormError(result.Error))
	}
	return count, nil
}
