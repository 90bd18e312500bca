package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/models"
	"gorm.io/gorm"
)

// GroupStore persists channel groups and their members
type GroupStore struct {
	db    *DB
	repos *Repositories
}

// NewGroupStore creates a store backed by the given database
func NewGroupStore(db *DB, repos *Repositories) *GroupStore {
	return &GroupStore{db: db, repos: repos}
}

// LoadMembers returns the persisted members of a group. With a resolver the
// channel references are taken from it and members whose channel it does not
// know are skipped; without one the channels are built from their rows.
func (s *GroupStore) LoadMembers(ctx context.Context, groupID int64, radio bool, resolver channelgroup.ChannelResolver) ([]*channelgroup.Member, error) {
	records, err := s.repos.Members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members := make([]*channelgroup.Member, 0, len(records))
	for _, rec := range records {
		if rec.Channel == nil || rec.Channel.Radio != radio {
			continue
		}

		var channel *models.Channel
		if resolver != nil {
			channel = resolver.ChannelByKey(models.StorageID{BackendID: rec.Channel.BackendID, UniqueID: rec.Channel.UniqueID})
			if channel == nil {
				continue
			}
		} else {
			channel = ChannelFromRecord(rec.Channel)
		}

		members = append(members, channelgroup.NewMember(
			channel,
			models.NewChannelNumber(rec.ChannelNumber, rec.SubChannelNumber),
			0,
			rec.Order,
			models.NewChannelNumber(rec.ClientChannelNumber, rec.ClientSubNumber),
		))
	}
	return members, nil
}

// Persist writes the group row, any channels without an id and all members
// in one transaction. Channels of the internal group are always written.
func (s *GroupStore) Persist(ctx context.Context, snapshot *channelgroup.Snapshot) (int64, error) {
	group := &models.GroupRecord{
		ID:          snapshot.ID,
		Radio:       snapshot.Path.Radio,
		GroupType:   snapshot.GroupType,
		Name:        snapshot.Path.GroupName,
		Position:    snapshot.Position,
		Hidden:      snapshot.Hidden,
		LastWatched: snapshot.LastWatched,
		LastOpened:  snapshot.LastOpened,
	}
	internal := snapshot.GroupType == models.GroupTypeInternal

	type assignment struct {
		channel *models.Channel
		id      int64
	}
	var assigned []assignment

	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		groups := s.repos.Groups.WithTx(tx)
		channels := s.repos.Channels.WithTx(tx)
		members := s.repos.Members.WithTx(tx)

		if group.ID > 0 {
			if err := groups.Update(ctx, group); err != nil {
				return err
			}
		} else if err := groups.Create(ctx, group); err != nil {
			return err
		}

		records := make([]*models.MemberRecord, 0, len(snapshot.Members))
		for _, m := range snapshot.Members {
			channelID := m.Channel.ID()
			if internal || channelID <= 0 {
				rec := ChannelToRecord(m.Channel)
				if err := channels.Upsert(ctx, rec); err != nil {
					return err
				}
				channelID = rec.ID
				assigned = append(assigned, assignment{channel: m.Channel, id: rec.ID})
			}

			records = append(records, &models.MemberRecord{
				ChannelID:           channelID,
				ChannelNumber:       m.ChannelNumber.Major,
				SubChannelNumber:    m.ChannelNumber.Minor,
				ClientChannelNumber: m.ClientChannelNumber.Major,
				ClientSubNumber:     m.ClientChannelNumber.Minor,
				Order:               m.Order,
			})
		}

		return members.ReplaceForGroup(ctx, group.ID, records)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist channel group %q: %w", group.Name, err)
	}

	// ids are only handed out once the transaction committed
	for _, a := range assigned {
		a.channel.SetID(a.id)
	}
	return group.ID, nil
}

// UpdateLastWatched stores the last-watched time of a group
func (s *GroupStore) UpdateLastWatched(ctx context.Context, groupID int64, lastWatched time.Time) error {
	return s.repos.Groups.UpdateLastWatched(ctx, groupID, lastWatched)
}

// UpdateLastOpened stores the last-opened time of a group
func (s *GroupStore) UpdateLastOpened(ctx context.Context, groupID int64, lastOpened time.Time) error {
	return s.repos.Groups.UpdateLastOpened(ctx, groupID, lastOpened)
}

// ChannelFromRecord builds a channel from its row
func ChannelFromRecord(rec *models.ChannelRecord) *models.Channel {
	channel := models.NewChannel(rec.BackendID, rec.UniqueID, rec.Name, rec.Radio)
	channel.SetID(rec.ID)
	channel.SetIconPath(rec.IconPath)
	channel.SetHidden(rec.Hidden)
	channel.SetLocked(rec.Locked)
	channel.SetEPGID(rec.EPGID)
	channel.SetLastWatched(rec.LastWatched)
	return channel
}

// ChannelToRecord builds the row for a channel
func ChannelToRecord(channel *models.Channel) *models.ChannelRecord {
	return &models.ChannelRecord{
		ID:          channel.ID(),
		BackendID:   channel.BackendID,
		UniqueID:    channel.UniqueID,
		Radio:       channel.Radio,
		Name:        channel.Name(),
		IconPath:    channel.IconPath(),
		Hidden:      channel.IsHidden(),
		Locked:      channel.IsLocked(),
		EPGID:       channel.EPGID(),
		LastWatched: channel.LastWatched(),
	}
}
