package channelgroup

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

// Load clears the group, reads the policy, loads the persisted members and
// reconciles them with the backends. It returns the channels that were
// removed because their backend no longer reports them.
func (g *Group) Load(ctx context.Context) ([]*models.Channel, error) {
	if g.deps.Store == nil {
		return nil, ErrNoStore
	}

	g.Unload()

	policy := g.readPolicy()
	g.mu.Lock()
	g.applyPolicyLocked(policy)
	id := g.id
	name := g.path.GroupName
	g.mu.Unlock()

	loaded := 0
	if id > 0 {
		n, err := g.loadFromStore(ctx)
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("group", name).
				Msg("Failed to load channel group from database")
			return nil, fmt.Errorf("failed to load channel group %q: %w", name, err)
		}
		loaded = n
	}

	logger.Log.Debug().
		Int("count", loaded).
		Str("group", name).
		Msg("Channels loaded from the database")

	removed, err := g.Update(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("group", name).
			Msg("Failed to update channels for group")
		return nil, fmt.Errorf("failed to update channel group %q: %w", name, err)
	}

	g.mu.Lock()
	if added := len(g.members) - loaded; added > 0 {
		logger.Log.Debug().
			Int("count", added).
			Str("group", name).
			Msg("Channels added from backends")
	}
	g.sortAndRenumberLocked()
	g.loaded = true
	g.mu.Unlock()

	return removed, nil
}

func (g *Group) loadFromStore(ctx context.Context) (int, error) {
	g.mu.Lock()
	id, radio := g.id, g.path.Radio
	var resolver ChannelResolver
	if !g.isInternalLocked() && g.allChannels != nil {
		resolver = g.allChannels
	}
	g.mu.Unlock()

	members, err := g.deps.Store.LoadMembers(ctx, id, radio, resolver)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, m := range members {
		if m == nil || m.Channel() == nil {
			continue
		}
		if _, exists := g.members[m.Key()]; exists {
			continue
		}
		m.SetSaved()
		g.insertLocked(m)
		count++
	}
	return count, nil
}

// Update reconciles the group with a fresh snapshot from the backends.
// User-defined groups and groups without sync enabled are left alone.
func (g *Group) Update(ctx context.Context) ([]*models.Channel, error) {
	g.mu.Lock()
	userDefined := g.groupType == models.GroupTypeUserDefined
	internal := g.isInternalLocked()
	path := g.path
	g.mu.Unlock()

	if userDefined || !g.readPolicy().SyncChannelGroups {
		return nil, nil
	}
	if g.deps.Backends == nil {
		return nil, ErrNoBackends
	}

	members, failed, err := g.deps.Backends.QueryGroupMembers(ctx, path, internal)
	if err != nil {
		return nil, fmt.Errorf("failed to query backends: %w", err)
	}
	if len(failed) > 0 {
		logger.Log.Warn().
			Ints("backends", failed).
			Str("group", path.GroupName).
			Msg("Backends failed to report channel group members")
	}

	scratch := newScratchGroup(path, members)

	g.mu.Lock()
	g.failedBackends = slices.Clone(failed)
	g.mu.Unlock()

	return g.UpdateGroupEntries(ctx, scratch)
}

// UpdateGroupEntries merges incoming into the group. Members missing from
// incoming are removed unless their backend failed during the last query.
// It returns the removed channels.
func (g *Group) UpdateGroupEntries(ctx context.Context, incoming *Group) ([]*models.Channel, error) {
	incomingMembers := incoming.memberInfos()

	g.mu.Lock()

	// new groups and groups in backend order take the backend numbers as a start
	useBackendNumbers := len(g.members) == 0 || g.usingBackendChannelOrder

	g.preventSortAndRenumber = true
	removed := g.removeDeletedLocked(incomingMembers)
	updated, added := g.addAndUpdateLocked(incomingMembers, useBackendNumbers)
	changed := updated || added > 0 || len(removed) > 0
	g.preventSortAndRenumber = false

	if g.updateClientPrioritiesLocked() {
		changed = true
	}

	if !changed {
		g.mu.Unlock()
		return removed, nil
	}

	// new members were appended, so they get the highest numbers
	renumbered := g.sortAndRenumberLocked()
	newChannels := g.hasNewChannelsLocked()
	err := g.persistLocked(ctx)

	kind := EventMemberUpdated
	if added > 0 || newChannels || len(removed) > 0 || renumbered {
		kind = EventGroupInvalidated
	}
	event := g.eventLocked(kind)
	g.mu.Unlock()

	g.publish(event)
	return removed, err
}

func (g *Group) memberInfos() map[models.StorageID]MemberInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	infos := make(map[models.StorageID]MemberInfo, len(g.members))
	for key, m := range g.members {
		infos[key] = m.Info()
	}
	return infos
}

func (g *Group) hasValidDataFromBackend(backendID int) bool {
	return !slices.Contains(g.failedBackends, backendID)
}

func (g *Group) removeDeletedLocked(incoming map[models.StorageID]MemberInfo) []*models.Channel {
	var removed []*models.Channel

	for _, m := range slices.Clone(g.sorted) {
		key := m.Key()
		if _, ok := incoming[key]; ok {
			continue
		}

		// absence may be a failed query rather than a real deletion
		if !g.hasValidDataFromBackend(key.BackendID) {
			continue
		}

		g.removeLocked(key)
		removed = append(removed, m.Channel())

		logger.Log.Info().
			Bool("radio", g.path.Radio).
			Str("channel", m.Channel().Name()).
			Str("group", g.path.GroupName).
			Msg("Removed stale channel from group")
	}

	return removed
}

// addAndUpdateLocked reports whether existing members changed and how many were added
func (g *Group) addAndUpdateLocked(incoming map[models.StorageID]MemberInfo, useBackendNumbers bool) (bool, int) {
	changed := false
	added := 0

	// deterministic insertion order: backend order value, then key
	keys := make([]models.StorageID, 0, len(incoming))
	for key := range incoming {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b models.StorageID) int {
		return cmp.Or(
			cmp.Compare(incoming[a].Order, incoming[b].Order),
			cmp.Compare(a.BackendID, b.BackendID),
			cmp.Compare(a.UniqueID, b.UniqueID),
		)
	})

	for _, key := range keys {
		newMember := incoming[key]
		if g.isInternalLocked() {
			if _, exists := g.members[key]; !exists {
				added++
			}
			if g.addOrUpdateInternalLocked(newMember, useBackendNumbers) {
				changed = true
			}
			continue
		}

		if g.allChannels == nil {
			break
		}

		// channels unknown to the internal group appear once it is synced
		channel := g.allChannels.ChannelByKey(key)
		if channel == nil {
			continue
		}

		existing, ok := g.members[key]
		if !ok {
			if g.addToGroupLocked(channel, newMember.ChannelNumber, newMember.Order, useBackendNumbers, newMember.ClientChannelNumber) {
				added++
				logger.Log.Debug().
					Bool("radio", g.path.Radio).
					Str("channel", channel.Name()).
					Str("group", g.path.GroupName).
					Msg("Added channel to group")
			}
			continue
		}

		if existing.ClientChannelNumber() != newMember.ClientChannelNumber || existing.Order() != newMember.Order {
			existing.SetClientChannelNumber(newMember.ClientChannelNumber)
			existing.SetOrder(newMember.Order)
			changed = true
		}

		logger.Log.Debug().
			Bool("radio", g.path.Radio).
			Str("channel", existing.Channel().Name()).
			Str("group", g.path.GroupName).
			Msg("Updated channel in group")
	}

	return changed, added
}

// addOrUpdateInternalLocked adds a backend channel to the internal group or
// refreshes the channel attributes the internal group owns
func (g *Group) addOrUpdateInternalLocked(newMember MemberInfo, useBackendNumbers bool) bool {
	key := newMember.Key()
	existing, ok := g.members[key]
	if !ok {
		number := newMember.ChannelNumber
		if !number.IsValid() {
			if useBackendNumbers && newMember.ClientChannelNumber.IsValid() {
				number = newMember.ClientChannelNumber
			} else {
				number = models.NewChannelNumber(g.maxChannelNumberLocked()+1, 0)
			}
		}

		g.insertLocked(NewMember(newMember.Channel, number, newMember.ClientPriority, newMember.Order, newMember.ClientChannelNumber))

		logger.Log.Debug().
			Bool("radio", g.path.Radio).
			Str("channel", newMember.Channel.Name()).
			Str("group", g.path.GroupName).
			Msg("Added channel to group")
		return true
	}

	changed := false
	channel := existing.Channel()
	if channel != newMember.Channel {
		if name := newMember.Channel.Name(); name != "" && name != channel.Name() {
			channel.SetName(name)
			changed = true
		}
		if icon := newMember.Channel.IconPath(); icon != "" && icon != channel.IconPath() {
			channel.SetIconPath(icon)
			changed = true
		}
		if epg := newMember.Channel.EPG(); epg != nil {
			channel.SetEPG(epg)
		}
	}

	if existing.ClientChannelNumber() != newMember.ClientChannelNumber || existing.Order() != newMember.Order {
		existing.SetClientChannelNumber(newMember.ClientChannelNumber)
		existing.SetOrder(newMember.Order)
		changed = true
	}
	return changed
}

func (g *Group) maxChannelNumberLocked() uint {
	var maxNumber uint
	for _, m := range g.sorted {
		if n := m.ChannelNumber().Major; n > maxNumber {
			maxNumber = n
		}
	}
	return maxNumber
}

// HasNewChannels reports whether any member's channel was never persisted
func (g *Group) HasNewChannels() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasNewChannelsLocked()
}

func (g *Group) hasNewChannelsLocked() bool {
	for _, m := range g.members {
		if m.Channel().ID() <= 0 {
			return true
		}
	}
	return false
}

// UpdateChannelNumbersFromAllChannelsGroup re-derives the numbers of a
// non-internal group from the internal group and persists on change
func (g *Group) UpdateChannelNumbersFromAllChannelsGroup(ctx context.Context) bool {
	g.mu.Lock()

	changed := false
	if !g.isInternalLocked() {
		renumbered := g.renumberLocked(RenumberIgnoreNumberingFromOne)
		if g.sortAndRenumberLocked() || renumbered {
			if err := g.persistLocked(ctx); err != nil {
				logger.Log.Error().
					Err(err).
					Str("group", g.path.GroupName).
					Msg("Failed to persist renumbered channel group")
			}
			changed = true
		}
	}

	kind := EventMemberUpdated
	if g.isInternalLocked() || changed {
		kind = EventGroupInvalidated
	}
	event := g.eventLocked(kind)
	g.mu.Unlock()

	g.publish(event)
	return changed
}
