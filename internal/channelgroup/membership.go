package channelgroup

import (
	"github.com/stwalsh4118/lineup/internal/models"
)

// AddToGroup adds channel to the group. Unset numbers are inherited from the
// internal group. With useBackendNumbers and no explicit number the backend
// number is used as the provisional position until the next renumber.
// It reports false if the channel is already a member or unknown.
func (g *Group) AddToGroup(channel *models.Channel, number models.ChannelNumber, order int, useBackendNumbers bool, clientNumber models.ChannelNumber) bool {
	if channel == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addToGroupLocked(channel, number, order, useBackendNumbers, clientNumber)
}

func (g *Group) addToGroupLocked(channel *models.Channel, number models.ChannelNumber, order int, useBackendNumbers bool, clientNumber models.ChannelNumber) bool {
	key := channel.StorageID()
	if _, exists := g.members[key]; exists {
		return false
	}

	var real MemberInfo
	if g.isInternalLocked() {
		m, ok := g.members[key]
		if !ok {
			return false
		}
		real = m.Info()
	} else {
		if g.allChannels == nil {
			return false
		}
		info, ok := g.allChannels.MemberByKey(key)
		if !ok {
			return false
		}
		real = info
	}

	clientNumberToUse := clientNumber
	if !clientNumber.IsValid() {
		clientNumberToUse = real.ClientChannelNumber
	}

	major := number.Major
	if !number.IsValid() {
		major = real.ChannelNumber.Major
		if useBackendNumbers && clientNumberToUse.IsValid() {
			major = clientNumberToUse.Major
		}
	}

	g.insertLocked(NewMember(real.Channel, models.NewChannelNumber(major, number.Minor), real.ClientPriority, order, clientNumberToUse))
	g.changed = true
	g.sortAndRenumberLocked()
	return true
}

// AppendToGroup adds channel with a number one past the highest group-local number
func (g *Group) AppendToGroup(channel *models.Channel) bool {
	if channel == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	next := models.NewChannelNumber(g.maxChannelNumberLocked()+1, 0)
	return g.addToGroupLocked(channel, next, 0, false, models.UnassignedChannelNumber)
}

// RemoveFromGroup removes channel from the group and renumbers if it was a member
func (g *Group) RemoveFromGroup(channel *models.Channel) bool {
	if channel == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeFromGroupLocked(channel.StorageID())
}

func (g *Group) removeFromGroupLocked(key models.StorageID) bool {
	if g.removeLocked(key) == nil {
		return false
	}
	g.changed = true
	g.renumberLocked(RenumberNormal)
	return true
}

// IsGroupMember reports whether channel belongs to the group
func (g *Group) IsGroupMember(channel *models.Channel) bool {
	if channel == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.members[channel.StorageID()]
	return ok
}

// IsGroupMemberByID reports whether a channel with the given database id belongs to the group
func (g *Group) IsGroupMemberByID(channelID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.Channel().ID() == channelID {
			return true
		}
	}
	return false
}

// SetChannelNumber sets the group-local number of a member and reports whether it changed
func (g *Group) SetChannelNumber(channel *models.Channel, number models.ChannelNumber) bool {
	if channel == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setChannelNumberLocked(channel.StorageID(), number)
}

func (g *Group) setChannelNumberLocked(key models.StorageID, number models.ChannelNumber) bool {
	m, ok := g.members[key]
	if !ok || m.ChannelNumber() == number {
		return false
	}
	m.SetChannelNumber(number)
	g.changed = true
	return true
}

// ChannelUpdate holds user edits to a channel of the group
type ChannelUpdate struct {
	Name     string
	IconPath string
	Number   uint
	Hidden   bool
	Locked   bool
}

// UpdateChannel applies user edits to a member's channel. Hiding a channel
// removes it from the group; otherwise the number is applied.
func (g *Group) UpdateChannel(key models.StorageID, update ChannelUpdate) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[key]
	if !ok {
		return false
	}

	channel := m.Channel()
	channel.SetName(update.Name)
	channel.SetHidden(update.Hidden)
	channel.SetLocked(update.Locked)
	channel.SetIconPath(update.IconPath)

	if update.Hidden {
		// sort first or the previous changes are overwritten
		g.sortLocked()
		g.removeFromGroupLocked(key)
	} else {
		g.setChannelNumberLocked(key, models.NewChannelNumber(update.Number, 0))
	}
	return true
}
