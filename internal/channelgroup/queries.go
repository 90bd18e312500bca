package channelgroup

import (
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
)

// Include filters members by visibility
type Include int

const (
	// IncludeAll returns every member
	IncludeAll Include = iota
	// IncludeVisible returns members whose channel is not hidden
	IncludeVisible
	// IncludeHidden returns members whose channel is hidden
	IncludeHidden
)

// MemberByKey returns a copy of the member with the given storage id
func (g *Group) MemberByKey(key models.StorageID) (MemberInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.members[key]
	if !ok {
		return MemberInfo{}, false
	}
	return m.Info(), true
}

// ChannelByKey returns the member channel with the given storage id, or nil
func (g *Group) ChannelByKey(key models.StorageID) *models.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[key]; ok {
		return m.Channel()
	}
	return nil
}

// ChannelByID returns the member channel with the given database id, or nil
func (g *Group) ChannelByID(channelID int64) *models.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.sorted {
		if m.Channel().ID() == channelID {
			return m.Channel()
		}
	}
	return nil
}

// ChannelByEPGID returns the member channel with the given schedule source id, or nil
func (g *Group) ChannelByEPGID(epgID int) *models.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.sorted {
		if m.Channel().EPGID() == epgID {
			return m.Channel()
		}
	}
	return nil
}

// ChannelNumber returns the group-local number of channel, unassigned if not a member
func (g *Group) ChannelNumber(channel *models.Channel) models.ChannelNumber {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[channel.StorageID()]; ok {
		return m.ChannelNumber()
	}
	return models.UnassignedChannelNumber
}

// ClientChannelNumber returns the backend number of channel, unassigned if not a member
func (g *Group) ClientChannelNumber(channel *models.Channel) models.ChannelNumber {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[channel.StorageID()]; ok {
		return m.ClientChannelNumber()
	}
	return models.UnassignedChannelNumber
}

func (g *Group) activeNumberLocked(m *Member) models.ChannelNumber {
	if g.usingBackendNumbers {
		return m.ClientChannelNumber()
	}
	return m.ChannelNumber()
}

// ChannelByNumber returns the channel currently shown under number, or nil
func (g *Group) ChannelByNumber(number models.ChannelNumber) *models.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.sorted {
		if g.activeNumberLocked(m) == number {
			return m.Channel()
		}
	}
	return nil
}

// ChannelNumbers returns the formatted active number of every member in order
func (g *Group) ChannelNumbers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	numbers := make([]string, 0, len(g.sorted))
	for _, m := range g.sorted {
		numbers = append(numbers, g.activeNumberLocked(m).String())
	}
	return numbers
}

// Members returns copies of the members in sorted order
func (g *Group) Members(filter Include) []MemberInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := make([]MemberInfo, 0, len(g.sorted))
	for _, m := range g.sorted {
		hidden := m.Channel().IsHidden()
		if (filter == IncludeVisible && hidden) || (filter == IncludeHidden && !hidden) {
			continue
		}
		members = append(members, m.Info())
	}
	return members
}

// NextChannel returns the next visible channel after channel, wrapping around.
// It returns channel itself if it is the only visible one and nil if none is visible.
func (g *Group) NextChannel(channel *models.Channel) *models.Channel {
	return g.neighbour(channel, 1)
}

// PreviousChannel returns the previous visible channel before channel, wrapping around
func (g *Group) PreviousChannel(channel *models.Channel) *models.Channel {
	return g.neighbour(channel, -1)
}

func (g *Group) neighbour(channel *models.Channel, step int) *models.Channel {
	if channel == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.sorted)
	key := channel.StorageID()
	start := -1
	for i, m := range g.sorted {
		if m.Key() == key {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	for i := 1; i <= n; i++ {
		m := g.sorted[((start+step*i)%n+n)%n]
		if !m.Channel().IsHidden() {
			return m.Channel()
		}
	}
	return nil
}

// LastPlayedChannel returns the most recently watched channel of an active
// backend, skipping the channel with database id currentID
func (g *Group) LastPlayedChannel(currentID int64) *models.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()

	var last *models.Channel
	for _, m := range g.sorted {
		channel := m.Channel()
		watched := channel.LastWatched()
		if channel.ID() == currentID || watched.IsZero() {
			continue
		}
		if g.deps.Backends != nil && !g.deps.Backends.IsBackendActive(channel.BackendID) {
			continue
		}
		if last == nil || watched.After(last.LastWatched()) {
			last = channel
		}
	}
	return last
}

// FirstEPGDate returns the earliest program guide date of all visible members
func (g *Group) FirstEPGDate() time.Time {
	first, _ := g.EPGDateRange()
	return first
}

// LastEPGDate returns the latest program guide date of all visible members
func (g *Group) LastEPGDate() time.Time {
	_, last := g.EPGDateRange()
	return last
}

// EPGDateRange returns the earliest first date and latest last date over the
// program guides of all visible members. Zero times mean no guide data.
func (g *Group) EPGDateRange() (first, last time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, m := range g.members {
		channel := m.Channel()
		if channel.IsHidden() {
			continue
		}
		epg := channel.EPG()
		if epg == nil {
			continue
		}
		if !epg.First.IsZero() && (first.IsZero() || epg.First.Before(first)) {
			first = epg.First
		}
		if !epg.Last.IsZero() && (last.IsZero() || epg.Last.After(last)) {
			last = epg.Last
		}
	}
	return first, last
}
