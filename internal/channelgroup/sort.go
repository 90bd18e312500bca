package channelgroup

import (
	"cmp"
	"slices"
	"strings"
)

// compareByClientChannelNumber orders by backend priority (highest first), then
// backend-reported number, then channel name
func compareByClientChannelNumber(a, b *Member) int {
	if a.ClientPriority() != b.ClientPriority() {
		return cmp.Compare(b.ClientPriority(), a.ClientPriority())
	}
	if c := a.ClientChannelNumber().Compare(b.ClientChannelNumber()); c != 0 {
		return c
	}
	return strings.Compare(a.Channel().Name(), b.Channel().Name())
}

// compareByChannelNumber orders by group-local number
func compareByChannelNumber(a, b *Member) int {
	return a.ChannelNumber().Compare(b.ChannelNumber())
}

// Sort orders the members according to the backend order policy
func (g *Group) Sort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sortLocked()
}

func (g *Group) sortLocked() {
	if g.preventSortAndRenumber {
		return
	}
	if g.usingBackendChannelOrder {
		slices.SortStableFunc(g.sorted, compareByClientChannelNumber)
	} else {
		slices.SortStableFunc(g.sorted, compareByChannelNumber)
	}
}

// SortAndRenumber sorts and renumbers the group and reports whether any number changed
func (g *Group) SortAndRenumber() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortAndRenumberLocked()
}

func (g *Group) sortAndRenumberLocked() bool {
	if g.preventSortAndRenumber {
		return false
	}
	g.sortLocked()
	return g.renumberLocked(RenumberNormal)
}
