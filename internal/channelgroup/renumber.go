package channelgroup

import "github.com/stwalsh4118/lineup/internal/models"

// RenumberMode selects how non-internal groups are numbered
type RenumberMode int

const (
	// RenumberNormal honours the start-numbering-from-one policy
	RenumberNormal RenumberMode = iota
	// RenumberIgnoreNumberingFromOne inherits numbers from the internal group
	RenumberIgnoreNumberingFromOne
)

// Renumber assigns group-local and backend-reported numbers to all members in
// sorted order and reports whether any number changed. The group is re-sorted
// afterwards.
func (g *Group) Renumber(mode RenumberMode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renumberLocked(mode)
}

func (g *Group) renumberLocked(mode RenumberMode) bool {
	if g.preventSortAndRenumber {
		return false
	}

	policy := g.readPolicy()
	internal := g.isInternalLocked()

	changed := false
	var next uint
	for _, member := range g.sorted {
		clientNumber := member.ClientChannelNumber()
		if !clientNumber.IsValid() && !internal && g.allChannels != nil {
			clientNumber = g.allChannels.ClientChannelNumber(member.Channel())
		}

		var number models.ChannelNumber
		switch {
		case policy.UseBackendNumbers:
			number = clientNumber
		case member.Channel().IsHidden():
			number = models.UnassignedChannelNumber
		case internal:
			next++
			number = models.NewChannelNumber(next, 0)
		case policy.StartNumbersFromOne && mode != RenumberIgnoreNumberingFromOne:
			next++
			number = models.NewChannelNumber(next, 0)
		case g.allChannels != nil:
			number = g.allChannels.ChannelNumber(member.Channel())
		default:
			number = member.ChannelNumber()
		}

		if member.ChannelNumber() != number || member.ClientChannelNumber() != clientNumber {
			// the sorted sequence and the identity index share *Member values
			member.SetChannelNumber(number)
			member.SetClientChannelNumber(clientNumber)
			changed = true
		}
	}

	if changed {
		g.changed = true
	}

	g.sortLocked()
	return changed
}
