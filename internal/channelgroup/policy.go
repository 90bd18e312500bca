package channelgroup

import (
	"context"
	"slices"

	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

// Policy is the effective numbering policy at one point in time
type Policy struct {
	SyncChannelGroups   bool
	BackendChannelOrder bool
	UseBackendNumbers   bool
	StartNumbersFromOne bool
}

// ReadPolicy derives the effective policy from the raw flags. Backend numbers
// apply with exactly one enabled backend, or with several when the "always"
// flag is set. Numbering from one never applies together with backend numbers.
func ReadPolicy(provider PolicyProvider, backends BackendDirectory) Policy {
	if provider == nil {
		defaults := models.DefaultSettings()
		return Policy{
			SyncChannelGroups:   defaults.SyncChannelGroups,
			BackendChannelOrder: defaults.BackendChannelOrder,
		}
	}

	enabled := 0
	if backends != nil {
		enabled = backends.EnabledBackendCount()
	}

	useBackendNumbers := provider.Bool(models.SettingUseBackendChannelNumbers) &&
		(enabled == 1 || (provider.Bool(models.SettingUseBackendChannelNumbersAlways) && enabled > 1))

	return Policy{
		SyncChannelGroups:   provider.Bool(models.SettingSyncChannelGroups),
		BackendChannelOrder: provider.Bool(models.SettingBackendChannelOrder),
		UseBackendNumbers:   useBackendNumbers,
		StartNumbersFromOne: provider.Bool(models.SettingStartGroupChannelNumbersFromOne) && !useBackendNumbers,
	}
}

func (g *Group) readPolicy() Policy {
	return ReadPolicy(g.deps.Policy, g.deps.Backends)
}

func (g *Group) applyPolicyLocked(p Policy) {
	g.syncChannelGroups = p.SyncChannelGroups
	g.usingBackendChannelOrder = p.BackendChannelOrder
	g.usingBackendNumbers = p.UseBackendNumbers
	g.startNumbersFromOne = p.StartNumbersFromOne
}

// OnSettingChanged re-reads the policy after one of its flags changed and
// renumbers, persists and notifies when the effective numbering changed.
func (g *Group) OnSettingChanged(key string) {
	if !slices.Contains(models.PolicySettingKeys, key) {
		return
	}

	if g.deps.Gate != nil && !g.deps.Gate.IsStarted() {
		logger.Log.Warn().
			Str("setting", key).
			Msg("Channel group setting change ignored while manager is starting")
		return
	}

	policy := g.readPolicy()

	g.mu.Lock()
	// notifications can still arrive after Close
	if !g.subscribed {
		g.mu.Unlock()
		return
	}
	numbersChanged := g.usingBackendNumbers != policy.UseBackendNumbers
	orderChanged := g.usingBackendChannelOrder != policy.BackendChannelOrder
	fromOneChanged := g.startNumbersFromOne != policy.StartNumbersFromOne
	g.applyPolicyLocked(policy)

	if !numbersChanged && !orderChanged && !fromOneChanged {
		g.mu.Unlock()
		return
	}

	logger.Log.Debug().
		Str("group", g.path.GroupName).
		Str("setting", key).
		Msg("Renumbering channel group after policy change")

	if orderChanged {
		g.updateClientPrioritiesLocked()
	}

	// without group sync, take the numbers from the internal group before sorting
	if !g.syncChannelGroups {
		g.renumberLocked(RenumberIgnoreNumberingFromOne)
	}

	renumbered := g.sortAndRenumberLocked()
	if err := g.persistLocked(context.Background()); err != nil {
		logger.Log.Error().
			Err(err).
			Str("group", g.path.GroupName).
			Msg("Failed to persist channel group after policy change")
	}

	kind := EventMemberUpdated
	if renumbered {
		kind = EventGroupInvalidated
	}
	event := g.eventLocked(kind)
	g.mu.Unlock()

	g.publish(event)
}

// updateClientPrioritiesLocked copies backend priorities to the members when
// the backend order is used; otherwise every member gets priority 0.
func (g *Group) updateClientPrioritiesLocked() bool {
	changed := false
	for _, member := range g.sorted {
		priority := 0
		if g.usingBackendChannelOrder {
			if g.deps.Backends == nil {
				continue
			}
			p, ok := g.deps.Backends.BackendPriority(member.Channel().BackendID)
			if !ok {
				continue
			}
			priority = p
		}

		if member.ClientPriority() != priority {
			member.SetClientPriority(priority)
			changed = true
		}
	}
	return changed
}
