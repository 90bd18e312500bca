package channelgroup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

// InvalidGroupID is the id of a group that was never persisted
const InvalidGroupID int64 = -1

// Group is an ordered, uniquely keyed collection of channel memberships.
//
// members and sorted always hold the same *Member values. They are only
// mutated through insertLocked, removeLocked and clearLocked.
type Group struct {
	mu sync.Mutex

	id          int64
	groupType   int
	path        models.ChannelsPath
	position    int
	hidden      bool
	lastWatched time.Time
	lastOpened  time.Time

	loaded                 bool
	changed                bool
	preventSortAndRenumber bool
	failedBackends         []int

	members map[models.StorageID]*Member
	sorted  []*Member

	// nil for the internal group itself
	allChannels *Group

	syncChannelGroups        bool
	usingBackendChannelOrder bool
	usingBackendNumbers      bool
	startNumbersFromOne      bool

	deps         Deps
	subscription int
	subscribed   bool
}

// NewGroup creates a group from its path. allChannels is the internal group of
// the same kind and must not be nil unless the group is itself internal.
func NewGroup(path models.ChannelsPath, id int64, allChannels *Group, deps Deps) *Group {
	g := &Group{
		id:          id,
		groupType:   models.GroupTypeDefault,
		path:        path,
		members:     make(map[models.StorageID]*Member),
		allChannels: allChannels,
		deps:        deps,
	}
	g.onInit()
	return g
}

// NewInternalGroup creates the group holding all channels of one kind
func NewInternalGroup(radio bool, name string, id int64, deps Deps) *Group {
	g := &Group{
		id:        id,
		groupType: models.GroupTypeInternal,
		path:      models.NewChannelsPath(radio, name),
		members:   make(map[models.StorageID]*Member),
		deps:      deps,
	}
	g.onInit()
	return g
}

// NewFromBackendGroup creates a group from a backend group description
func NewFromBackendGroup(bg models.BackendGroup, allChannels *Group, deps Deps) *Group {
	g := NewGroup(models.NewChannelsPath(bg.Radio, bg.Name), InvalidGroupID, allChannels, deps)
	g.position = bg.Position
	return g
}

// newScratchGroup creates an unregistered group that only collects backend members
func newScratchGroup(path models.ChannelsPath, members []*Member) *Group {
	g := &Group{
		id:                     InvalidGroupID,
		path:                   path,
		members:                make(map[models.StorageID]*Member, len(members)),
		preventSortAndRenumber: true,
	}
	for _, m := range members {
		if m == nil || m.Channel() == nil {
			continue
		}
		if _, dup := g.members[m.Key()]; dup {
			continue
		}
		g.insertLocked(m)
	}
	return g
}

func (g *Group) onInit() {
	g.applyPolicyLocked(g.readPolicy())
	if g.deps.Policy == nil {
		return
	}
	g.subscription = g.deps.Policy.Subscribe(g.OnSettingChanged, models.PolicySettingKeys...)
	g.subscribed = true
}

// Close deregisters the group from policy notifications and drops all members.
// A closed group no longer persists, so a late notification cannot overwrite
// its stored members.
func (g *Group) Close() {
	g.mu.Lock()
	subscribed, id := g.subscribed, g.subscription
	g.subscribed = false
	g.loaded = false
	g.mu.Unlock()

	if subscribed && g.deps.Policy != nil {
		g.deps.Policy.Unsubscribe(id)
	}
	g.Unload()
}

/********** dual index **********/

func (g *Group) insertLocked(m *Member) {
	key := m.Key()
	if _, exists := g.members[key]; exists {
		panic(fmt.Sprintf("channelgroup: duplicate member %s in group %q", key, g.path.GroupName))
	}
	g.members[key] = m
	g.sorted = append(g.sorted, m)
}

func (g *Group) removeLocked(key models.StorageID) *Member {
	m, ok := g.members[key]
	if !ok {
		return nil
	}
	delete(g.members, key)
	for i, s := range g.sorted {
		if s == m {
			g.sorted = append(g.sorted[:i], g.sorted[i+1:]...)
			break
		}
	}
	return m
}

func (g *Group) clearLocked() {
	g.members = make(map[models.StorageID]*Member)
	g.sorted = nil
}

// Unload drops all members and the failed backend list
func (g *Group) Unload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearLocked()
	g.failedBackends = nil
}

/********** getters **********/

// ID returns the group id
func (g *Group) ID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

// SetGroupID sets the group id; negative ids are ignored
func (g *Group) SetGroupID(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id >= 0 {
		g.id = id
	}
}

// IsNew reports whether the group was never persisted
func (g *Group) IsNew() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id <= 0
}

// GroupType returns the group type
func (g *Group) GroupType() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.groupType
}

// IsInternal reports whether this is the all-channels group of its kind
func (g *Group) IsInternal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isInternalLocked()
}

func (g *Group) isInternalLocked() bool {
	return g.groupType == models.GroupTypeInternal
}

// Path returns the group path
func (g *Group) Path() models.ChannelsPath {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

// GroupName returns the group name
func (g *Group) GroupName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path.GroupName
}

// IsRadio reports whether the group holds radio channels
func (g *Group) IsRadio() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path.Radio
}

// Position returns the user-defined position among groups
func (g *Group) Position() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

// IsHidden reports whether the group is hidden
func (g *Group) IsHidden() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hidden
}

// LastWatched returns when a channel of the group was last watched
func (g *Group) LastWatched() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastWatched
}

// LastOpened returns when the group was last opened
func (g *Group) LastOpened() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOpened
}

// IsLoaded reports whether Load completed
func (g *Group) IsLoaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// HasChanges reports whether the group has unsaved changes
func (g *Group) HasChanges() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.changed
}

// FailedBackends returns the backends that failed during the last reconciliation
func (g *Group) FailedBackends() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	failed := make([]int, len(g.failedBackends))
	copy(failed, g.failedBackends)
	return failed
}

// Size returns the number of members
func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// HasChannels reports whether the group has any members
func (g *Group) HasChannels() bool {
	return g.Size() > 0
}

// PreventSortAndRenumber reports whether the group is in suppress mode
func (g *Group) PreventSortAndRenumber() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.preventSortAndRenumber
}

// SetPreventSortAndRenumber enters or leaves suppress mode. Only one batch may
// be in flight per group.
func (g *Group) SetPreventSortAndRenumber(prevent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preventSortAndRenumber = prevent
}

/********** setters **********/

// SetGroupType changes the group type
func (g *Group) SetGroupType(groupType int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.groupType != groupType {
		g.groupType = groupType
		if g.loaded {
			g.changed = true
		}
	}
}

// SetPath renames the group or moves it to the other kind and persists immediately
func (g *Group) SetPath(ctx context.Context, path models.ChannelsPath) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == path {
		return nil
	}
	g.path = path
	if !g.loaded {
		return nil
	}
	g.changed = true
	return g.persistLocked(ctx)
}

// SetGroupName renames the group and persists immediately
func (g *Group) SetGroupName(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path.GroupName == name {
		return nil
	}
	g.path = models.NewChannelsPath(g.path.Radio, name)
	if !g.loaded {
		return nil
	}
	g.changed = true
	return g.persistLocked(ctx)
}

// SetHidden hides or shows the group and reports whether the group has changes
func (g *Group) SetHidden(hidden bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hidden != hidden {
		g.hidden = hidden
		if g.loaded {
			g.changed = true
		}
	}
	return g.changed
}

// SetPosition sets the position among groups
func (g *Group) SetPosition(position int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.position != position {
		g.position = position
		if g.loaded {
			g.changed = true
		}
	}
}

// SetLastWatched records when a channel of the group was last watched
func (g *Group) SetLastWatched(ctx context.Context, t time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastWatched.Equal(t) {
		return nil
	}
	g.lastWatched = t
	if !g.loaded || g.deps.Store == nil {
		return nil
	}
	if err := g.deps.Store.UpdateLastWatched(ctx, g.id, t); err != nil {
		return fmt.Errorf("failed to update last watched: %w", err)
	}
	return nil
}

// SetLastOpened records when the group was last opened
func (g *Group) SetLastOpened(ctx context.Context, t time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastOpened.Equal(t) {
		return nil
	}
	g.lastOpened = t
	if !g.loaded || g.deps.Store == nil {
		return nil
	}
	if err := g.deps.Store.UpdateLastOpened(ctx, g.id, t); err != nil {
		return fmt.Errorf("failed to update last opened: %w", err)
	}
	return nil
}

// SetSavedState applies persisted group attributes without marking the group dirty
func (g *Group) SetSavedState(position int, hidden bool, lastWatched, lastOpened time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = position
	g.hidden = hidden
	g.lastWatched = lastWatched
	g.lastOpened = lastOpened
}

/********** persistence **********/

// Persist writes the group and its members to the store
func (g *Group) Persist(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.persistLocked(ctx)
}

func (g *Group) persistLocked(ctx context.Context) error {
	// a persisted group that is not fully loaded would overwrite its members
	if !g.loaded && g.id != InvalidGroupID {
		return nil
	}
	if g.id == InvalidGroupID {
		g.loaded = true
	}
	if g.deps.Store == nil {
		return ErrNoStore
	}

	logger.Log.Debug().
		Str("group", g.path.GroupName).
		Int("members", len(g.members)).
		Msg("Persisting channel group")

	id, err := g.deps.Store.Persist(ctx, g.snapshotLocked())
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("group", g.path.GroupName).
			Msg("Failed to persist channel group")
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	if id > 0 {
		g.id = id
	}
	for _, m := range g.sorted {
		m.SetSaved()
	}
	g.changed = false
	return nil
}

func (g *Group) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:          g.id,
		GroupType:   g.groupType,
		Path:        g.path,
		Position:    g.position,
		Hidden:      g.hidden,
		LastWatched: g.lastWatched,
		LastOpened:  g.lastOpened,
		Members:     make([]MemberInfo, 0, len(g.sorted)),
	}
	for _, m := range g.sorted {
		snap.Members = append(snap.Members, m.Info())
	}
	return snap
}

func (g *Group) eventLocked(kind EventKind) Event {
	return Event{
		Kind:      kind,
		GroupID:   g.id,
		GroupName: g.path.GroupName,
		Radio:     g.path.Radio,
	}
}

func (g *Group) publish(events ...Event) {
	if g.deps.Events == nil {
		return
	}
	for _, e := range events {
		g.deps.Events.Publish(e)
	}
}
