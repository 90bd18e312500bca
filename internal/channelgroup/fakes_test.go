package channelgroup

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/lineup/internal/models"
)

const allChannelsName = "All channels"

// backendEntry describes one channel as a fake backend reports it
type backendEntry struct {
	backendID int
	uid       int
	name      string
	number    uint
	order     int
}

type fakeBackends struct {
	mu         sync.Mutex
	all        []backendEntry
	groups     map[string][]backendEntry
	failed     []int
	priorities map[int]int
	enabled    int
	inactive   map[int]bool
}

func newFakeBackends(entries ...backendEntry) *fakeBackends {
	return &fakeBackends{
		all:        entries,
		groups:     make(map[string][]backendEntry),
		priorities: make(map[int]int),
		enabled:    1,
		inactive:   make(map[int]bool),
	}
}

func (f *fakeBackends) QueryGroupMembers(_ context.Context, path models.ChannelsPath, internal bool) ([]*Member, []int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.groups[path.GroupName]
	if internal {
		entries = f.all
	}

	var members []*Member
	for _, e := range entries {
		if slices.Contains(f.failed, e.backendID) {
			continue
		}
		ch := models.NewChannel(e.backendID, e.uid, e.name, path.Radio)
		members = append(members, NewMember(ch, models.UnassignedChannelNumber, f.priorities[e.backendID], e.order, models.NewChannelNumber(e.number, 0)))
	}
	return members, slices.Clone(f.failed), nil
}

func (f *fakeBackends) BackendPriority(backendID int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.priorities[backendID]
	return p, ok
}

func (f *fakeBackends) IsBackendActive(backendID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.inactive[backendID]
}

func (f *fakeBackends) EnabledBackendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeBackends) setAll(entries ...backendEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = entries
}

func (f *fakeBackends) setFailed(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = ids
}

type fakePolicy struct {
	mu     sync.Mutex
	flags  map[string]bool
	subs   map[int]func(string)
	order  []int
	nextID int
}

func newFakePolicy() *fakePolicy {
	return &fakePolicy{
		flags: map[string]bool{
			models.SettingSyncChannelGroups:   true,
			models.SettingBackendChannelOrder: true,
		},
		subs: make(map[int]func(string)),
	}
}

func (p *fakePolicy) Bool(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags[key]
}

func (p *fakePolicy) Subscribe(fn func(string), _ ...string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.subs[p.nextID] = fn
	p.order = append(p.order, p.nextID)
	return p.nextID
}

func (p *fakePolicy) Unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, id)
}

// Set changes a flag and notifies subscribers in subscription order
func (p *fakePolicy) Set(key string, value bool) {
	p.mu.Lock()
	p.flags[key] = value
	var fns []func(string)
	for _, id := range p.order {
		if fn, ok := p.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

func (p *fakePolicy) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

type fakeStore struct {
	mu          sync.Mutex
	persisted   map[int64]*Snapshot
	members     map[int64][]*Member
	nextGroup   int64
	nextChannel int64
	persists    int
	lastWatched map[int64]time.Time
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persisted:   make(map[int64]*Snapshot),
		members:     make(map[int64][]*Member),
		lastWatched: make(map[int64]time.Time),
	}
}

func (s *fakeStore) LoadMembers(_ context.Context, groupID int64, _ bool, _ ChannelResolver) ([]*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.members[groupID], nil
}

func (s *fakeStore) Persist(_ context.Context, snap *Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.persists++
	id := snap.ID
	if id <= 0 {
		s.nextGroup++
		id = s.nextGroup
	}
	for _, m := range snap.Members {
		if m.Channel.ID() <= 0 {
			s.nextChannel++
			m.Channel.SetID(s.nextChannel)
		}
	}
	s.persisted[id] = snap
	return id, nil
}

func (s *fakeStore) UpdateLastWatched(_ context.Context, groupID int64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWatched[groupID] = t
	return nil
}

func (s *fakeStore) UpdateLastOpened(context.Context, int64, time.Time) error {
	return nil
}

func (s *fakeStore) persistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recordingSink) forGroup(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.GroupName == name {
			out = append(out, e)
		}
	}
	return out
}

type gate struct{ started bool }

func (g *gate) IsStarted() bool { return g.started }

// testEnv bundles fake collaborators
type testEnv struct {
	backends *fakeBackends
	policy   *fakePolicy
	store    *fakeStore
	sink     *recordingSink
	gate     *gate
}

func newTestEnv(entries ...backendEntry) *testEnv {
	return &testEnv{
		backends: newFakeBackends(entries...),
		policy:   newFakePolicy(),
		store:    newFakeStore(),
		sink:     &recordingSink{},
		gate:     &gate{started: true},
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Store:    e.store,
		Backends: e.backends,
		Policy:   e.policy,
		Events:   e.sink,
		Gate:     e.gate,
	}
}

// loadInternal creates and loads the internal TV group
func (e *testEnv) loadInternal(t *testing.T) *Group {
	t.Helper()
	g := NewInternalGroup(false, allChannelsName, InvalidGroupID, e.deps())
	_, err := g.Load(context.Background())
	require.NoError(t, err)
	assertConsistent(t, g)
	return g
}

// assertConsistent checks that both indices hold the same members
func assertConsistent(t *testing.T, g *Group) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()

	require.Len(t, g.sorted, len(g.members))
	seen := make(map[models.StorageID]bool, len(g.sorted))
	for _, m := range g.sorted {
		key := m.Key()
		require.False(t, seen[key], "duplicate %s in sorted members", key)
		seen[key] = true
		require.Same(t, g.members[key], m, "index mismatch for %s", key)
	}
}

func names(members []MemberInfo) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Channel.Name())
	}
	return out
}

func numbers(members []MemberInfo) []uint {
	out := make([]uint, 0, len(members))
	for _, m := range members {
		out = append(out, m.ChannelNumber.Major)
	}
	return out
}
