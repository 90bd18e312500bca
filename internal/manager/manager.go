// Package manager owns the channel groups of both kinds and keeps them in
// sync with the backends.
package manager

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/db"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

// refreshTimeout bounds one periodic refresh
const refreshTimeout = time.Minute

// GroupRepository reads and deletes persisted group rows
type GroupRepository interface {
	GetInternal(ctx context.Context, radio bool) (*models.GroupRecord, error)
	GetByName(ctx context.Context, radio bool, name string) (*models.GroupRecord, error)
	ListByRadio(ctx context.Context, radio bool) ([]*models.GroupRecord, error)
	Delete(ctx context.Context, id int64) error
}

// Backends is the backend directory plus group discovery
type Backends interface {
	channelgroup.BackendDirectory
	Groups(ctx context.Context, radio bool) ([]models.BackendGroup, error)
}

// Config holds the names of the internal groups and the refresh interval
type Config struct {
	TVGroupName     string
	RadioGroupName  string
	RefreshInterval time.Duration
}

// GroupUpdate holds optional changes to a group's attributes
type GroupUpdate struct {
	Name     *string
	Position *int
	Hidden   *bool
}

// kindGroups holds the groups of one kind
type kindGroups struct {
	internal *channelgroup.Group
	groups   []*channelgroup.Group
}

// Manager loads, reconciles and serves all channel groups.
// It implements channelgroup.StartupGate for the groups it owns.
type Manager struct {
	deps     channelgroup.Deps
	repo     GroupRepository
	backends Backends
	cfg      Config
	log      zerolog.Logger

	mu       sync.RWMutex
	kinds    map[bool]*kindGroups
	byID     map[int64]*channelgroup.Group
	started  atomic.Bool
	starting bool
	stopped  bool

	refreshTicker *time.Ticker
	stopChan      chan struct{}
	refreshDone   chan struct{}
}

var _ channelgroup.StartupGate = (*Manager)(nil)

// New creates a manager. policy and events may be nil.
func New(store channelgroup.Store, repo GroupRepository, backends Backends, policy channelgroup.PolicyProvider, events channelgroup.EventSink, cfg Config) *Manager {
	m := &Manager{
		repo:        repo,
		backends:    backends,
		cfg:         cfg,
		log:         logger.Component("manager"),
		kinds:       make(map[bool]*kindGroups),
		byID:        make(map[int64]*channelgroup.Group),
		stopChan:    make(chan struct{}),
		refreshDone: make(chan struct{}),
	}
	m.deps = channelgroup.Deps{
		Store:    store,
		Backends: backends,
		Policy:   policy,
		Events:   events,
		Gate:     m,
	}
	return m
}

// IsStarted reports whether Start completed
func (m *Manager) IsStarted() bool {
	return m.started.Load()
}

func (m *Manager) internalName(radio bool) string {
	if radio {
		return m.cfg.RadioGroupName
	}
	return m.cfg.TVGroupName
}

// Start loads the internal groups first, then the groups the backends report
// and finally the remaining persisted groups. Afterwards groups are refreshed
// every RefreshInterval. Calling Start again once started does nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerStopped
	}
	if m.starting || m.started.Load() {
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	m.mu.Unlock()

	for _, radio := range []bool{false, true} {
		if err := m.loadKind(ctx, radio); err != nil {
			m.mu.Lock()
			m.starting = false
			m.mu.Unlock()
			return err
		}
	}

	// Stop may have run while the groups were loading
	m.mu.Lock()
	m.starting = false
	if m.stopped {
		m.mu.Unlock()
		m.releaseGroups()
		return ErrManagerStopped
	}
	m.started.Store(true)
	if m.cfg.RefreshInterval > 0 {
		m.refreshTicker = time.NewTicker(m.cfg.RefreshInterval)
		go m.runRefreshLoop()
	}
	m.mu.Unlock()

	m.log.Info().
		Int("tv_groups", len(m.Groups(false))).
		Int("radio_groups", len(m.Groups(true))).
		Dur("refresh_interval", m.cfg.RefreshInterval).
		Msg("Channel group manager started")
	return nil
}

func (m *Manager) loadKind(ctx context.Context, radio bool) error {
	internal, err := m.loadInternal(ctx, radio)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.kinds[radio] = &kindGroups{internal: internal}
	m.mu.Unlock()
	m.register(internal)

	m.discoverBackendGroups(ctx, radio)

	records, err := m.repo.ListByRadio(ctx, radio)
	if err != nil {
		return fmt.Errorf("failed to list channel groups: %w", err)
	}
	for _, rec := range records {
		if rec.GroupType == models.GroupTypeInternal || m.isLoaded(rec.ID) {
			continue
		}
		g := channelgroup.NewGroup(models.NewChannelsPath(radio, rec.Name), rec.ID, internal, m.deps)
		g.SetGroupType(rec.GroupType)
		g.SetSavedState(rec.Position, rec.Hidden, rec.LastWatched, rec.LastOpened)
		if !m.loadGroup(ctx, g) {
			continue
		}

		// backend groups nobody reports any more disappear once empty
		if rec.GroupType != models.GroupTypeUserDefined && !g.HasChannels() && len(g.FailedBackends()) == 0 {
			if err := m.repo.Delete(ctx, rec.ID); err != nil && !db.IsNotFound(err) {
				m.log.Error().Err(err).Str("group", rec.Name).Msg("Failed to delete empty channel group")
			}
			g.Close()
			m.log.Info().Str("group", rec.Name).Msg("Removed empty channel group")
			continue
		}
		m.register(g)
	}
	return nil
}

func (m *Manager) loadInternal(ctx context.Context, radio bool) (*channelgroup.Group, error) {
	id := channelgroup.InvalidGroupID
	rec, err := m.repo.GetInternal(ctx, radio)
	switch {
	case err == nil:
		id = rec.ID
	case !db.IsNotFound(err):
		return nil, fmt.Errorf("failed to look up internal group: %w", err)
	}

	g := channelgroup.NewInternalGroup(radio, m.internalName(radio), id, m.deps)
	if rec != nil {
		g.SetSavedState(rec.Position, rec.Hidden, rec.LastWatched, rec.LastOpened)
	}
	if _, err := g.Load(ctx); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.Persist(ctx); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// discoverBackendGroups creates and loads the backend groups not loaded yet
func (m *Manager) discoverBackendGroups(ctx context.Context, radio bool) {
	reported, err := m.backends.Groups(ctx, radio)
	if err != nil {
		m.log.Warn().Err(err).Bool("radio", radio).Msg("Failed to discover backend groups")
		return
	}

	internal := m.Internal(radio)
	for _, bg := range reported {
		if bg.Name == internal.GroupName() || m.groupByName(radio, bg.Name) != nil {
			continue
		}

		var g *channelgroup.Group
		rec, err := m.repo.GetByName(ctx, radio, bg.Name)
		switch {
		case err == nil:
			if rec.GroupType == models.GroupTypeUserDefined {
				m.log.Warn().Str("group", bg.Name).Msg("Backend group name is taken by a user group")
				continue
			}
			g = channelgroup.NewGroup(models.NewChannelsPath(radio, rec.Name), rec.ID, internal, m.deps)
			g.SetSavedState(rec.Position, rec.Hidden, rec.LastWatched, rec.LastOpened)
		case db.IsNotFound(err):
			g = channelgroup.NewFromBackendGroup(bg, internal, m.deps)
		default:
			m.log.Error().Err(err).Str("group", bg.Name).Msg("Failed to look up channel group")
			continue
		}

		if m.loadGroup(ctx, g) {
			m.register(g)
		}
	}
}

// loadGroup loads and persists a group and reports whether it is usable
func (m *Manager) loadGroup(ctx context.Context, g *channelgroup.Group) bool {
	if _, err := g.Load(ctx); err != nil {
		m.log.Error().Err(err).Str("group", g.GroupName()).Msg("Failed to load channel group")
		g.Close()
		return false
	}
	if err := g.Persist(ctx); err != nil {
		m.log.Error().Err(err).Str("group", g.GroupName()).Msg("Failed to persist channel group")
		g.Close()
		return false
	}
	return true
}

func (m *Manager) register(g *channelgroup.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := m.kinds[g.IsRadio()]
	if !g.IsInternal() {
		kind.groups = append(kind.groups, g)
	}
	m.byID[g.ID()] = g
}

func (m *Manager) unregister(g *channelgroup.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind, ok := m.kinds[g.IsRadio()]; ok {
		kind.groups = slices.DeleteFunc(kind.groups, func(other *channelgroup.Group) bool { return other == g })
	}
	delete(m.byID, g.ID())
}

func (m *Manager) isLoaded(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

func (m *Manager) groupByName(radio bool, name string) *channelgroup.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kind, ok := m.kinds[radio]
	if !ok {
		return nil
	}
	for _, g := range kind.groups {
		if g.GroupName() == name {
			return g
		}
	}
	return nil
}

// Internal returns the internal group of one kind, nil before Start
func (m *Manager) Internal(radio bool) *channelgroup.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kind, ok := m.kinds[radio]
	if !ok {
		return nil
	}
	return kind.internal
}

// Groups returns the groups of one kind, internal group first, the rest by position and name
func (m *Manager) Groups(radio bool) []*channelgroup.Group {
	m.mu.RLock()
	kind, ok := m.kinds[radio]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	groups := slices.Clone(kind.groups)
	internal := kind.internal
	m.mu.RUnlock()

	slices.SortStableFunc(groups, func(a, b *channelgroup.Group) int {
		if c := cmp.Compare(a.Position(), b.Position()); c != 0 {
			return c
		}
		return strings.Compare(a.GroupName(), b.GroupName())
	})
	return append([]*channelgroup.Group{internal}, groups...)
}

// Group returns a loaded group by id
func (m *Manager) Group(id int64) (*channelgroup.Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byID[id]
	return g, ok
}

// CreateUserGroup creates and persists an empty user-defined group
func (m *Manager) CreateUserGroup(ctx context.Context, radio bool, name string) (*channelgroup.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidGroupName
	}
	if !m.IsStarted() {
		return nil, ErrNotStarted
	}
	internal := m.Internal(radio)
	if name == internal.GroupName() || m.groupByName(radio, name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupExists, name)
	}

	g := channelgroup.NewGroup(models.NewChannelsPath(radio, name), channelgroup.InvalidGroupID, internal, m.deps)
	g.SetGroupType(models.GroupTypeUserDefined)
	g.SetPosition(len(m.Groups(radio)))
	if err := g.Persist(ctx); err != nil {
		g.Close()
		if db.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrGroupExists, name)
		}
		return nil, err
	}
	m.register(g)

	m.log.Info().Str("group", name).Int64("id", g.ID()).Bool("radio", radio).Msg("User channel group created")
	return g, nil
}

// DeleteGroup removes a user-defined group
func (m *Manager) DeleteGroup(ctx context.Context, id int64) error {
	g, ok := m.Group(id)
	if !ok {
		return ErrGroupNotFound
	}
	if g.GroupType() != models.GroupTypeUserDefined {
		return ErrNotUserGroup
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete channel group: %w", err)
	}
	m.unregister(g)
	g.Close()
	m.publish(g, channelgroup.EventGroupInvalidated)
	return nil
}

// UpdateGroup applies attribute changes and persists the group
func (m *Manager) UpdateGroup(ctx context.Context, id int64, update GroupUpdate) (*channelgroup.Group, error) {
	g, ok := m.Group(id)
	if !ok {
		return nil, ErrGroupNotFound
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, ErrInvalidGroupName
		}
		if g.GroupType() != models.GroupTypeUserDefined {
			return nil, ErrNotUserGroup
		}
		if other := m.groupByName(g.IsRadio(), name); other != nil && other != g {
			return nil, fmt.Errorf("%w: %s", ErrGroupExists, name)
		}
		if err := g.SetGroupName(ctx, name); err != nil {
			return nil, err
		}
	}
	if update.Position != nil {
		g.SetPosition(*update.Position)
	}
	if update.Hidden != nil {
		g.SetHidden(*update.Hidden)
	}
	if g.HasChanges() {
		if err := g.Persist(ctx); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AppendChannel adds a channel of the internal group to a user-defined group
func (m *Manager) AppendChannel(ctx context.Context, groupID int64, key models.StorageID) error {
	g, ok := m.Group(groupID)
	if !ok {
		return ErrGroupNotFound
	}
	if g.GroupType() != models.GroupTypeUserDefined {
		return ErrNotUserGroup
	}

	channel := m.Internal(g.IsRadio()).ChannelByKey(key)
	if channel == nil {
		return fmt.Errorf("%w: %s", channelgroup.ErrUnknownChannel, key)
	}
	if !g.AppendToGroup(channel) {
		return fmt.Errorf("%w: %s", channelgroup.ErrAlreadyMember, key)
	}
	if err := g.Persist(ctx); err != nil {
		return err
	}
	m.publish(g, channelgroup.EventGroupInvalidated)
	return nil
}

// RemoveChannel removes a channel from a user-defined group
func (m *Manager) RemoveChannel(ctx context.Context, groupID int64, key models.StorageID) error {
	g, ok := m.Group(groupID)
	if !ok {
		return ErrGroupNotFound
	}
	if g.GroupType() != models.GroupTypeUserDefined {
		return ErrNotUserGroup
	}

	channel := g.ChannelByKey(key)
	if channel == nil || !g.RemoveFromGroup(channel) {
		return fmt.Errorf("%w: %s", channelgroup.ErrNotMember, key)
	}
	if err := g.Persist(ctx); err != nil {
		return err
	}
	m.publish(g, channelgroup.EventGroupInvalidated)
	return nil
}

// UpdateChannel applies user edits to a channel of a user-defined group.
// The channel row itself is written with the internal group.
func (m *Manager) UpdateChannel(ctx context.Context, groupID int64, key models.StorageID, update channelgroup.ChannelUpdate) error {
	g, ok := m.Group(groupID)
	if !ok {
		return ErrGroupNotFound
	}
	if g.GroupType() != models.GroupTypeUserDefined {
		return ErrNotUserGroup
	}

	if !g.UpdateChannel(key, update) {
		return fmt.Errorf("%w: %s", channelgroup.ErrNotMember, key)
	}
	if err := g.Persist(ctx); err != nil {
		return err
	}
	if err := m.persistInternal(ctx, g.IsRadio()); err != nil {
		return err
	}
	m.publish(g, channelgroup.EventGroupInvalidated)
	return nil
}

// OpenGroup records that the group was opened now
func (m *Manager) OpenGroup(ctx context.Context, id int64) (*channelgroup.Group, error) {
	g, ok := m.Group(id)
	if !ok {
		return nil, ErrGroupNotFound
	}
	if err := g.SetLastOpened(ctx, time.Now().UTC()); err != nil {
		return nil, err
	}
	return g, nil
}

// MarkWatched records that a channel of the group was played at t
func (m *Manager) MarkWatched(ctx context.Context, groupID int64, key models.StorageID, t time.Time) (*models.Channel, error) {
	g, ok := m.Group(groupID)
	if !ok {
		return nil, ErrGroupNotFound
	}

	channel := g.ChannelByKey(key)
	if channel == nil {
		return nil, fmt.Errorf("%w: %s", channelgroup.ErrNotMember, key)
	}
	channel.SetLastWatched(t)
	if err := g.SetLastWatched(ctx, t); err != nil {
		return nil, err
	}
	if err := m.persistInternal(ctx, g.IsRadio()); err != nil {
		return nil, err
	}
	return channel, nil
}

// persistInternal writes the channel rows of one kind
func (m *Manager) persistInternal(ctx context.Context, radio bool) error {
	internal := m.Internal(radio)
	if internal == nil {
		return nil
	}
	return internal.Persist(ctx)
}

func (m *Manager) publish(g *channelgroup.Group, kind channelgroup.EventKind) {
	if m.deps.Events == nil {
		return
	}
	m.deps.Events.Publish(channelgroup.Event{
		Kind:      kind,
		GroupID:   g.ID(),
		GroupName: g.GroupName(),
		Radio:     g.IsRadio(),
	})
}

// Refresh reconciles every group with the backends: internal groups first,
// then newly reported backend groups are added and the others updated
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.IsStarted() {
		return ErrNotStarted
	}

	var errs []error
	for _, radio := range []bool{false, true} {
		internal := m.Internal(radio)
		if internal == nil {
			continue
		}
		removed, err := internal.Update(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", internal.GroupName(), err))
			continue
		}
		m.discoverBackendGroups(ctx, radio)

		for _, g := range m.Groups(radio)[1:] {
			if err := m.removeFromGroup(ctx, g, removed); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", g.GroupName(), err))
				continue
			}
			if _, err := g.Update(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", g.GroupName(), err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.log.Error().Err(err).Msg("Channel group refresh finished with errors")
		return err
	}
	m.log.Debug().Msg("Channel groups refreshed")
	return nil
}

// removeFromGroup drops channels that left the internal group
func (m *Manager) removeFromGroup(ctx context.Context, g *channelgroup.Group, channels []*models.Channel) error {
	changed := false
	for _, channel := range channels {
		if g.RemoveFromGroup(channel) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := g.Persist(ctx); err != nil {
		return err
	}
	m.publish(g, channelgroup.EventGroupInvalidated)
	return nil
}

func (m *Manager) runRefreshLoop() {
	defer close(m.refreshDone)

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.refreshTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			_ = m.Refresh(ctx) // errors are logged by Refresh
			cancel()
		}
	}
}

// Stop ends periodic refreshing and releases all groups
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	ticker := m.refreshTicker
	m.mu.Unlock()

	m.started.Store(false)
	close(m.stopChan)
	if ticker != nil {
		<-m.refreshDone
		ticker.Stop()
	}

	count := m.releaseGroups()
	m.log.Info().Int("groups", count).Msg("Channel group manager stopped")
}

// releaseGroups forgets and closes every group and returns how many there were
func (m *Manager) releaseGroups() int {
	m.mu.Lock()
	var groups []*channelgroup.Group
	for _, kind := range m.kinds {
		groups = append(groups, kind.groups...)
		if kind.internal != nil {
			groups = append(groups, kind.internal)
		}
	}
	m.kinds = make(map[bool]*kindGroups)
	m.byID = make(map[int64]*channelgroup.Group)
	m.mu.Unlock()

	for _, g := range groups {
		g.Close()
	}
	return len(groups)
}
