// Package backend provides the channel sources groups are reconciled against.
package backend

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

const (
	defaultQueryTimeout     = 10 * time.Second
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
)

// Backend is one registered channel source
type Backend struct {
	ID       int
	Name     string
	Priority int

	enabled bool
	source  Source
	breaker *CircuitBreaker
}

// Info describes the state of a backend
type Info struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
	State    string `json:"state"`
}

// Option configures a Directory
type Option func(*Directory)

// WithQueryTimeout bounds every single backend query
func WithQueryTimeout(timeout time.Duration) Option {
	return func(d *Directory) {
		if timeout > 0 {
			d.queryTimeout = timeout
		}
	}
}

// WithCircuitBreaker sets the failure threshold and reset timeout of the per-backend breakers
func WithCircuitBreaker(threshold int, resetTimeout time.Duration) Option {
	return func(d *Directory) {
		d.failureThreshold = threshold
		d.resetTimeout = resetTimeout
	}
}

// Directory keeps the registered backends and answers group queries across them.
// It is safe for concurrent use.
type Directory struct {
	mu               sync.RWMutex
	backends         map[int]*Backend
	queryTimeout     time.Duration
	failureThreshold int
	resetTimeout     time.Duration
	log              zerolog.Logger
}

var _ channelgroup.BackendDirectory = (*Directory)(nil)

// NewDirectory creates an empty directory
func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		backends:         make(map[int]*Backend),
		queryTimeout:     defaultQueryTimeout,
		failureThreshold: defaultFailureThreshold,
		resetTimeout:     defaultResetTimeout,
		log:              logger.Component("backend"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDirectoryFromCatalog creates a directory with every backend of the catalog registered
func NewDirectoryFromCatalog(cat *Catalog, opts ...Option) (*Directory, error) {
	d := NewDirectory(opts...)
	for _, e := range cat.Backends {
		source, err := e.NewSource(d.queryTimeout)
		if err != nil {
			return nil, err
		}
		if err := d.Register(e.ID, e.Name, e.Priority, e.IsEnabled(), source); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register adds a backend
func (d *Directory) Register(id int, name string, priority int, enabled bool, source Source) error {
	if id <= 0 {
		return fmt.Errorf("invalid backend id %d", id)
	}
	if source == nil {
		return fmt.Errorf("backend %d has no source", id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.backends[id]; ok {
		return fmt.Errorf("backend %d is already registered", id)
	}
	d.backends[id] = &Backend{
		ID:       id,
		Name:     name,
		Priority: priority,
		enabled:  enabled,
		source:   source,
		breaker:  NewCircuitBreaker(d.failureThreshold, d.resetTimeout),
	}
	return nil
}

// SetEnabled enables or disables a backend. Re-enabling closes its circuit.
func (d *Directory) SetEnabled(id int, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.backends[id]
	if !ok {
		return ErrBackendNotFound
	}
	if enabled && !b.enabled {
		b.breaker.Reset()
	}
	b.enabled = enabled
	return nil
}

// Backends returns the state of every backend ordered by id
func (d *Directory) Backends() []Info {
	backends := d.snapshot(false)
	infos := make([]Info, 0, len(backends))
	for _, b := range backends {
		infos = append(infos, Info{
			ID:       b.ID,
			Name:     b.Name,
			Priority: b.Priority,
			Enabled:  b.enabled,
			State:    b.breaker.State().String(),
		})
	}
	return infos
}

// snapshot returns the registered backends ordered by id
func (d *Directory) snapshot(enabledOnly bool) []Backend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	backends := make([]Backend, 0, len(d.backends))
	for _, b := range d.backends {
		if enabledOnly && !b.enabled {
			continue
		}
		backends = append(backends, *b)
	}
	slices.SortFunc(backends, func(a, b Backend) int { return a.ID - b.ID })
	return backends
}

// query asks one backend for its channels under its circuit breaker
func (d *Directory) query(ctx context.Context, b Backend) ([]SourceChannel, error) {
	var channels []SourceChannel
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		qctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
		defer cancel()

		var err error
		channels, err = b.source.Channels(qctx)
		return err
	})
	return channels, err
}

// QueryGroupMembers asks every enabled backend for the members of the group at
// path. The internal group gets every channel of the path's kind. Backends that
// fail or whose circuit is open are reported in failed.
func (d *Directory) QueryGroupMembers(ctx context.Context, path models.ChannelsPath, internal bool) ([]*channelgroup.Member, []int, error) {
	var (
		members []*channelgroup.Member
		failed  []int
	)

	for _, b := range d.snapshot(true) {
		channels, err := d.query(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			d.log.Warn().
				Err(err).
				Int("backend_id", b.ID).
				Str("group", path.String()).
				Msg("Failed to query backend for group members")
			failed = append(failed, b.ID)
			continue
		}

		for _, ch := range channels {
			if ch.Radio != path.Radio || (!internal && !ch.InGroup(path.GroupName)) {
				continue
			}
			channel := models.NewChannel(b.ID, ch.UniqueID, ch.Name, ch.Radio)
			channel.SetIconPath(ch.IconPath)
			channel.SetEPGID(ch.EPGID)
			members = append(members, channelgroup.NewMember(channel, models.UnassignedChannelNumber, b.Priority, ch.Order, ch.Number))
		}
	}

	return members, failed, nil
}

// Groups returns the groups the enabled backends report for one kind, in the
// order they are first seen. Failed backends are skipped.
func (d *Directory) Groups(ctx context.Context, radio bool) ([]models.BackendGroup, error) {
	var groups []models.BackendGroup
	seen := make(map[string]bool)

	for _, b := range d.snapshot(true) {
		channels, err := d.query(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.log.Warn().Err(err).Int("backend_id", b.ID).Msg("Failed to query backend for groups")
			continue
		}
		for _, ch := range channels {
			if ch.Radio != radio {
				continue
			}
			for _, name := range ch.Groups {
				if seen[name] {
					continue
				}
				seen[name] = true
				groups = append(groups, models.BackendGroup{Radio: radio, Name: name, Position: len(groups) + 1})
			}
		}
	}
	return groups, nil
}

// BackendPriority returns the priority of a registered backend
func (d *Directory) BackendPriority(backendID int) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.backends[backendID]
	if !ok {
		return 0, false
	}
	return b.Priority, true
}

// IsBackendActive reports whether a backend is enabled and its circuit is not open
func (d *Directory) IsBackendActive(backendID int) bool {
	d.mu.RLock()
	b, ok := d.backends[backendID]
	enabled := ok && b.enabled
	d.mu.RUnlock()
	return enabled && !b.breaker.IsOpen()
}

// EnabledBackendCount returns the number of enabled backends
func (d *Directory) EnabledBackendCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	for _, b := range d.backends {
		if b.enabled {
			count++
		}
	}
	return count
}
