// Package policy holds the channel numbering flags and notifies subscribers when they change.
package policy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/models"
)

// ErrUnknownSetting is returned for keys that are not policy flags
var ErrUnknownSetting = errors.New("unknown policy setting")

// Store persists flag changes
type Store interface {
	Flags(ctx context.Context) (map[string]bool, error)
	SetFlag(ctx context.Context, key string, value bool) error
}

type subscription struct {
	fn   func(key string)
	keys []string
}

func (s subscription) wants(key string) bool {
	return len(s.keys) == 0 || slices.Contains(s.keys, key)
}

// Option configures a Provider
type Option func(*Provider)

// WithStore persists every change made through Set and seeds the flags on Load
func WithStore(store Store) Option {
	return func(p *Provider) {
		p.store = store
	}
}

// Provider serves the policy flags. Values come from the viper configuration,
// are overridden by persisted values on Load and can be changed at runtime.
type Provider struct {
	mu        sync.Mutex
	v         *viper.Viper
	store     Store
	flags     map[string]bool
	fileFlags map[string]bool
	subs      map[int]subscription
	order     []int
	nextID    int
	log       zerolog.Logger
}

var _ channelgroup.PolicyProvider = (*Provider)(nil)

// New creates a provider reading its initial values from v
func New(v *viper.Viper, opts ...Option) *Provider {
	p := &Provider{
		v:    v,
		subs: make(map[int]subscription),
		log:  logger.Component("policy"),
	}
	p.fileFlags = p.readViper()
	p.flags = maps.Clone(p.fileFlags)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) readViper() map[string]bool {
	flags := make(map[string]bool, len(models.PolicySettingKeys))
	for _, key := range models.PolicySettingKeys {
		if p.v != nil {
			flags[key] = p.v.GetBool(key)
		}
	}
	return flags
}

// Load applies the persisted flags. Subscribers are notified of every value that changed.
func (p *Provider) Load(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	stored, err := p.store.Flags(ctx)
	if err != nil {
		return fmt.Errorf("failed to load policy settings: %w", err)
	}
	p.apply(stored)
	return nil
}

// Bool returns the current value of a flag; unknown keys are false
func (p *Provider) Bool(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags[key]
}

// Flags returns a copy of all flags
func (p *Provider) Flags() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.flags)
}

// Set changes a flag, persists it when a store is configured and notifies
// subscribers if the value changed
func (p *Provider) Set(ctx context.Context, key string, value bool) error {
	if !slices.Contains(models.PolicySettingKeys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if p.store != nil {
		if err := p.store.SetFlag(ctx, key, value); err != nil {
			return fmt.Errorf("failed to persist setting %s: %w", key, err)
		}
	}
	p.apply(map[string]bool{key: value})
	return nil
}

// Subscribe registers fn for changes of the given keys, or of every key when
// none are given. Callbacks run in subscription order without the provider lock held.
func (p *Provider) Subscribe(fn func(key string), keys ...string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.subs[p.nextID] = subscription{fn: fn, keys: slices.Clone(keys)}
	p.order = append(p.order, p.nextID)
	return p.nextID
}

// Unsubscribe removes a subscription; unknown ids are ignored
func (p *Provider) Unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[id]; !ok {
		return
	}
	delete(p.subs, id)
	p.order = slices.DeleteFunc(p.order, func(other int) bool { return other == id })
}

// Watch reloads the configuration file whenever it changes on disk
func (p *Provider) Watch() {
	if p.v == nil {
		return
	}
	p.v.OnConfigChange(func(e fsnotify.Event) {
		p.log.Info().Str("file", e.Name).Msg("Configuration changed, reloading policy flags")
		p.Reload()
	})
	p.v.WatchConfig()
}

// Reload re-reads the flags from viper. Only keys whose configured value
// changed are applied, so runtime changes survive unrelated edits.
func (p *Provider) Reload() {
	current := p.readViper()

	p.mu.Lock()
	changed := make(map[string]bool)
	for key, value := range current {
		if p.fileFlags[key] != value {
			changed[key] = value
		}
	}
	p.fileFlags = current
	p.mu.Unlock()

	if len(changed) > 0 && p.store != nil {
		for key, value := range changed {
			if err := p.store.SetFlag(context.Background(), key, value); err != nil {
				p.log.Error().Err(err).Str("key", key).Msg("Failed to persist reloaded setting")
			}
		}
	}
	p.apply(changed)
}

// apply stores the values and notifies subscribers about those that changed
func (p *Provider) apply(values map[string]bool) {
	p.mu.Lock()
	var changed []string
	for _, key := range models.PolicySettingKeys {
		value, ok := values[key]
		if !ok || p.flags[key] == value {
			continue
		}
		p.flags[key] = value
		changed = append(changed, key)
	}
	subs := make([]subscription, 0, len(p.order))
	for _, id := range p.order {
		subs = append(subs, p.subs[id])
	}
	p.mu.Unlock()

	for _, key := range changed {
		p.log.Debug().Str("key", key).Bool("value", values[key]).Msg("Policy setting changed")
		for _, s := range subs {
			if s.wants(key) {
				s.fn(key)
			}
		}
	}
}
