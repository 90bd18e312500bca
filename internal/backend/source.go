package backend

import (
	"context"
	"slices"
	"sync"

	"github.com/stwalsh4118/lineup/internal/models"
)

// SourceChannel is one channel as a backend reports it
type SourceChannel struct {
	UniqueID int                  `json:"unique_id"`
	Name     string               `json:"name"`
	IconPath string               `json:"icon_path"`
	Number   models.ChannelNumber `json:"number"`
	Radio    bool                 `json:"radio"`
	Groups   []string             `json:"groups"`
	EPGID    int                  `json:"epg_id"`
	// Order is the position the backend lists the channel at
	Order int `json:"order"`
}

// InGroup reports whether the channel is listed in the named backend group
func (c SourceChannel) InGroup(name string) bool {
	return slices.Contains(c.Groups, name)
}

// Source supplies the channel list of one backend
type Source interface {
	Channels(ctx context.Context) ([]SourceChannel, error)
}

// StaticSource serves a fixed channel list. It is used for catalog entries
// with inline channels and in tests.
type StaticSource struct {
	mu       sync.RWMutex
	channels []SourceChannel
	err      error
}

// NewStaticSource creates a source serving channels
func NewStaticSource(channels ...SourceChannel) *StaticSource {
	return &StaticSource{channels: channels}
}

// Channels returns a copy of the configured channels or the configured error
func (s *StaticSource) Channels(ctx context.Context) ([]SourceChannel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return slices.Clone(s.channels), nil
}

// Set replaces the channel list
func (s *StaticSource) Set(channels ...SourceChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = channels
}

// SetError makes every following query fail with err until it is cleared with nil
func (s *StaticSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
