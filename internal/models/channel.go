package models

import (
	"fmt"
	"sync"
	"time"
)

// StorageID is the composite identity of a channel across all backends
type StorageID struct {
	BackendID int `json:"backend_id"`
	UniqueID  int `json:"unique_id"`
}

// String returns "backend:uid"
func (id StorageID) String() string {
	return fmt.Sprintf("%d:%d", id.BackendID, id.UniqueID)
}

// EPGRange holds the first and last program dates known for a channel
type EPGRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Channel represents a broadcast channel reported by a backend.
// Channels are shared between groups; the group never owns them.
type Channel struct {
	BackendID int
	UniqueID  int
	Radio     bool

	id          int64 // database id, <= 0 until persisted
	name        string
	iconPath    string
	hidden      bool
	locked      bool
	epgID       int
	lastWatched time.Time
	epg         *EPGRange
	mu          sync.RWMutex
}

// NewChannel creates a new, not yet persisted channel
func NewChannel(backendID, uniqueID int, name string, radio bool) *Channel {
	return &Channel{
		BackendID: backendID,
		UniqueID:  uniqueID,
		Radio:     radio,
		name:      name,
	}
}

// StorageID returns the composite identity of the channel
func (c *Channel) StorageID() StorageID {
	return StorageID{BackendID: c.BackendID, UniqueID: c.UniqueID}
}

// ID returns the database id, <= 0 if the channel was never persisted (thread-safe)
func (c *Channel) ID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// SetID sets the database id once the channel is persisted (thread-safe)
func (c *Channel) SetID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// Name returns the display name (thread-safe)
func (c *Channel) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName sets the display name (thread-safe)
func (c *Channel) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// IconPath returns the icon path (thread-safe)
func (c *Channel) IconPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.iconPath
}

// SetIconPath sets the icon path (thread-safe)
func (c *Channel) SetIconPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iconPath = path
}

// IsHidden reports whether the user hid the channel (thread-safe)
func (c *Channel) IsHidden() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hidden
}

// SetHidden hides or shows the channel (thread-safe)
func (c *Channel) SetHidden(hidden bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = hidden
}

// IsLocked reports whether the channel is parental locked (thread-safe)
func (c *Channel) IsLocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locked
}

// SetLocked sets the parental lock (thread-safe)
func (c *Channel) SetLocked(locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = locked
}

// EPGID returns the schedule source id (thread-safe)
func (c *Channel) EPGID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epgID
}

// SetEPGID sets the schedule source id (thread-safe)
func (c *Channel) SetEPGID(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epgID = id
}

// LastWatched returns when the channel was last played (thread-safe)
func (c *Channel) LastWatched() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastWatched
}

// SetLastWatched records when the channel was last played (thread-safe)
func (c *Channel) SetLastWatched(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastWatched = t
}

// EPG returns a copy of the program guide date range, or nil (thread-safe)
func (c *Channel) EPG() *EPGRange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epg == nil {
		return nil
	}
	epg := *c.epg
	return &epg
}

// SetEPG replaces the program guide date range (thread-safe)
func (c *Channel) SetEPG(epg *EPGRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epg == nil {
		c.epg = nil
		return
	}
	stored := *epg
	c.epg = &stored
}
