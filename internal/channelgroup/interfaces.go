package channelgroup

import (
	"context"
	"time"

	"github.com/stwalsh4118/lineup/internal/models"
)

// Store persists groups and their members
type Store interface {
	// LoadMembers returns the persisted members of a group. Channel references are
	// resolved through resolver; a nil resolver means the group is an internal
	// group and the channels themselves are loaded.
	LoadMembers(ctx context.Context, groupID int64, radio bool, resolver ChannelResolver) ([]*Member, error)
	// Persist writes the group and all of its members and returns the group id.
	Persist(ctx context.Context, snapshot *Snapshot) (int64, error)
	// UpdateLastWatched stores the last-watched time of a group.
	UpdateLastWatched(ctx context.Context, groupID int64, lastWatched time.Time) error
	// UpdateLastOpened stores the last-opened time of a group.
	UpdateLastOpened(ctx context.Context, groupID int64, lastOpened time.Time) error
}

// ChannelResolver resolves a storage id to a known channel
type ChannelResolver interface {
	ChannelByKey(key models.StorageID) *models.Channel
}

// BackendDirectory supplies live channel data and per-backend attributes
type BackendDirectory interface {
	// QueryGroupMembers asks every enabled backend for the members of the group
	// at path. Backends that failed to answer are returned in failed.
	QueryGroupMembers(ctx context.Context, path models.ChannelsPath, internal bool) (members []*Member, failed []int, err error)
	BackendPriority(backendID int) (int, bool)
	IsBackendActive(backendID int) bool
	EnabledBackendCount() int
}

// PolicyProvider exposes the numbering policy flags and their change notifications
type PolicyProvider interface {
	Bool(key string) bool
	Subscribe(fn func(key string), keys ...string) int
	Unsubscribe(id int)
}

// EventSink receives group change notifications
type EventSink interface {
	Publish(event Event)
}

// StartupGate reports whether the owning manager finished starting up
type StartupGate interface {
	IsStarted() bool
}

// Deps bundles the collaborators of a group. Any of them may be nil.
type Deps struct {
	Store    Store
	Backends BackendDirectory
	Policy   PolicyProvider
	Events   EventSink
	Gate     StartupGate
}

// EventKind describes the impact of a group change
type EventKind int

const (
	// EventMemberUpdated signals a cosmetic update of members
	EventMemberUpdated EventKind = iota + 1
	// EventGroupInvalidated signals that membership or ordering changed
	EventGroupInvalidated
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventMemberUpdated:
		return "member_updated"
	case EventGroupInvalidated:
		return "group_invalidated"
	default:
		return "unknown"
	}
}

// Event is published after a group changed
type Event struct {
	Kind      EventKind
	GroupID   int64
	GroupName string
	Radio     bool
}

// Snapshot is a consistent copy of a group handed to the store
type Snapshot struct {
	ID          int64
	GroupType   int
	Path        models.ChannelsPath
	Position    int
	Hidden      bool
	LastWatched time.Time
	LastOpened  time.Time
	Members     []MemberInfo
}
