// Package events distributes channel group change notifications.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
	"github.com/stwalsh4118/lineup/internal/logger"
)

// Kind describes the impact of a group change
type Kind string

const (
	// KindMemberUpdated signals cosmetic member changes
	KindMemberUpdated Kind = "member_updated"
	// KindGroupInvalidated signals that membership, ordering or numbering changed
	KindGroupInvalidated Kind = "group_invalidated"
)

// Event is a published group change
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	GroupID   int64     `json:"group_id"`
	GroupName string    `json:"group_name"`
	Radio     bool      `json:"radio"`
	Time      time.Time `json:"time"`
}

// ErrNoEvent is returned when no event was recorded for a group
var ErrNoEvent = errors.New("no event recorded for group")

// IsNoEvent checks if an error is ErrNoEvent
func IsNoEvent(err error) bool {
	return errors.Is(err, ErrNoEvent)
}

// Sink receives events
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// LastEventStore returns the most recent event of a group
type LastEventStore interface {
	LastEvent(ctx context.Context, groupID int64) (Event, error)
}

// Multi publishes every event to all sinks and joins their errors
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromGroupEvent converts a group notification into an event with a fresh id
func FromGroupEvent(e channelgroup.Event) Event {
	kind := KindMemberUpdated
	if e.Kind == channelgroup.EventGroupInvalidated {
		kind = KindGroupInvalidated
	}
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		GroupID:   e.GroupID,
		GroupName: e.GroupName,
		Radio:     e.Radio,
		Time:      time.Now().UTC(),
	}
}

// GroupSink adapts a Sink to the notifications groups emit
type GroupSink struct {
	sink    Sink
	timeout time.Duration
	log     zerolog.Logger
}

var _ channelgroup.EventSink = (*GroupSink)(nil)

// NewGroupSink wraps sink; every publish is bounded by timeout
func NewGroupSink(sink Sink, timeout time.Duration) *GroupSink {
	return &GroupSink{sink: sink, timeout: timeout, log: logger.Component("events")}
}

// Publish forwards a group notification. Failures are logged, never returned to the group.
func (s *GroupSink) Publish(e channelgroup.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	event := FromGroupEvent(e)
	if err := s.sink.Publish(ctx, event); err != nil {
		s.log.Warn().
			Err(err).
			Int64("group_id", event.GroupID).
			Str("kind", string(event.Kind)).
			Msg("Failed to publish group event")
	}
}
