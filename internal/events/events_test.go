package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/lineup/internal/channelgroup"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestFromGroupEvent(t *testing.T) {
	e := FromGroupEvent(channelgroup.Event{Kind: channelgroup.EventGroupInvalidated, GroupID: 4, GroupName: "News", Radio: true})
	assert.Equal(t, KindGroupInvalidated, e.Kind)
	assert.Equal(t, int64(4), e.GroupID)
	assert.Equal(t, "News", e.GroupName)
	assert.True(t, e.Radio)
	assert.False(t, e.Time.IsZero())
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)

	updated := FromGroupEvent(channelgroup.Event{Kind: channelgroup.EventMemberUpdated})
	assert.Equal(t, KindMemberUpdated, updated.Kind)
	assert.NotEqual(t, e.ID, updated.ID)
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(4)
	first, cancelFirst := bus.Subscribe()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()
	assert.Equal(t, 2, bus.Subscribers())

	event := Event{ID: "1", Kind: KindGroupInvalidated, GroupID: 3}
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, bus.Subscribers())
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), Event{ID: "1"}))
	require.NoError(t, bus.Publish(context.Background(), Event{ID: "2"}))

	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, "1", (<-ch).ID)
}

func TestBus_LastEvent(t *testing.T) {
	bus := NewBus(1)
	ctx := context.Background()

	_, err := bus.LastEvent(ctx, 3)
	assert.True(t, IsNoEvent(err))

	// recorded without any subscriber
	require.NoError(t, bus.Publish(ctx, Event{ID: "1", GroupID: 3}))
	require.NoError(t, bus.Publish(ctx, Event{ID: "2", GroupID: 3, Kind: KindMemberUpdated}))
	require.NoError(t, bus.Publish(ctx, Event{ID: "3", GroupID: 4}))

	last, err := bus.LastEvent(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "2", last.ID)
	assert.Equal(t, KindMemberUpdated, last.Kind)
}

func TestMulti(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("offline")}

	err := Multi{ok, failing}.Publish(context.Background(), Event{ID: "x"})
	assert.ErrorContains(t, err, "offline")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)

	assert.NoError(t, Multi{ok}.Publish(context.Background(), Event{}))
}

func TestGroupSink(t *testing.T) {
	rec := &recordingSink{}
	sink := NewGroupSink(rec, time.Second)

	sink.Publish(channelgroup.Event{Kind: channelgroup.EventMemberUpdated, GroupID: 9, GroupName: "Sports"})
	require.Len(t, rec.events, 1)
	assert.Equal(t, KindMemberUpdated, rec.events[0].Kind)
	assert.Equal(t, int64(9), rec.events[0].GroupID)

	// failures are swallowed
	rec.err = errors.New("offline")
	sink.Publish(channelgroup.Event{Kind: channelgroup.EventGroupInvalidated})
	assert.Len(t, rec.events, 2)
}

func TestRedisSink(t *testing.T) {
	_, err := NewRedisSink("not a url", "lineup")
	assert.Error(t, err)

	// nothing listens on port 1
	sink, err := NewRedisSink("redis://127.0.0.1:1/0?dial_timeout=100ms", "lineup")
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, "lineup:groups", sink.Channel())
	assert.Equal(t, "lineup:group:7:last", sink.lastKey(7))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, sink.Publish(ctx, Event{ID: "1", GroupID: 7}))

	// a connection failure is not mistaken for a missing event
	_, err = sink.LastEvent(ctx, 7)
	require.Error(t, err)
	assert.False(t, IsNoEvent(err))
}
