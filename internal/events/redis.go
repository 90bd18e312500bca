package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// lastEventTTL bounds how long the last event of a group is kept
const lastEventTTL = 24 * time.Hour

// RedisSink publishes events as JSON on "<prefix>:groups" and keeps the last
// event of every group under "<prefix>:group:<id>:last"
type RedisSink struct {
	client *redis.Client
	prefix string
}

var (
	_ Sink           = (*RedisSink)(nil)
	_ LastEventStore = (*RedisSink)(nil)
)

// NewRedisSink parses a Redis URL (e.g. "redis://host:6379/0") and returns a sink.
// Call Ping to verify the connection.
func NewRedisSink(rawURL, prefix string) (*RedisSink, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSink{client: redis.NewClient(opts), prefix: prefix}, nil
}

// Channel returns the pub/sub channel events are published on
func (s *RedisSink) Channel() string {
	return s.prefix + ":groups"
}

func (s *RedisSink) lastKey(groupID int64) string {
	return fmt.Sprintf("%s:group:%d:last", s.prefix, groupID)
}

// Publish implements Sink
func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, s.Channel(), payload)
	pipe.Set(ctx, s.lastKey(event.GroupID), payload, lastEventTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// LastEvent implements LastEventStore
func (s *RedisSink) LastEvent(ctx context.Context, groupID int64) (Event, error) {
	var event Event
	raw, err := s.client.Get(ctx, s.lastKey(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return event, ErrNoEvent
	}
	if err != nil {
		return event, fmt.Errorf("get last event: %w", err)
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

// Ping checks the connection to Redis
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close shuts down the Redis client
func (s *RedisSink) Close() error {
	return s.client.Close()
}
