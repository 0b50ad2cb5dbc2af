package engine

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisSink hands escalation events to the worker's job queue and
// publishes them on the events channel for live subscribers (SSE and
// WebSocket fan-out). Both paths are best effort; the firing has
// already been recorded when Fire runs.
type RedisSink struct {
	RDB *redis.Client
}

type job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Fire enqueues an "escalation" job and publishes the event.
func (s *RedisSink) Fire(ctx context.Context, ev Event) error {
	if s.RDB == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b, err := json.Marshal(job{Type: "escalation", Data: data})
	if err != nil {
		return err
	}
	if err := s.RDB.LPush(ctx, "jobs", b).Err(); err != nil {
		return err
	}
	return s.RDB.Publish(ctx, "events", b).Err()
}
