// Package notify publishes the result of each packaged source. The only
// real backend is a Redis list; without a URL a no-op publisher is used.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/backmassage/hlsladder/internal/scheduler"
)

// pingTimeout bounds the connection check in NewRedis.
const pingTimeout = 5 * time.Second

// JobEvent is the per-job part of an Event.
type JobEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Tier      string `json:"tier"`
	Track     int    `json:"track"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Strategy  string `json:"strategy"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Event describes one finished package.
type Event struct {
	RunID      string     `json:"run_id"`
	Input      string     `json:"input"`
	OutputDir  string     `json:"output_dir"`
	Master     string     `json:"master,omitempty"`
	Success    bool       `json:"success"`
	DryRun     bool       `json:"dry_run"`
	FinishedAt time.Time  `json:"finished_at"`
	Jobs       []JobEvent `json:"jobs"`
}

// NewEvent builds an Event from a package's scheduled jobs.
func NewEvent(runID uuid.UUID, input, outputDir, master string, success, dryRun bool, jobs []*scheduler.Job) Event {
	ev := Event{
		RunID:      runID.String(),
		Input:      input,
		OutputDir:  outputDir,
		Master:     master,
		Success:    success,
		DryRun:     dryRun,
		FinishedAt: time.Now().UTC(),
		Jobs:       make([]JobEvent, 0, len(jobs)),
	}
	for _, j := range jobs {
		ev.Jobs = append(ev.Jobs, JobEvent{
			ID:        j.ID.String(),
			Kind:      string(j.Kind),
			Tier:      string(j.Tier),
			Track:     j.Track,
			Name:      j.Name,
			Status:    string(j.Status),
			Strategy:  string(j.Strategy),
			Attempts:  j.Attempt,
			Reason:    j.Reason,
			ElapsedMS: j.Elapsed.Milliseconds(),
		})
	}
	return ev
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// pusher is the subset of the Redis client Publish uses.
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Redis appends JSON events to a Redis list.
type Redis struct {
	client *redis.Client
	push   pusher
	key    string
}

// NewRedis connects to url (redis:// or rediss://) and verifies the
// connection with a PING.
func NewRedis(ctx context.Context, url, key string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: rdb, push: rdb, key: key}, nil
}

// Publish RPUSHes ev as JSON onto the configured key.
func (r *Redis) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.push.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", r.key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// New returns a Redis publisher when url is set, otherwise Nop.
func New(ctx context.Context, url, key string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	return NewRedis(ctx, url, key)
}
