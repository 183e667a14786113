// Package queue runs background jobs over Redis streams. Each job names a
// stored media object and the reason it must be processed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"moviecatalog/internal/util"
)

// State is the lifecycle position of a job.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Job is the tracked record of one queued object.
type Job struct {
	ID         string    `json:"id"`
	ObjectKey  string    `json:"objectKey"`
	Reason     string    `json:"reason,omitempty"`
	State      State     `json:"state"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Handler processes one job. A returned error schedules a retry until the
// attempt budget is spent.
type Handler func(context.Context, Job) error

// Config tunes a Queue. Zero values take the defaults noted per field.
type Config struct {
	Stream string
	// Group defaults to "default".
	Group string
	// Consumer prefixes worker names. Defaults to a random id.
	Consumer string
	// MaxAttempts defaults to 3.
	MaxAttempts int
	// Backoff is the first retry delay, doubled per attempt up to
	// MaxBackoff. Defaults to 2s and 1m.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RecordTTL bounds how long job records stay readable. Defaults to 24h.
	RecordTTL time.Duration
	// Block is the XREADGROUP wait. Defaults to 5s.
	Block time.Duration
	// ClaimIdle is how long a delivery may stay unacknowledged before
	// another worker takes it over. Defaults to 30s.
	ClaimIdle time.Duration
	// MaxLen caps the stream approximately. Defaults to 10000.
	MaxLen int64
	// Batch is the per-read message count. Defaults to 10.
	Batch int64
}

func (c *Config) applyDefaults() {
	setDefault := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	if c.Group = strings.TrimSpace(c.Group); c.Group == "" {
		c.Group = "default"
	}
	if c.Consumer = strings.TrimSpace(c.Consumer); c.Consumer == "" {
		c.Consumer = util.NewID()
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	setDefault(&c.Backoff, 2*time.Second)
	setDefault(&c.MaxBackoff, time.Minute)
	setDefault(&c.RecordTTL, 24*time.Hour)
	setDefault(&c.Block, 5*time.Second)
	setDefault(&c.ClaimIdle, 30*time.Second)
	if c.MaxLen <= 0 {
		c.MaxLen = 10000
	}
	if c.Batch <= 0 {
		c.Batch = 10
	}
}

// Queue is a consumer-group backed job queue with at-least-once delivery.
// Job records live next to the stream under "<stream>:job:<id>".
type Queue struct {
	client redis.UniversalClient
	cfg    Config
	group  sync.Once
}

// New builds a queue on a shared client. The caller owns the client.
func New(client redis.UniversalClient, cfg Config) (*Queue, error) {
	if client == nil {
		return nil, errors.New("queue: redis client required")
	}
	if cfg.Stream = strings.TrimSpace(cfg.Stream); cfg.Stream == "" {
		return nil, errors.New("queue: stream required")
	}
	cfg.applyDefaults()
	return &Queue{client: client, cfg: cfg}, nil
}

// Enqueue records a queued job for objectKey and appends it to the stream.
func (q *Queue) Enqueue(ctx context.Context, objectKey, reason string) (Job, error) {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return Job{}, errors.New("queue: object key required")
	}
	now := time.Now().UTC()
	job := Job{
		ID:         util.NewID(),
		ObjectKey:  objectKey,
		Reason:     strings.TrimSpace(reason),
		State:      StateQueued,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	if err := q.save(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, q.addArgs(job.ID)).Err(); err != nil {
		return Job{}, fmt.Errorf("queue: append: %w", err)
	}
	return job, nil
}

// Job returns the record of id.
func (q *Queue) Job(ctx context.Context, id string) (Job, bool, error) {
	raw, err := q.client.Get(ctx, q.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, false, fmt.Errorf("queue: decode job %s: %w", id, err)
	}
	return job, true, nil
}

// Run consumes with workers goroutines until ctx is done.
func (q *Queue) Run(ctx context.Context, workers int, handle Handler) error {
	if workers <= 0 {
		workers = 1
	}
	q.ensureGroup(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		consumer := fmt.Sprintf("%s-%d", q.cfg.Consumer, i)
		g.Go(func() error {
			q.work(ctx, consumer, handle)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) ensureGroup(ctx context.Context) {
	q.group.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			util.LoggerFromContext(ctx).Warn("queue: create group", "stream", q.cfg.Stream, "group", q.cfg.Group, "err", err)
		}
	})
}

func (q *Queue) work(ctx context.Context, consumer string, handle Handler) {
	log := util.LoggerFromContext(ctx).With("stream", q.cfg.Stream, "consumer", consumer)
	for ctx.Err() == nil {
		claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.cfg.Stream,
			Group:    q.cfg.Group,
			Consumer: consumer,
			MinIdle:  q.cfg.ClaimIdle,
			Start:    "0-0",
			Count:    q.cfg.Batch,
		}).Result()
		if err == nil {
			q.process(ctx, claimed, handle)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    q.cfg.Batch,
			Block:    q.cfg.Block,
		}).Result()
		switch {
		case err == nil:
			for _, s := range streams {
				q.process(ctx, s.Messages, handle)
			}
		case errors.Is(err, redis.Nil) || ctx.Err() != nil:
		default:
			log.Warn("queue: read", "err", err)
			sleep(ctx, q.cfg.Backoff)
		}
	}
}

func (q *Queue) process(ctx context.Context, msgs []redis.XMessage, handle Handler) {
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		q.deliver(ctx, msg, handle)
	}
}

func (q *Queue) deliver(ctx context.Context, msg redis.XMessage, handle Handler) {
	log := util.LoggerFromContext(ctx)
	id, _ := msg.Values["job"].(string)
	job, ok, err := q.update(ctx, id, func(j *Job) {
		j.State = StateProcessing
		j.Attempts++
	})
	if err != nil || !ok {
		// Records expire; a message without one cannot be tracked.
		log.Warn("queue: dropping message", "msg_id", msg.ID, "job_id", id, "err", err)
		q.ack(ctx, msg.ID)
		return
	}

	herr := handle(ctx, job)
	switch {
	case herr == nil:
		_, _, _ = q.update(ctx, id, func(j *Job) {
			j.State = StateDone
			j.LastError = ""
		})
		q.ack(ctx, msg.ID)
	case job.Attempts >= q.cfg.MaxAttempts:
		log.Error("queue: job failed", "job_id", id, "object_key", job.ObjectKey, "attempts", job.Attempts, "err", herr)
		_, _, _ = q.update(ctx, id, func(j *Job) {
			j.State = StateFailed
			j.LastError = herr.Error()
		})
		q.ack(ctx, msg.ID)
	default:
		_, _, _ = q.update(ctx, id, func(j *Job) {
			j.State = StateQueued
			j.LastError = herr.Error()
		})
		if !sleep(ctx, q.backoff(job.Attempts)) {
			return
		}
		if err := q.retry(ctx, msg.ID, id); err != nil {
			log.Warn("queue: requeue", "job_id", id, "err", err)
		}
	}
}

// backoff is the delay before retry number attempt.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.cfg.Backoff
	for i := 1; i < attempt && d < q.cfg.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, q.cfg.MaxBackoff)
}

// retry appends a fresh delivery of jobID and acknowledges msgID atomically.
// On failure the delivered message stays pending and is reclaimed later.
func (q *Queue) retry(ctx context.Context, msgID, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(jobID))
	pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, msgID)
	pipe.XDel(ctx, q.cfg.Stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Queue) ack(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, msgID)
	pipe.XDel(ctx, q.cfg.Stream, msgID)
	_, _ = pipe.Exec(ctx)
}

func (q *Queue) addArgs(jobID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.cfg.Stream,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{"job": jobID},
	}
}

func (q *Queue) update(ctx context.Context, id string, mutate func(*Job)) (Job, bool, error) {
	if id == "" {
		return Job{}, false, nil
	}
	job, ok, err := q.Job(ctx, id)
	if err != nil || !ok {
		return Job{}, ok, err
	}
	mutate(&job)
	job.UpdatedAt = time.Now().UTC()
	if err := q.save(ctx, job); err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

func (q *Queue) save(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, q.recordKey(job.ID), raw, q.cfg.RecordTTL).Err(); err != nil {
		return fmt.Errorf("queue: save job %s: %w", job.ID, err)
	}
	return nil
}

func (q *Queue) recordKey(id string) string {
	return q.cfg.Stream + ":job:" + id
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
