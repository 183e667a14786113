package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, maxAttempts int) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q, err := New(client, Config{
		Stream:      "test:media",
		Group:       "test-group",
		Consumer:    "consumer",
		MaxAttempts: maxAttempts,
		Block:       20 * time.Millisecond,
		Backoff:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func runQueue(t *testing.T, q *Queue, handle Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx, 1, handle) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("queue did not stop")
		}
	})
}

func waitForState(t *testing.T, q *Queue, id string, want State) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, ok, err := q.Job(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if ok && job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _, _ := q.Job(context.Background(), id)
	t.Fatalf("job %s never reached %q, last %+v", id, want, job)
	return Job{}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, Config{Stream: "s"}); err == nil {
		t.Fatalf("expected nil client to be rejected")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := New(client, Config{Stream: " "}); err == nil {
		t.Fatalf("expected empty stream to be rejected")
	}
}

func TestEnqueueRequiresKey(t *testing.T) {
	q := newTestQueue(t, 3)
	if _, err := q.Enqueue(context.Background(), "  ", "replaced"); err == nil {
		t.Fatalf("expected empty object key to be rejected")
	}
}

func TestEnqueueRecordsJob(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()
	job, err := q.Enqueue(ctx, " photo/a.png ", " replaced ")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, ok, err := q.Job(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("job lookup ok=%v err=%v", ok, err)
	}
	if got.ObjectKey != "photo/a.png" || got.Reason != "replaced" || got.State != StateQueued || got.Attempts != 0 {
		t.Fatalf("unexpected record %+v", got)
	}
	if n, _ := q.client.XLen(ctx, "test:media").Result(); n != 1 {
		t.Fatalf("stream length = %d, want 1", n)
	}
	if _, ok, _ := q.Job(ctx, "missing"); ok {
		t.Fatalf("expected unknown job to be absent")
	}
}

func TestRunProcessesJob(t *testing.T) {
	q := newTestQueue(t, 3)
	var seen atomic.Value
	runQueue(t, q, func(_ context.Context, job Job) error {
		seen.Store(job.ObjectKey)
		return nil
	})
	job, err := q.Enqueue(context.Background(), "photo/a.png", "replaced")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := waitForState(t, q, job.ID, StateDone)
	if done.Attempts != 1 || done.Reason != "replaced" {
		t.Fatalf("unexpected record %+v", done)
	}
	if seen.Load() != "photo/a.png" {
		t.Fatalf("handler saw %v", seen.Load())
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	q := newTestQueue(t, 3)
	var calls atomic.Int32
	runQueue(t, q, func(context.Context, Job) error {
		if calls.Add(1) == 1 {
			return errors.New("storage unavailable")
		}
		return nil
	})
	job, err := q.Enqueue(context.Background(), "poster/b.png", "deleted")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitForState(t, q, job.ID, StateDone)
	if done.Attempts != 2 || done.LastError != "" {
		t.Fatalf("unexpected record %+v", done)
	}
}

func TestRunMarksFailedAfterAttempts(t *testing.T) {
	q := newTestQueue(t, 2)
	var calls atomic.Int32
	runQueue(t, q, func(context.Context, Job) error {
		calls.Add(1)
		return errors.New("storage unavailable")
	})
	job, err := q.Enqueue(context.Background(), "poster/b.png", "deleted")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	failed := waitForState(t, q, job.ID, StateFailed)
	if failed.Attempts != 2 || failed.LastError != "storage unavailable" {
		t.Fatalf("unexpected record %+v", failed)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls.Load())
	}
}

func TestRetryFailureKeepsPendingMessage(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()
	q.ensureGroup(ctx)
	job, err := q.Enqueue(ctx, "backdrop/c.png", "replaced")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    "test-group",
		Consumer: "consumer-1",
		Streams:  []string{"test:media", ">"},
		Count:    1,
	}).Result()
	if err != nil || len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("readgroup: %+v %v", streams, err)
	}
	msgID := streams[0].Messages[0].ID

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.retry(canceled, msgID, job.ID); err == nil {
		t.Fatalf("expected retry to fail on canceled context")
	}
	pending, err := q.client.XPending(ctx, "test:media", "test-group").Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected first delivery to remain pending, got %d", pending.Count)
	}

	if err := q.retry(ctx, msgID, job.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	pending, _ = q.client.XPending(ctx, "test:media", "test-group").Result()
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}
	if n, _ := q.client.XLen(ctx, "test:media").Result(); n != 1 {
		t.Fatalf("expected one fresh delivery, got %d", n)
	}
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	q := &Queue{cfg: Config{Backoff: time.Second, MaxBackoff: 5 * time.Second}}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := q.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}
