package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"scholar-project-service/internal/config"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.Config{
		PriorityQueues:    []string{"high", "default", "low"},
		VisibilityTimeout: 30 * time.Second,
	}
	return NewRedisQueueWithClient(cfg, client), mr
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if err := q.Enqueue(ctx, "job-1", "default", time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	jobID, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if jobID != "job-1" {
		t.Fatalf("expected job-1, got %q", jobID)
	}

	// Leased, not lost: nothing else is ready.
	again, err := q.DequeueWithLease(ctx)
	if err != nil || again != "" {
		t.Fatalf("expected empty dequeue, got %q err=%v", again, err)
	}

	if err := q.Ack(ctx, jobID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	expired, err := q.RequeueExpired(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("acked job reclaimed: %v", expired)
	}
}

func TestDequeueRespectsPriorityOrder(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_ = q.Enqueue(ctx, "low-job", "low", time.Now())
	_ = q.Enqueue(ctx, "high-job", "high", time.Now())

	first, _ := q.DequeueWithLease(ctx)
	if first != "high-job" {
		t.Fatalf("expected high-job first, got %q", first)
	}
	second, _ := q.DequeueWithLease(ctx)
	if second != "low-job" {
		t.Fatalf("expected low-job second, got %q", second)
	}
}

func TestScheduledPromotion(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	runAt := time.Now().Add(time.Hour)
	if err := q.Enqueue(ctx, "later-job", "default", runAt); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Not due yet.
	if jobID, _ := q.DequeueWithLease(ctx); jobID != "" {
		t.Fatalf("scheduled job leaked into ready: %q", jobID)
	}
	promoted, err := q.PromoteScheduled(ctx, time.Now(), 10)
	if err != nil || promoted != 0 {
		t.Fatalf("expected no promotions, got %d err=%v", promoted, err)
	}

	promoted, err = q.PromoteScheduled(ctx, runAt.Add(time.Second), 10)
	if err != nil || promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d err=%v", promoted, err)
	}
	jobID, _ := q.DequeueWithLease(ctx)
	if jobID != "later-job" {
		t.Fatalf("expected later-job, got %q", jobID)
	}
}

func TestRequeueExpiredReclaimsLease(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_ = q.Enqueue(ctx, "job-1", "default", time.Now())
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	ids, err := q.RequeueExpired(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "job-1" {
		t.Fatalf("expected job-1 reclaimed, got %v", ids)
	}

	// Back on the ready queue at its original priority.
	jobID, _ := q.DequeueWithLease(ctx)
	if jobID != "job-1" {
		t.Fatalf("expected job-1 dequeued again, got %q", jobID)
	}
}

func TestCancelRemovesEverywhere(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_ = q.Enqueue(ctx, "ready-job", "default", time.Now())
	_ = q.Enqueue(ctx, "later-job", "default", time.Now().Add(time.Hour))

	if err := q.Cancel(ctx, "ready-job"); err != nil {
		t.Fatalf("cancel ready: %v", err)
	}
	if err := q.Cancel(ctx, "later-job"); err != nil {
		t.Fatalf("cancel scheduled: %v", err)
	}

	if jobID, _ := q.DequeueWithLease(ctx); jobID != "" {
		t.Fatalf("cancelled job dequeued: %q", jobID)
	}
	if promoted, _ := q.PromoteScheduled(ctx, time.Now().Add(2*time.Hour), 10); promoted != 0 {
		t.Fatalf("cancelled scheduled job promoted")
	}
}

func TestDLQ(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_ = q.DLQPush(ctx, "dead-1")
	_ = q.DLQPush(ctx, "dead-2")

	items, err := q.DLQPeek(ctx, 10)
	if err != nil {
		t.Fatalf("dlq peek: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 dlq items, got %v", items)
	}
}

func TestReadyDepth(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_ = q.Enqueue(ctx, "a", "high", time.Now())
	_ = q.Enqueue(ctx, "b", "default", time.Now())
	_ = q.Enqueue(ctx, "c", "low", time.Now())

	depth, err := q.ReadyDepth(ctx)
	if err != nil {
		t.Fatalf("ready depth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("expected depth 3, got %d", depth)
	}
}
