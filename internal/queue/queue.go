// Package queue runs a named, durable, at-least-once work queue over the
// work_items table. One consumer goroutine per queue processes items strictly
// in order; a notify channel wakes it on enqueue and a poll ticker picks up
// items that survived a restart.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	applog "variantsync/internal/log"
	"variantsync/internal/repos"
)

// ProcessFn handles one payload. A returned error is logged; the item is
// acknowledged either way, so there is no automatic retry.
type ProcessFn func(payload []byte) error

type Queue struct {
	name    string
	repo    *repos.QueueRepo
	process ProcessFn
	poll    time.Duration

	notify chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(name string, repo *repos.QueueRepo, poll time.Duration, process ProcessFn) *Queue {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &Queue{
		name:    name,
		repo:    repo,
		process: process,
		poll:    poll,
		notify:  make(chan struct{}, 1),
	}
}

func (q *Queue) Name() string { return q.name }

// Add serializes the payload and persists it as a pending work item.
// Enqueuing is fast and synchronous; processing happens on the consumer.
func (q *Queue) Add(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := q.repo.Enqueue(q.name, string(b)); err != nil {
		return err
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the single consumer goroutine.
func (q *Queue) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	q.cancel = cancel
	q.wg.Add(1)
	go q.consume(ctx)
}

// Stop halts the consumer after the item in flight, if any, completes.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()
	for {
		q.drainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// drainOnce processes pending items one at a time until none remain.
func (q *Queue) drainOnce(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, ok, err := q.repo.NextPending(q.name)
		if err != nil {
			applog.Error(nil, "queue.next", err, map[string]any{"queue": q.name})
			return
		}
		if !ok {
			return
		}
		if err := q.process([]byte(item.Payload)); err != nil {
			applog.Error(nil, "queue.process", err, map[string]any{
				"queue": q.name, "work_item": item.ID, "attempts": item.Attempts,
			})
		}
		if err := q.repo.MarkDone(item.ID); err != nil {
			applog.Error(nil, "queue.ack", err, map[string]any{"queue": q.name, "work_item": item.ID})
			return
		}
	}
}

// Drain blocks until the queue is empty or the context expires. Test helper
// and shutdown aid; returns true when fully drained.
func (q *Queue) Drain(ctx context.Context) bool {
	for {
		n, err := q.repo.PendingCount(q.name)
		if err == nil && n == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
