package ingest

import (
	"context"
	"fmt"

	"github.com/goliatone/go-verify/core"
)

const defaultQueueCapacity = 1024

// MemoryQueue is the default single-producer/single-consumer hand-off
// between the ingest task and the coordinator. Enqueue blocks only when the
// queue is full; Drain never blocks.
type MemoryQueue struct {
	ch chan core.Notice
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MemoryQueue{ch: make(chan core.Notice, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, notice core.Notice) error {
	if q == nil {
		return fmt.Errorf("ingest: notice queue is not configured")
	}
	if notice == nil {
		return fmt.Errorf("ingest: notice is required")
	}
	select {
	case q.ch <- notice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Drain(max int) []core.Notice {
	if q == nil || max <= 0 {
		return nil
	}
	var drained []core.Notice
	for len(drained) < max {
		select {
		case notice := <-q.ch:
			drained = append(drained, notice)
		default:
			return drained
		}
	}
	return drained
}

var _ core.NoticeQueue = (*MemoryQueue)(nil)
