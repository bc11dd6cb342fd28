// Package gojob bridges the notice queue onto go-job queue transports so
// deployments can back the ingest hand-off with a durable broker instead of
// the in-process channel.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

// NoticeJobID tags queued notice messages.
const NoticeJobID = "verify.notice.dispatch"

const defaultPollWait = 50 * time.Millisecond

// RetryPolicy defines queue retry bounds to avoid unbounded redelivery
// loops for notices the worker keeps failing on.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a notice onto the go-job wire contract. The SAID
// doubles as the idempotency key: re-presenting the same credential while a
// prior notice is still queued is a no-op for dedup-capable brokers.
func ToExecutionMessage(notice core.Notice) (*job.ExecutionMessage, error) {
	if notice == nil {
		return nil, fmt.Errorf("gojob: notice is required")
	}
	return &job.ExecutionMessage{
		JobID: NoticeJobID,
		Parameters: map[string]any{
			"type":   notice.Type(),
			"said":   notice.Subject(),
			"sender": notice.Actor(),
		},
		IdempotencyKey: strings.TrimSpace(notice.Subject()),
	}, nil
}

// FromExecutionMessage reverses ToExecutionMessage.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.Notice, error) {
	if msg == nil {
		return nil, fmt.Errorf("gojob: execution message is required")
	}
	kind := paramString(msg.Parameters, "type")
	said := paramString(msg.Parameters, "said")
	sender := paramString(msg.Parameters, "sender")
	if said == "" || sender == "" {
		return nil, fmt.Errorf("gojob: execution message is missing notice fields")
	}
	switch kind {
	case core.PresentationNotice{}.Type():
		return core.PresentationNotice{SenderPrefix: sender, SAID: said}, nil
	case core.RevocationNotice{}.Type():
		return core.RevocationNotice{SenderPrefix: sender, SAID: said}, nil
	default:
		return nil, fmt.Errorf("gojob: unknown notice type %q", kind)
	}
}

func paramString(params map[string]any, key string) string {
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// QueueBridge implements the notice queue over a go-job broker. Drain polls
// with a short wait per message so the coordinator tick stays bounded.
type QueueBridge struct {
	enqueuer queue.Enqueuer
	dequeuer queue.Dequeuer
	policy   RetryPolicy
	pollWait time.Duration
	logger   core.Logger
}

type QueueBridgeOption func(*QueueBridge)

func WithRetryPolicy(policy RetryPolicy) QueueBridgeOption {
	return func(b *QueueBridge) {
		b.policy = policy
	}
}

func WithPollWait(wait time.Duration) QueueBridgeOption {
	return func(b *QueueBridge) {
		if wait > 0 {
			b.pollWait = wait
		}
	}
}

func WithQueueLogger(logger core.Logger) QueueBridgeOption {
	return func(b *QueueBridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewQueueBridge(enqueuer queue.Enqueuer, dequeuer queue.Dequeuer, opts ...QueueBridgeOption) (*QueueBridge, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	bridge := &QueueBridge{
		enqueuer: enqueuer,
		dequeuer: dequeuer,
		pollWait: defaultPollWait,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(bridge)
	}
	bridge.logger = glog.Ensure(bridge.logger)
	return bridge, nil
}

func (b *QueueBridge) Enqueue(ctx context.Context, notice core.Notice) error {
	if b == nil || b.enqueuer == nil {
		return fmt.Errorf("gojob: queue bridge is not configured")
	}
	msg, err := ToExecutionMessage(notice)
	if err != nil {
		return err
	}
	return b.enqueuer.Enqueue(ctx, msg)
}

// Drain pulls up to max queued notices. A message that cannot be decoded is
// dead-lettered rather than redelivered forever.
func (b *QueueBridge) Drain(max int) []core.Notice {
	if b == nil || b.dequeuer == nil || max <= 0 {
		return nil
	}
	var drained []core.Notice
	for len(drained) < max {
		ctx, cancel := context.WithTimeout(context.Background(), b.pollWait)
		delivery, err := b.dequeuer.Dequeue(ctx)
		cancel()
		if err != nil || delivery == nil {
			return drained
		}
		notice, decodeErr := FromExecutionMessage(delivery.Message())
		if decodeErr != nil {
			b.logger.Error("queued notice rejected", "error", decodeErr)
			_ = delivery.Nack(context.Background(), b.policy.NormalizeAttempt(queue.NackOptions{
				DeadLetter: true,
				Reason:     decodeErr.Error(),
			}, 0))
			continue
		}
		if ackErr := delivery.Ack(context.Background()); ackErr != nil {
			b.logger.Error("queued notice ack failed", "said", notice.Subject(), "error", ackErr)
		}
		drained = append(drained, notice)
	}
	return drained
}

// NoticeWorkerHook surfaces queue worker lifecycle events into the pipeline
// logger and metrics.
type NoticeWorkerHook struct {
	logger  core.Logger
	metrics core.MetricsRecorder
}

func NewNoticeWorkerHook(logger core.Logger, metrics core.MetricsRecorder) *NoticeWorkerHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &NoticeWorkerHook{
		logger:  glog.Ensure(logger),
		metrics: metrics,
	}
}

func (h *NoticeWorkerHook) OnStart(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Debug("notice worker start", "job", eventJobID(event), "attempt", event.Attempt)
	h.metrics.IncCounter(ctx, "verify.notice.worker.start", 1, nil)
}

func (h *NoticeWorkerHook) OnSuccess(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Debug("notice worker success", "job", eventJobID(event), "attempt", event.Attempt)
	h.metrics.IncCounter(ctx, "verify.notice.worker.success", 1, nil)
	h.metrics.ObserveHistogram(ctx, "verify.notice.worker.duration", event.Duration.Seconds(), nil)
}

func (h *NoticeWorkerHook) OnFailure(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Error("notice worker failure", "job", eventJobID(event), "attempt", event.Attempt, "error", event.Err)
	h.metrics.IncCounter(ctx, "verify.notice.worker.failure", 1, nil)
}

func (h *NoticeWorkerHook) OnRetry(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.logger.Warn("notice worker retry", "job", eventJobID(event), "attempt", event.Attempt, "delay", event.Delay)
	h.metrics.IncCounter(ctx, "verify.notice.worker.retry", 1, nil)
}

func eventJobID(event worker.Event) string {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message == nil {
		return ""
	}
	return message.JobID
}

var (
	_ core.NoticeQueue = (*QueueBridge)(nil)
	_ worker.Hook      = (*NoticeWorkerHook)(nil)
)
