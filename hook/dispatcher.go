package hook

import (
	"context"
	"fmt"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

const (
	defaultMaxInFlight    = 8
	defaultAttemptTimeout = 5 * time.Second
)

// Deliverer performs one delivery attempt for a notification.
type Deliverer interface {
	Deliver(ctx context.Context, note core.Notification) error
}

// Dispatcher runs webhook deliveries on a bounded worker pool so the escrow
// loop never blocks on subscriber latency. Launch hands the attempt to a
// goroutine and returns; the terminal result is reported through Outcomes,
// which the coordinator drains at the start of each tick.
type Dispatcher struct {
	deliverer Deliverer
	timeout   time.Duration
	logger    core.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inFlight map[string]struct{}
	outcomes []core.DeliveryOutcome
}

type DispatcherOption func(*Dispatcher)

func WithMaxInFlight(max int) DispatcherOption {
	return func(d *Dispatcher) {
		if max > 0 {
			d.slots = make(chan struct{}, max)
		}
	}
}

func WithAttemptTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithDispatcherLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(deliverer Deliverer, opts ...DispatcherOption) (*Dispatcher, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("hook: deliverer is required")
	}
	dispatcher := &Dispatcher{
		deliverer: deliverer,
		timeout:   defaultAttemptTimeout,
		logger:    glog.Nop(),
		slots:     make(chan struct{}, defaultMaxInFlight),
		inFlight:  map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(dispatcher)
	}
	dispatcher.logger = glog.Ensure(dispatcher.logger)
	return dispatcher, nil
}

// Launch starts one delivery attempt. It fails fast when the pool is
// saturated or an attempt for the same credential is still running; the
// caller retries on a later tick.
func (d *Dispatcher) Launch(ctx context.Context, note core.Notification) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("hook: dispatcher is closed")
	}
	if _, dup := d.inFlight[note.SAID]; dup {
		d.mu.Unlock()
		return fmt.Errorf("hook: delivery for credential %s already in flight", note.SAID)
	}

	select {
	case d.slots <- struct{}{}:
	default:
		d.mu.Unlock()
		return fmt.Errorf("hook: delivery pool is saturated")
	}
	d.inFlight[note.SAID] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.attempt(note)
	return nil
}

func (d *Dispatcher) attempt(note core.Notification) {
	defer d.wg.Done()

	// Attempts outlive the tick that launched them, so they run on their own
	// deadline rather than the tick context.
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.safeDeliver(ctx, note)
	if err != nil {
		d.logger.Debug("webhook attempt failed",
			"said", note.SAID, "action", note.Action, "error", err)
	}

	d.mu.Lock()
	delete(d.inFlight, note.SAID)
	d.outcomes = append(d.outcomes, core.DeliveryOutcome{
		SAID:       note.SAID,
		Action:     note.Action,
		EnqueuedAt: note.EnqueuedAt,
		Err:        err,
	})
	d.mu.Unlock()
	<-d.slots
}

func (d *Dispatcher) safeDeliver(ctx context.Context, note core.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook: delivery panicked: %v", r)
		}
	}()
	return d.deliverer.Deliver(ctx, note)
}

// InFlight reports whether an attempt for the credential is still running.
func (d *Dispatcher) InFlight(said string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[said]
	return ok
}

// Outcomes returns and clears the completed attempts accumulated since the
// previous call.
func (d *Dispatcher) Outcomes() []core.DeliveryOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	drained := d.outcomes
	d.outcomes = nil
	return drained
}

// Close stops accepting launches and waits up to grace for running attempts
// to finish. Outcomes of attempts that completed during the wait remain
// readable afterwards.
func (d *Dispatcher) Close(grace time.Duration) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("hook: deliveries still running after %s", grace)
	}
}

var _ core.NotificationDispatcher = (*Dispatcher)(nil)
