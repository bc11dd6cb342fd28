package escrow

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

const defaultDrainLimit = 256

// Config bounds the coordinator's escrow window and per-tick queue drain.
type Config struct {
	Timeout    time.Duration
	DrainLimit int
}

func DefaultCoordinatorConfig() Config {
	return Config{
		Timeout:    10 * time.Minute,
		DrainLimit: defaultDrainLimit,
	}
}

// Dependencies carries the coordinator's collaborators. Stages, Credentials,
// Statuses, Validator, and Dispatcher are required; the rest default.
type Dependencies struct {
	Stages      StageStore
	Queue       core.NoticeQueue
	Credentials core.CredentialStore
	Statuses    core.StatusOracle
	Validator   *core.Validator
	Dispatcher  core.NotificationDispatcher
	Logger      core.Logger
	Metrics     core.MetricsRecorder
	Now         func() time.Time
}

// Coordinator is the escrow state machine. One Tick advances every record
// through pending, validated, and acknowledged stages, applying timeouts,
// validation, and delivery outcomes. It is driven by a single Runner
// goroutine; no record is touched by more than one logical actor at a time.
type Coordinator struct {
	stages      StageStore
	queue       core.NoticeQueue
	credentials core.CredentialStore
	statuses    core.StatusOracle
	validator   *core.Validator
	dispatcher  core.NotificationDispatcher
	logger      core.Logger
	metrics     core.MetricsRecorder
	config      Config
	now         func() time.Time

	// delivery outcomes drained from the dispatcher, keyed by said|action,
	// waiting to be applied to their validated records. An outcome only
	// applies to the record lifecycle that launched it (matching EnqueuedAt
	// stamp); anything left unmatched is swept at the end of the tick.
	outcomes map[string]core.DeliveryOutcome
}

func NewCoordinator(deps Dependencies, config Config) (*Coordinator, error) {
	if deps.Stages == nil {
		return nil, fmt.Errorf("escrow: stage store is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("escrow: credential store is required")
	}
	if deps.Statuses == nil {
		return nil, fmt.Errorf("escrow: status oracle is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("escrow: validator is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("escrow: notification dispatcher is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCoordinatorConfig().Timeout
	}
	if config.DrainLimit <= 0 {
		config.DrainLimit = DefaultCoordinatorConfig().DrainLimit
	}
	logger := glog.Ensure(deps.Logger)
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return &Coordinator{
		stages:      deps.Stages,
		queue:       deps.Queue,
		credentials: deps.Credentials,
		statuses:    deps.Statuses,
		validator:   deps.Validator,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		metrics:     metrics,
		config:      config,
		now:         now,
		outcomes:    map[string]core.DeliveryOutcome{},
	}, nil
}

// Tick runs one full pass over the escrow pipeline. Presentations are
// processed before revocations before deliveries, so a credential revoked and
// re-presented in quick succession converges on the revoked branch within one
// extra tick. Record-level failures are isolated and logged; Tick itself
// never returns an error for them.
func (c *Coordinator) Tick(ctx context.Context) {
	startedAt := c.now()

	c.drainNotices(ctx, startedAt)
	c.collectOutcomes()
	c.processPresentations(ctx)
	c.processRevocations(ctx)
	c.processValidated(ctx, StageValidatedIssuance, core.ActionIssue)
	c.processValidated(ctx, StageValidatedRevocation, core.ActionRevoke)
	c.sweepOutcomes(ctx)
	c.processAcknowledged(ctx, startedAt)

	c.metrics.IncCounter(ctx, "verify.tick.total", 1, nil)
	c.metrics.ObserveHistogram(ctx, "verify.tick.duration_ms",
		float64(c.now().Sub(startedAt).Milliseconds()), nil)
}

// drainNotices moves ingested notices into their pending stages. Re-pinning
// an already pending SAID overwrites the record and restarts its timeout
// window, which keeps re-presentation idempotent.
func (c *Coordinator) drainNotices(ctx context.Context, now time.Time) {
	if c.queue == nil {
		return
	}
	for _, notice := range c.queue.Drain(c.config.DrainLimit) {
		record := Record{
			SAID:               notice.Subject(),
			CounterpartyPrefix: notice.Actor(),
			EnqueuedAt:         now,
		}
		stage := StagePendingPresentation
		if _, ok := notice.(core.RevocationNotice); ok {
			stage = StagePendingRevocation
		}
		if err := c.stages.Put(ctx, stage, record.SAID, record); err != nil {
			c.logger.Error("pin escrow record failed",
				"stage", string(stage), "said", record.SAID, "error", err)
			continue
		}
		c.logger.Debug("escrow record pinned",
			"stage", string(stage), "said", record.SAID, "sender", record.CounterpartyPrefix)
	}
}

func (c *Coordinator) collectOutcomes() {
	if c.dispatcher == nil {
		return
	}
	for _, outcome := range c.dispatcher.Outcomes() {
		c.outcomes[outcomeKey(outcome.SAID, outcome.Action)] = outcome
	}
}

func (c *Coordinator) processPresentations(ctx context.Context) {
	entries, err := c.stages.All(ctx, StagePendingPresentation)
	if err != nil {
		c.logger.Error("iterate pending presentations failed", "error", err)
		return
	}
	for _, entry := range entries {
		c.guard(entry.SAID, func() {
			c.processPresentation(ctx, entry)
		})
	}
}

func (c *Coordinator) processPresentation(ctx context.Context, entry Entry) {
	said := entry.SAID
	if c.expired(entry.Record) {
		c.discard(ctx, StagePendingPresentation, said, "escrow timeout elapsed")
		return
	}

	cred, available, err := c.credentials.Get(ctx, said)
	if err != nil {
		c.logger.Error("credential lookup failed", "said", said, "error", err)
		return
	}
	if !available {
		// Presentation arrived before the credential; retry next tick.
		return
	}

	status, err := c.statuses.Status(ctx, cred.RegistryKey, said)
	if err != nil {
		c.logger.Error("registry status lookup failed", "said", said, "error", err)
		return
	}

	if verr := c.validator.Validate(cred, status, core.ActionIssue); verr != nil {
		code, _ := core.RejectionCode(verr)
		c.logger.Error("presented credential rejected",
			"said", said, "issuer", cred.IssuerPrefix, "code", code, "error", verr)
		c.metrics.IncCounter(ctx, "verify.presentation.rejected.total", 1,
			map[string]string{"code": code})
		c.discard(ctx, StagePendingPresentation, said, "validation rejected")
		return
	}

	record := entry.Record
	record.Credential = &cred
	c.move(ctx, StagePendingPresentation, StageValidatedIssuance, said, record)
	c.logger.Info("presentation validated",
		"said", said, "schema", cred.SchemaID, "issuer", cred.IssuerPrefix)
}

func (c *Coordinator) processRevocations(ctx context.Context) {
	entries, err := c.stages.All(ctx, StagePendingRevocation)
	if err != nil {
		c.logger.Error("iterate pending revocations failed", "error", err)
		return
	}
	for _, entry := range entries {
		c.guard(entry.SAID, func() {
			c.processRevocation(ctx, entry)
		})
	}
}

func (c *Coordinator) processRevocation(ctx context.Context, entry Entry) {
	said := entry.SAID
	if c.expired(entry.Record) {
		c.discard(ctx, StagePendingRevocation, said, "escrow timeout elapsed")
		return
	}

	cred, available, err := c.credentials.Get(ctx, said)
	if err != nil {
		c.logger.Error("credential lookup failed", "said", said, "error", err)
		return
	}
	if !available {
		// Revocation before credential; probably an error, let it time out.
		return
	}

	status, err := c.statuses.Status(ctx, cred.RegistryKey, said)
	if err != nil {
		c.logger.Error("registry status lookup failed", "said", said, "error", err)
		return
	}

	if verr := c.validator.Validate(cred, status, core.ActionRevoke); verr != nil {
		// Revocation not reflected in the registry yet; retry next tick.
		return
	}

	record := entry.Record
	record.Credential = &cred
	c.move(ctx, StagePendingRevocation, StageValidatedRevocation, said, record)
	c.logger.Info("revocation validated", "said", said, "schema", cred.SchemaID)
}

func (c *Coordinator) processValidated(ctx context.Context, stage Stage, action string) {
	entries, err := c.stages.All(ctx, stage)
	if err != nil {
		c.logger.Error("iterate validated records failed", "stage", string(stage), "error", err)
		return
	}
	for _, entry := range entries {
		c.guard(entry.SAID, func() {
			c.processDelivery(ctx, stage, action, entry)
		})
	}
}

func (c *Coordinator) processDelivery(ctx context.Context, stage Stage, action string, entry Entry) {
	said := entry.SAID

	if outcome, ok := c.outcomes[outcomeKey(said, action)]; ok {
		delete(c.outcomes, outcomeKey(said, action))
		switch {
		case !outcome.EnqueuedAt.Equal(entry.Record.EnqueuedAt):
			// The outcome belongs to an earlier lifecycle of this SAID
			// whose record already expired. The current record still owes
			// its own delivery.
			c.logger.Debug("stale delivery outcome dropped",
				"said", said, "action", action)
		case outcome.Err == nil:
			acked := entry.Record
			acked.EnqueuedAt = c.now()
			c.move(ctx, stage, StageAcknowledged, said, acked)
			c.logger.Info("notification delivered", "said", said, "action", action)
			c.metrics.IncCounter(ctx, "verify.delivery.total",
				1, map[string]string{"action": action, "status": "success"})
			return
		default:
			c.logger.Error("notification delivery failed",
				"said", said, "action", action, "error", outcome.Err)
			c.metrics.IncCounter(ctx, "verify.delivery.total",
				1, map[string]string{"action": action, "status": "failure"})
		}
	}

	// The delivery window shares the record's original escrow budget: a
	// permanently failing endpoint drops the record instead of retrying
	// forever.
	if c.expired(entry.Record) {
		c.discard(ctx, stage, said, "escrow timeout elapsed before delivery")
		return
	}

	if c.dispatcher.InFlight(said) {
		return
	}

	if entry.Record.Credential == nil {
		c.logger.Error("validated record has no credential", "said", said, "stage", string(stage))
		c.discard(ctx, stage, said, "missing credential")
		return
	}
	cred := *entry.Record.Credential

	status := core.RegistryStatus{}
	if action == core.ActionRevoke {
		// Revocation payloads carry the registry's revocation timestamp,
		// derived fresh rather than from any cached state.
		polled, err := c.statuses.Status(ctx, cred.RegistryKey, said)
		if err != nil {
			c.logger.Error("registry status lookup failed", "said", said, "error", err)
			return
		}
		status = polled
	}

	note := core.Notification{
		SAID:       said,
		Resource:   cred.SchemaID,
		Action:     action,
		Actor:      cred.IssuerPrefix,
		Credential: cred,
		Status:     status,
		EnqueuedAt: entry.Record.EnqueuedAt,
	}
	if err := c.dispatcher.Launch(ctx, note); err != nil {
		// Pool saturated or dispatcher closed; the record stays for the
		// next tick.
		c.logger.Debug("notification launch deferred", "said", said, "error", err)
	}
}

// sweepOutcomes drops delivery results whose record no longer exists with a
// matching escrow window. A record can time out while its attempt is still
// running; keeping the late outcome would grow the mailbox without bound and
// could acknowledge a later re-presentation of the same credential without a
// fresh delivery.
func (c *Coordinator) sweepOutcomes(ctx context.Context) {
	for key, outcome := range c.outcomes {
		stage := StageValidatedIssuance
		if outcome.Action == core.ActionRevoke {
			stage = StageValidatedRevocation
		}
		record, ok, err := c.stages.Get(ctx, stage, outcome.SAID)
		if err != nil {
			c.logger.Error("sweep delivery outcome failed",
				"said", outcome.SAID, "action", outcome.Action, "error", err)
			continue
		}
		if ok && record.EnqueuedAt.Equal(outcome.EnqueuedAt) {
			continue
		}
		delete(c.outcomes, key)
		c.logger.Debug("orphaned delivery outcome dropped",
			"said", outcome.SAID, "action", outcome.Action)
	}
}

// processAcknowledged purges acknowledgment markers written on an earlier
// tick. The marker exists only to provide a bounded audit window and to
// prevent immediate duplicate redelivery within the same pass.
func (c *Coordinator) processAcknowledged(ctx context.Context, tickStartedAt time.Time) {
	entries, err := c.stages.All(ctx, StageAcknowledged)
	if err != nil {
		c.logger.Error("iterate acknowledged records failed", "error", err)
		return
	}
	for _, entry := range entries {
		if !entry.Record.EnqueuedAt.Before(tickStartedAt) {
			continue
		}
		if err := c.stages.Remove(ctx, StageAcknowledged, entry.SAID); err != nil {
			c.logger.Error("purge acknowledged record failed", "said", entry.SAID, "error", err)
		}
	}
}

func (c *Coordinator) expired(record Record) bool {
	return c.now().Sub(record.EnqueuedAt) > c.config.Timeout
}

func (c *Coordinator) discard(ctx context.Context, stage Stage, said string, reason string) {
	if err := c.stages.Remove(ctx, stage, said); err != nil {
		c.logger.Error("discard escrow record failed",
			"stage", string(stage), "said", said, "error", err)
		return
	}
	c.logger.Info("escrow record discarded",
		"stage", string(stage), "said", said, "reason", reason)
	c.metrics.IncCounter(ctx, "verify.escrow.discarded.total", 1,
		map[string]string{"stage": string(stage)})
}

// move is put-then-remove and intentionally not atomic; see StageStore.
func (c *Coordinator) move(ctx context.Context, from Stage, to Stage, said string, record Record) {
	if err := c.stages.Put(ctx, to, said, record); err != nil {
		c.logger.Error("stage transition put failed",
			"from", string(from), "to", string(to), "said", said, "error", err)
		return
	}
	if err := c.stages.Remove(ctx, from, said); err != nil {
		c.logger.Error("stage transition remove failed",
			"from", string(from), "to", string(to), "said", said, "error", err)
	}
}

// guard isolates one record's processing so a panic cannot take down the
// rest of the tick or the loop itself.
func (c *Coordinator) guard(said string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("escrow record processing panicked", "said", said, "panic", r)
		}
	}()
	fn()
}

func outcomeKey(said string, action string) string {
	return said + "|" + action
}
