package verify

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/escrow"
	"github.com/goliatone/go-verify/hook"
	"github.com/goliatone/go-verify/ingest"
)

// Pipeline assembles the full verification service: ingest handler, notice
// queue, escrow coordinator with its tick runner, and the webhook delivery
// dispatcher.
type Pipeline struct {
	config      Config
	handler     *ingest.Handler
	queue       core.NoticeQueue
	stages      escrow.StageStore
	dispatcher  core.NotificationDispatcher
	coordinator *escrow.Coordinator
	runner      *escrow.Runner
	logger      core.Logger
}

type Option func(*pipelineOptions)

type pipelineOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	queue          core.NoticeQueue
	stages         escrow.StageStore
	credentials    core.CredentialStore
	statuses       core.StatusOracle
	signer         core.RequestSigner
	dispatcher     core.NotificationDispatcher
	now            func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *pipelineOptions) {
		o.loggerProvider = provider
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *pipelineOptions) {
		o.metrics = metrics
	}
}

func WithNoticeQueue(queue core.NoticeQueue) Option {
	return func(o *pipelineOptions) {
		o.queue = queue
	}
}

func WithStageStore(stages escrow.StageStore) Option {
	return func(o *pipelineOptions) {
		o.stages = stages
	}
}

func WithCredentialStore(store core.CredentialStore) Option {
	return func(o *pipelineOptions) {
		o.credentials = store
	}
}

func WithStatusOracle(oracle core.StatusOracle) Option {
	return func(o *pipelineOptions) {
		o.statuses = oracle
	}
}

func WithRequestSigner(signer core.RequestSigner) Option {
	return func(o *pipelineOptions) {
		o.signer = signer
	}
}

func WithDispatcher(dispatcher core.NotificationDispatcher) Option {
	return func(o *pipelineOptions) {
		o.dispatcher = dispatcher
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *pipelineOptions) {
		o.now = now
	}
}

// New wires a pipeline from configuration. A credential store and status
// oracle are always required; a request signer is required unless a
// prebuilt dispatcher is injected.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := pipelineOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	_, logger := glog.Resolve(cfg.ServiceName, options.loggerProvider, options.logger)

	if options.credentials == nil {
		return nil, fmt.Errorf("verify: credential store is required")
	}
	if options.statuses == nil {
		return nil, fmt.Errorf("verify: status oracle is required")
	}

	validator, err := core.NewValidator(cfg.Authority, cfg.Schemas)
	if err != nil {
		return nil, err
	}

	queue := options.queue
	if queue == nil {
		queue = ingest.NewMemoryQueue(0)
	}
	stages := options.stages
	if stages == nil {
		stages = escrow.NewMemoryStore()
	}

	dispatcher := options.dispatcher
	if dispatcher == nil {
		if options.signer == nil {
			return nil, fmt.Errorf("verify: request signer is required to build the webhook dispatcher")
		}
		notifier, err := hook.NewNotifier(cfg.Hook.URL, options.signer,
			hook.WithNotifierLogger(logger))
		if err != nil {
			return nil, err
		}
		dispatcher, err = hook.NewDispatcher(notifier,
			hook.WithMaxInFlight(cfg.Hook.MaxInFlight),
			hook.WithAttemptTimeout(cfg.Hook.Timeout),
			hook.WithDispatcherLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	handler, err := ingest.NewHandler(queue, logger)
	if err != nil {
		return nil, err
	}

	coordinator, err := escrow.NewCoordinator(escrow.Dependencies{
		Stages:      stages,
		Queue:       queue,
		Credentials: options.credentials,
		Statuses:    options.statuses,
		Validator:   validator,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     options.metrics,
		Now:         options.now,
	}, escrow.Config{Timeout: cfg.Escrow.Timeout})
	if err != nil {
		return nil, err
	}

	runner, err := escrow.NewRunner(coordinator, cfg.Escrow.Interval, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:      cfg,
		handler:     handler,
		queue:       queue,
		stages:      stages,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		runner:      runner,
		logger:      logger,
	}, nil
}

// Register attaches the ingest handler to the exchange transport.
func (p *Pipeline) Register(router core.ExchangeRouter) error {
	if p == nil || p.handler == nil {
		return fmt.Errorf("verify: pipeline is not configured")
	}
	if router == nil {
		return fmt.Errorf("verify: exchange router is required")
	}
	return router.AddHandler(p.handler)
}

// Start runs the escrow tick loop until ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) error {
	if p == nil || p.runner == nil {
		return fmt.Errorf("verify: pipeline is not configured")
	}
	p.runner.Start(ctx)
	return nil
}

// Tick runs one escrow pass. Useful for tests and manual drains.
func (p *Pipeline) Tick(ctx context.Context) error {
	if p == nil || p.coordinator == nil {
		return fmt.Errorf("verify: pipeline is not configured")
	}
	p.coordinator.Tick(ctx)
	return nil
}

// Close stops the webhook dispatcher, waiting up to grace for in-flight
// deliveries.
func (p *Pipeline) Close(grace time.Duration) error {
	if p == nil {
		return nil
	}
	if closer, ok := p.dispatcher.(interface{ Close(time.Duration) error }); ok {
		return closer.Close(grace)
	}
	return nil
}

func (p *Pipeline) Handler() *ingest.Handler {
	if p == nil {
		return nil
	}
	return p.handler
}

func (p *Pipeline) Queue() core.NoticeQueue {
	if p == nil {
		return nil
	}
	return p.queue
}

func (p *Pipeline) Coordinator() *escrow.Coordinator {
	if p == nil {
		return nil
	}
	return p.coordinator
}

func (p *Pipeline) Config() Config {
	if p == nil {
		return Config{}
	}
	return p.config
}
