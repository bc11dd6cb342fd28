package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verify/core"
)

// Request is one exchange message as received from the transport, before
// resource routing.
type Request struct {
	Resource string
	Headers  map[string]string
	Message  core.ExchangeMessage
	Metadata map[string]any
}

// Result reports what the dispatcher did with a request.
type Result struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// Verifier authenticates the transport envelope before any handler runs,
// e.g. checking exchange message signatures.
type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

// ClaimStore tracks transport-level redeliveries. Claim returns false when
// the key is already held; Fail re-opens the claim so the message can be
// retried.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

// MessageKeyExtractor derives the dedupe key for a request. An empty key
// with a nil error means the transport supplied no message identity and
// dedupe is skipped for that request.
type MessageKeyExtractor func(req Request) (string, error)

// Dispatcher routes exchange messages to the handler registered for their
// resource. It implements the exchange router contract the pipeline
// registers its ingest handler with.
type Dispatcher struct {
	Verifier   Verifier
	Store      ClaimStore
	ExtractKey MessageKeyExtractor
	KeyTTL     time.Duration

	mu       sync.RWMutex
	handlers map[string]core.ExchangeHandler
}

func NewDispatcher(verifier Verifier, store ClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Store:      store,
		ExtractKey: DefaultMessageKeyExtractor,
		KeyTTL:     10 * time.Minute,
		handlers:   map[string]core.ExchangeHandler{},
	}
}

func (d *Dispatcher) AddHandler(handler core.ExchangeHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	resource := normalizeResource(handler.Resource())
	if resource == "" {
		return inboundBadInput("inbound: handler resource is required", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[resource]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for resource %q", resource),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.VerifyErrorBadInput,
			map[string]any{"resource": resource},
		)
	}
	d.handlers[resource] = handler
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil {
		return Result{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.Resource = normalizeResource(req.Resource)
	if req.Resource == "" {
		return Result{}, inboundBadInput("inbound: message resource is required", nil)
	}
	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return Result{
					Accepted:   false,
					StatusCode: http.StatusUnauthorized,
					Metadata: map[string]any{
						"resource": req.Resource,
						"rejected": true,
					},
				}, inboundWrapError(
					err,
					goerrors.CategoryAuth,
					"inbound: message verification failed",
					http.StatusUnauthorized,
					core.VerifyErrorUntrustedIssuer,
					map[string]any{"resource": req.Resource},
				)
		}
	}

	claimID := ""
	if d.Store != nil {
		extractor := d.ExtractKey
		if extractor == nil {
			extractor = DefaultMessageKeyExtractor
		}
		key, err := extractor(req)
		if err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryBadInput,
				"inbound: resolve message key",
				http.StatusBadRequest,
				core.VerifyErrorBadInput,
				map[string]any{"resource": req.Resource},
			)
		}
		if key != "" {
			var accepted bool
			claimID, accepted, err = d.Store.Claim(ctx, req.Resource+":"+key, d.keyTTL())
			if err != nil {
				return Result{}, inboundWrapError(
					err,
					goerrors.CategoryOperation,
					"inbound: redelivery claim failed",
					http.StatusInternalServerError,
					core.VerifyErrorInternal,
					map[string]any{"resource": req.Resource, "message_key": key},
				)
			}
			if !accepted {
				return Result{
					Accepted:   true,
					StatusCode: http.StatusOK,
					Metadata: map[string]any{
						"resource": req.Resource,
						"deduped":  true,
					},
				}, nil
			}
		}
	}

	handler := d.handlerFor(req.Resource)
	if handler == nil {
		return Result{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for resource %q", req.Resource),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.VerifyErrorBadInput,
			map[string]any{"resource": req.Resource},
		)
	}
	if err := handler.Handle(ctx, req.Message); err != nil {
		handlerErr := inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: handler execution failed",
			http.StatusBadRequest,
			core.VerifyErrorMalformedMessage,
			map[string]any{"resource": req.Resource},
		)
		if d.Store != nil && claimID != "" {
			if failErr := d.Store.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return Result{}, inboundWrapError(
					failErr,
					goerrors.CategoryOperation,
					"inbound: mark redelivery claim failed",
					http.StatusInternalServerError,
					core.VerifyErrorInternal,
					map[string]any{"resource": req.Resource, "claim_id": claimID},
				)
			}
		}
		return Result{}, handlerErr
	}
	if d.Store != nil && claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: complete redelivery claim",
				http.StatusInternalServerError,
				core.VerifyErrorInternal,
				map[string]any{"resource": req.Resource, "claim_id": claimID},
			)
		}
	}
	return Result{
		Accepted:   true,
		StatusCode: http.StatusAccepted,
		Metadata: map[string]any{
			"resource": req.Resource,
		},
	}, nil
}

// DefaultMessageKeyExtractor reads the transport message identity from the
// request metadata or headers. Missing identity skips dedupe rather than
// rejecting: the escrow layer is idempotent per SAID anyway.
func DefaultMessageKeyExtractor(req Request) (string, error) {
	if req.Metadata != nil {
		if value := trimAny(req.Metadata["message_id"]); value != "" {
			return value, nil
		}
	}
	if req.Headers != nil {
		if value := headerValue(req.Headers, "x-message-id"); value != "" {
			return value, nil
		}
		if value := headerValue(req.Headers, "idempotency-key"); value != "" {
			return value, nil
		}
	}
	return "", nil
}

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	Key            string
	Status         claimStatus
	ClaimID        string
	Attempts       int
	KeyTTL         time.Duration
	LeaseExpiresAt time.Time
	RetryAt        time.Time
}

// InMemoryClaimStore is the default ClaimStore for single-process
// deployments.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Claim(
	_ context.Context,
	key string,
	lease time.Duration,
) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: claim key is required", nil)
	}
	now := s.now()
	if lease <= 0 {
		lease = 10 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	entry, exists := s.entries[key]
	if !exists {
		claimID := s.nextClaimID()
		s.entries[key] = claimEntry{
			Key:            key,
			Status:         claimStatusProcessing,
			ClaimID:        claimID,
			Attempts:       1,
			KeyTTL:         lease,
			LeaseExpiresAt: now.Add(lease),
		}
		s.claims[claimID] = key
		return claimID, true, nil
	}

	switch entry.Status {
	case claimStatusComplete:
		if !entry.LeaseExpiresAt.IsZero() && now.Before(entry.LeaseExpiresAt) {
			return "", false, nil
		}
	case claimStatusProcessing:
		if now.Before(entry.LeaseExpiresAt) {
			return "", false, nil
		}
	case claimStatusRetryReady:
		if !entry.RetryAt.IsZero() && now.Before(entry.RetryAt) {
			return "", false, nil
		}
	}

	if entry.ClaimID != "" {
		delete(s.claims, entry.ClaimID)
	}
	claimID := s.nextClaimID()
	entry.Status = claimStatusProcessing
	entry.ClaimID = claimID
	entry.Attempts++
	entry.KeyTTL = lease
	entry.LeaseExpiresAt = now.Add(lease)
	entry.RetryAt = time.Time{}
	s.entries[key] = entry
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		delete(s.claims, claimID)
		return nil
	}
	ttl := entry.KeyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := s.now()
	entry.Status = claimStatusComplete
	entry.LeaseExpiresAt = now.Add(ttl)
	entry.RetryAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryClaimStore) Fail(
	_ context.Context,
	claimID string,
	_ error,
	retryAt time.Time,
) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		delete(s.claims, claimID)
		return nil
	}
	if retryAt.IsZero() {
		retryAt = s.now()
	}
	entry.Status = claimStatusRetryReady
	entry.RetryAt = retryAt.UTC()
	entry.LeaseExpiresAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) nextClaimID() string {
	s.nextID++
	return fmt.Sprintf("claim_%d", s.nextID)
}

func (s *InMemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if entry.Status != claimStatusComplete {
			continue
		}
		if entry.LeaseExpiresAt.IsZero() || !now.Before(entry.LeaseExpiresAt) {
			if entry.ClaimID != "" {
				delete(s.claims, entry.ClaimID)
			}
			delete(s.entries, key)
		}
	}
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return 10 * time.Minute
}

func (d *Dispatcher) handlerFor(resource string) core.ExchangeHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeResource(resource)]
}

func normalizeResource(resource string) string {
	return strings.TrimSpace(strings.ToLower(resource))
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.ExchangeRouter = (*Dispatcher)(nil)
