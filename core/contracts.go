package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CredentialStore exposes the external credential database keyed by SAID.
// The second return reports availability: a credential referenced by a
// presentation may not have arrived yet, which is a retry condition rather
// than an error.
type CredentialStore interface {
	Get(ctx context.Context, said string) (Credential, bool, error)
}

// StatusOracle derives the current registry status for a credential. Results
// are valid only for the poll that produced them.
type StatusOracle interface {
	Status(ctx context.Context, registryKey string, said string) (RegistryStatus, error)
}

// RequestSigner signs the canonical signature base of an outbound webhook
// request. The implementation owns the key material; KeyID is the base64url
// encoding (no padding) of the raw public signing key, and SignerPrefix the
// identifier prefix of the local identity.
type RequestSigner interface {
	Sign(ctx context.Context, input []byte) ([]byte, error)
	KeyID() string
	SignerPrefix() string
}

// ExchangeMessage is the decoded body of a peer exchange message.
type ExchangeMessage struct {
	Payload map[string]any
}

// ExchangeHandler consumes exchange messages addressed to one resource.
type ExchangeHandler interface {
	Resource() string
	Handle(ctx context.Context, msg ExchangeMessage) error
}

// ExchangeRouter registers handlers with the peer exchange transport.
type ExchangeRouter interface {
	AddHandler(handler ExchangeHandler) error
}

// NoticeQueue is the hand-off between the ingest task and the coordinator.
// Enqueue is called by the ingest side; Drain by the coordinator at the start
// of each tick. Implementations must be safe for one producer and one
// consumer.
type NoticeQueue interface {
	Enqueue(ctx context.Context, notice Notice) error
	Drain(max int) []Notice
}

// NotificationDispatcher launches webhook deliveries without blocking the
// coordinator loop. Launch returns immediately; completions surface through
// Outcomes on a later tick.
type NotificationDispatcher interface {
	Launch(ctx context.Context, note Notification) error
	InFlight(said string) bool
	Outcomes() []DeliveryOutcome
}

// MetricsRecorder receives pipeline counters and timings.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
