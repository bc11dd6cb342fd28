// Package inbound routes exchange messages from the peer transport to the
// registered resource handlers.
//
// Transport redeliveries use claim/complete/fail idempotency semantics so a
// replayed message is absorbed while transient handler failures remain
// retryable.
package inbound
