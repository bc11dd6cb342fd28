package inbound

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-verify/core"
)

func TestDispatcher_RoutesMessageToResourceHandler(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	handler := &recordingHandler{resource: "/presentation"}
	if err := dispatcher.AddHandler(handler); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), Request{
		Resource: "/presentation",
		Message: core.ExchangeMessage{Payload: map[string]any{
			"i": "EHolder",
			"a": "EABC123",
		}},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted result")
	}
	if len(handler.payloads) != 1 {
		t.Fatalf("expected 1 handled message, got %d", len(handler.payloads))
	}
	if handler.payloads[0]["a"] != "EABC123" {
		t.Fatalf("expected payload passthrough, got %#v", handler.payloads[0])
	}
}

func TestDispatcher_RejectsDuplicateRegistration(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	if err := dispatcher.AddHandler(&recordingHandler{resource: "/presentation"}); err != nil {
		t.Fatalf("add handler: %v", err)
	}
	if err := dispatcher.AddHandler(&recordingHandler{resource: "/presentation"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestDispatcher_UnknownResourceFails(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	_, err := dispatcher.Dispatch(context.Background(), Request{
		Resource: "/unknown",
		Message:  core.ExchangeMessage{Payload: map[string]any{}},
	})
	if err == nil {
		t.Fatalf("expected no-handler error")
	}
}

func TestDispatcher_VerifierRejectionShortCircuits(t *testing.T) {
	handler := &recordingHandler{resource: "/presentation"}
	dispatcher := NewDispatcher(failingVerifier{}, nil)
	if err := dispatcher.AddHandler(handler); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), Request{
		Resource: "/presentation",
		Message:  core.ExchangeMessage{Payload: map[string]any{}},
	})
	if err == nil {
		t.Fatalf("expected verification error")
	}
	if result.Accepted {
		t.Fatalf("expected rejected result")
	}
	if len(handler.payloads) != 0 {
		t.Fatalf("expected handler not to run")
	}
}

func TestDispatcher_DedupesRedeliveredMessage(t *testing.T) {
	handler := &recordingHandler{resource: "/presentation"}
	dispatcher := NewDispatcher(nil, NewInMemoryClaimStore())
	if err := dispatcher.AddHandler(handler); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	req := Request{
		Resource: "/presentation",
		Headers:  map[string]string{"X-Message-Id": "msg-1"},
		Message: core.ExchangeMessage{Payload: map[string]any{
			"i": "EHolder",
			"a": "EABC123",
		}},
	}
	if _, err := dispatcher.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("redelivered dispatch: %v", err)
	}
	if deduped, _ := result.Metadata["deduped"].(bool); !deduped {
		t.Fatalf("expected redelivery to be deduped, got %#v", result.Metadata)
	}
	if len(handler.payloads) != 1 {
		t.Fatalf("expected handler to run once, got %d", len(handler.payloads))
	}
}

func TestDispatcher_FailedHandlerReopensClaim(t *testing.T) {
	handler := &recordingHandler{resource: "/presentation", err: fmt.Errorf("queue unavailable")}
	store := NewInMemoryClaimStore()
	dispatcher := NewDispatcher(nil, store)
	if err := dispatcher.AddHandler(handler); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	req := Request{
		Resource: "/presentation",
		Headers:  map[string]string{"X-Message-Id": "msg-2"},
		Message:  core.ExchangeMessage{Payload: map[string]any{"i": "EHolder", "a": "EABC123"}},
	}
	if _, err := dispatcher.Dispatch(context.Background(), req); err == nil {
		t.Fatalf("expected handler failure")
	}

	handler.err = nil
	if _, err := dispatcher.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("retry dispatch: %v", err)
	}
	if len(handler.payloads) != 1 {
		t.Fatalf("expected retry to reach handler, got %d calls", len(handler.payloads))
	}
}

func TestDispatcher_MissingMessageIdentitySkipsDedupe(t *testing.T) {
	handler := &recordingHandler{resource: "/presentation"}
	dispatcher := NewDispatcher(nil, NewInMemoryClaimStore())
	if err := dispatcher.AddHandler(handler); err != nil {
		t.Fatalf("add handler: %v", err)
	}

	req := Request{
		Resource: "/presentation",
		Message:  core.ExchangeMessage{Payload: map[string]any{"i": "EHolder", "a": "EABC123"}},
	}
	for i := 0; i < 2; i++ {
		if _, err := dispatcher.Dispatch(context.Background(), req); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	if len(handler.payloads) != 2 {
		t.Fatalf("expected both dispatches to reach handler, got %d", len(handler.payloads))
	}
}

func TestInMemoryClaimStore_LeaseExpiryReopensKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryClaimStore()
	store.Now = func() time.Time { return now }

	_, accepted, err := store.Claim(context.Background(), "k1", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !accepted {
		t.Fatalf("expected fresh claim to be accepted")
	}

	_, accepted, err = store.Claim(context.Background(), "k1", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if accepted {
		t.Fatalf("expected held claim to be rejected")
	}

	now = now.Add(2 * time.Minute)
	_, accepted, err = store.Claim(context.Background(), "k1", time.Minute)
	if err != nil {
		t.Fatalf("expired claim: %v", err)
	}
	if !accepted {
		t.Fatalf("expected expired lease to reopen key")
	}
}

type recordingHandler struct {
	resource string
	payloads []map[string]any
	err      error
}

func (h *recordingHandler) Resource() string {
	return h.resource
}

func (h *recordingHandler) Handle(_ context.Context, msg core.ExchangeMessage) error {
	if h.err != nil {
		return h.err
	}
	h.payloads = append(h.payloads, msg.Payload)
	return nil
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, Request) error {
	return fmt.Errorf("signature mismatch")
}
