package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/hook"
	"github.com/goliatone/go-verify/inbound"
	"github.com/goliatone/go-verify/security"
)

type mapCredentialStore struct {
	mu    sync.Mutex
	creds map[string]core.Credential
}

func (s *mapCredentialStore) Get(_ context.Context, said string) (core.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[said]
	return cred, ok, nil
}

type mapStatusOracle struct {
	mu       sync.Mutex
	statuses map[string]core.RegistryStatus
}

func (s *mapStatusOracle) Status(_ context.Context, _ string, said string) (core.RegistryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[said], nil
}

func TestNew_RequiresStoresAndSigner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Authority = "EAuthority"
	cfg.Hook.URL = "https://hook.example.com/notify"

	if _, err := New(cfg); err == nil {
		t.Fatalf("expected credential store requirement error")
	}

	creds := &mapCredentialStore{creds: map[string]core.Credential{}}
	statuses := &mapStatusOracle{statuses: map[string]core.RegistryStatus{}}

	if _, err := New(cfg, WithCredentialStore(creds)); err == nil {
		t.Fatalf("expected status oracle requirement error")
	}
	if _, err := New(cfg, WithCredentialStore(creds), WithStatusOracle(statuses)); err == nil {
		t.Fatalf("expected signer requirement error")
	}

	signer, err := security.GenerateEd25519Signer("EVerifier")
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	pipeline, err := New(cfg,
		WithCredentialStore(creds),
		WithStatusOracle(statuses),
		WithRequestSigner(signer),
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	defer pipeline.Close(time.Second)

	if pipeline.Handler() == nil || pipeline.Queue() == nil || pipeline.Coordinator() == nil {
		t.Fatalf("expected fully wired pipeline")
	}
}

func TestNew_RequiresAuthority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hook.URL = "https://hook.example.com/notify"
	creds := &mapCredentialStore{creds: map[string]core.Credential{}}
	statuses := &mapStatusOracle{statuses: map[string]core.RegistryStatus{}}

	if _, err := New(cfg, WithCredentialStore(creds), WithStatusOracle(statuses)); err == nil {
		t.Fatalf("expected authority requirement error")
	}
}

func TestPipeline_PresentationToWebhookDelivery(t *testing.T) {
	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case received <- body:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	signer, err := security.GenerateEd25519Signer("EVerifier")
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Authority = "EAuthority"
	cfg.Hook.URL = server.URL

	creds := &mapCredentialStore{creds: map[string]core.Credential{
		"EABC123": {
			SAID:         "EABC123",
			SchemaID:     core.SchemaIDCard,
			IssuerPrefix: "EAuthority",
			IssueePrefix: "EHolder",
			Attributes:   map[string]any{"i": "EHolder", "firstName": "Anne"},
		},
	}}
	statuses := &mapStatusOracle{statuses: map[string]core.RegistryStatus{
		"EABC123": {EventType: core.EventIssued},
	}}

	pipeline, err := New(cfg,
		WithCredentialStore(creds),
		WithStatusOracle(statuses),
		WithRequestSigner(signer),
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	defer pipeline.Close(2 * time.Second)

	router := inbound.NewDispatcher(nil, nil)
	if err := pipeline.Register(router); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	result, err := router.Dispatch(ctx, inbound.Request{
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
		t.Fatalf("expected accepted dispatch")
	}

	// First tick validates and launches the delivery.
	if err := pipeline.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	var body []byte
	select {
	case body = <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected webhook delivery")
	}

	var parsed hook.IssuanceBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decode webhook body: %v", err)
	}
	if parsed.Credential != "EABC123" || parsed.FirstName != "Anne" {
		t.Fatalf("unexpected webhook body %+v", parsed)
	}
}

func TestPipeline_RegisterRequiresRouter(t *testing.T) {
	signer, err := security.GenerateEd25519Signer("EVerifier")
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Authority = "EAuthority"
	cfg.Hook.URL = "https://hook.example.com/notify"

	pipeline, err := New(cfg,
		WithCredentialStore(&mapCredentialStore{creds: map[string]core.Credential{}}),
		WithStatusOracle(&mapStatusOracle{statuses: map[string]core.RegistryStatus{}}),
		WithRequestSigner(signer),
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	defer pipeline.Close(time.Second)

	if err := pipeline.Register(nil); err == nil {
		t.Fatalf("expected router requirement error")
	}
}
