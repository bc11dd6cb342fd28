package hook

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/security"
)

func testSigner(t *testing.T) *security.Ed25519Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	signer, err := security.NewEd25519Signer(seed, "EVerifier")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func idCardNotification() core.Notification {
	return core.Notification{
		SAID:     "EABC123",
		Resource: core.SchemaIDCard,
		Action:   core.ActionIssue,
		Actor:    "EAuthority",
		Credential: core.Credential{
			SAID:         "EABC123",
			SchemaID:     core.SchemaIDCard,
			IssuerPrefix: "EAuthority",
			IssueePrefix: "EHolder",
			Attributes: map[string]any{
				"i":         "EHolder",
				"dt":        "2026-03-01T10:00:00+00:00",
				"firstName": "Anne",
				"lastName":  "Hale",
			},
		},
	}
}

func TestNotifier_DeliverSendsSignedRequest(t *testing.T) {
	signer := testSigner(t)
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var captured *http.Request
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewNotifier(server.URL+"/notify", signer,
		WithNotifierNow(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	if err := notifier.Deliver(context.Background(), idCardNotification()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected a request to reach the server")
	}

	if got := captured.Header.Get("Sally-Resource"); got != core.SchemaIDCard {
		t.Fatalf("unexpected resource header %q", got)
	}
	timestamp := captured.Header.Get("Sally-Timestamp")
	if timestamp != fixedNow.Format(time.RFC3339) {
		t.Fatalf("unexpected timestamp header %q", timestamp)
	}
	if got := captured.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	sigInput := captured.Header.Get("Signature-Input")
	if !strings.HasPrefix(sigInput, "sig0=(") {
		t.Fatalf("unexpected Signature-Input %q", sigInput)
	}
	if !strings.Contains(sigInput, `alg="ed25519"`) {
		t.Fatalf("expected ed25519 algorithm in %q", sigInput)
	}
	if !strings.Contains(sigInput, `keyid="`+signer.KeyID()+`"`) {
		t.Fatalf("expected signer key id in %q", sigInput)
	}

	sigHeader := captured.Header.Get("Signature")
	if !strings.HasPrefix(sigHeader, "sig0=:") || !strings.HasSuffix(sigHeader, ":") {
		t.Fatalf("unexpected Signature header %q", sigHeader)
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(sigHeader, "sig0=:"), ":")
	signature, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	base, _ := SignatureBase(core.SchemaIDCard, http.MethodPost, "/notify",
		timestamp, signer.KeyID(), fixedNow.Unix())
	if !ed25519.Verify(signer.PublicKey(), []byte(base), signature) {
		t.Fatalf("signature did not verify against the reconstructed base")
	}

	var parsed IssuanceBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if parsed.Credential != "EABC123" || parsed.FirstName != "Anne" {
		t.Fatalf("unexpected body %+v", parsed)
	}
}

func TestNotifier_NonSuccessStatusIsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier, err := NewNotifier(server.URL, testSigner(t))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	err = notifier.Deliver(context.Background(), idCardNotification())
	if err == nil {
		t.Fatalf("expected delivery failure")
	}
	if _, terminal := core.RejectionCode(err); terminal {
		t.Fatalf("delivery failure must not be a terminal rejection")
	}
}

func TestNotifier_TransportErrorIsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	notifier, err := NewNotifier(server.URL, testSigner(t))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.Deliver(context.Background(), idCardNotification()); err == nil {
		t.Fatalf("expected transport failure")
	}
}

func TestNewNotifier_RejectsBadURL(t *testing.T) {
	signer := testSigner(t)
	if _, err := NewNotifier("", signer); err == nil {
		t.Fatalf("expected empty URL error")
	}
	if _, err := NewNotifier("ftp://hook.example.com", signer); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := NewNotifier("https://hook.example.com", nil); err == nil {
		t.Fatalf("expected signer requirement error")
	}
}

func TestSignatureBase_Layout(t *testing.T) {
	base, params := SignatureBase("/presentation", http.MethodPost, "/hook",
		"2026-03-01T12:00:00Z", "key-1", 1772366400)

	lines := strings.Split(base, "\n")
	want := []string{
		`"sally-resource": /presentation`,
		`"@method": POST`,
		`"@path": /hook`,
		`"sally-timestamp": 2026-03-01T12:00:00Z`,
		`"@signature-params": ` + params,
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), base)
	}
	for i, line := range want {
		if lines[i] != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, lines[i])
		}
	}
	if !strings.HasPrefix(params, `("sally-resource" "@method" "@path" "sally-timestamp");created=1772366400;`) {
		t.Fatalf("unexpected params %q", params)
	}
}
