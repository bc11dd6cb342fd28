// Package hook builds, signs, and delivers outbound webhook notifications
// for validated credential events.
package hook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

const (
	headerResource  = "Sally-Resource"
	headerTimestamp = "Sally-Timestamp"

	signatureAlgorithm = "ed25519"
	signatureLabel     = "sig0"
)

// signedFields is the ordered component list covered by the request
// signature.
var signedFields = []string{"sally-resource", "@method", "@path", "sally-timestamp"}

// Notifier performs one webhook delivery attempt per call. It keeps no
// retry state: a failed attempt surfaces as an error and retry policy stays
// with the escrow coordinator. Re-sending the same payload for the same
// SAID is always safe; the subscriber de-duplicates on credential SAID.
type Notifier struct {
	client   *http.Client
	signer   core.RequestSigner
	endpoint *url.URL
	logger   core.Logger
	now      func() time.Time
}

type NotifierOption func(*Notifier)

func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

func WithNotifierLogger(logger core.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithNotifierNow(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

func NewNotifier(hookURL string, signer core.RequestSigner, opts ...NotifierOption) (*Notifier, error) {
	hookURL = strings.TrimSpace(hookURL)
	if hookURL == "" {
		return nil, fmt.Errorf("hook: webhook URL is required")
	}
	parsed, err := url.Parse(hookURL)
	if err != nil {
		return nil, fmt.Errorf("hook: invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("hook: webhook URL requires an http or https scheme, got %q", parsed.Scheme)
	}
	if signer == nil {
		return nil, fmt.Errorf("hook: request signer is required")
	}
	notifier := &Notifier{
		client:   &http.Client{},
		signer:   signer,
		endpoint: parsed,
		logger:   glog.Nop(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(notifier)
	}
	notifier.logger = glog.Ensure(notifier.logger)
	return notifier, nil
}

// Deliver sends one signed POST for the notification. Any 2xx response is a
// success; every other response or transport error is a delivery failure.
func (n *Notifier) Deliver(ctx context.Context, note core.Notification) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("hook: notifier is not configured")
	}

	raw, err := json.Marshal(BuildBody(note))
	if err != nil {
		return fmt.Errorf("hook: encode notification body: %w", err)
	}

	path := n.endpoint.Path
	if path == "" {
		path = "/"
	}
	now := n.now()
	timestamp := now.Format(time.RFC3339)

	base, params := SignatureBase(note.Resource, http.MethodPost, path, timestamp, n.signer.KeyID(), now.Unix())
	signature, err := n.signer.Sign(ctx, []byte(base))
	if err != nil {
		return fmt.Errorf("hook: sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("hook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(raw)))
	req.Header.Set("Connection", "close")
	req.Header.Set(headerResource, note.Resource)
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set("Signature-Input", signatureLabel+"="+params)
	req.Header.Set("Signature",
		signatureLabel+"=:"+base64.RawURLEncoding.EncodeToString(signature)+":")
	req.Close = true

	resp, err := n.client.Do(req)
	if err != nil {
		return core.DeliveryFailedError(fmt.Sprintf(
			"webhook call for credential %s failed: %v", note.SAID, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.DeliveryFailedError(fmt.Sprintf(
			"webhook call for credential %s returned status %d", note.SAID, resp.StatusCode))
	}

	n.logger.Info("webhook delivered",
		"said", note.SAID, "action", note.Action, "status", resp.StatusCode)
	return nil
}

// SignatureBase builds the canonical signing string over the resource tag,
// method, path, and timestamp, plus the signature parameters that bind the
// key identifier and algorithm. Both the base and the rendered parameter
// string are returned so the latter can ride in the Signature-Input header.
func SignatureBase(resource, method, path, timestamp, keyID string, created int64) (string, string) {
	quoted := make([]string, 0, len(signedFields))
	for _, field := range signedFields {
		quoted = append(quoted, `"`+field+`"`)
	}
	params := fmt.Sprintf(`(%s);created=%d;keyid=%q;alg=%q`,
		strings.Join(quoted, " "), created, keyID, signatureAlgorithm)

	var b strings.Builder
	writeComponent := func(name, value string) {
		b.WriteString(`"` + name + `": ` + value + "\n")
	}
	writeComponent("sally-resource", resource)
	writeComponent("@method", method)
	writeComponent("@path", path)
	writeComponent("sally-timestamp", timestamp)
	b.WriteString(`"@signature-params": ` + params)
	return b.String(), params
}
