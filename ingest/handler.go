// Package ingest converts inbound peer-exchange payloads into escrow
// notices for the coordinator.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-verify/core"
)

// PresentationResource is the exchange-protocol resource this handler
// registers for.
const PresentationResource = "/presentation"

// Handler consumes presentation and revocation notices from the peer
// exchange transport and feeds the notice queue. It performs shape
// validation only; all credential-level decisions belong to the coordinator.
type Handler struct {
	queue  core.NoticeQueue
	logger core.Logger
}

func NewHandler(queue core.NoticeQueue, logger core.Logger) (*Handler, error) {
	if queue == nil {
		return nil, fmt.Errorf("ingest: notice queue is required")
	}
	return &Handler{
		queue:  queue,
		logger: glog.Ensure(logger),
	}, nil
}

func (h *Handler) Resource() string {
	return PresentationResource
}

// Handle decodes `{"i": <sender>, "a"|"n": <credential SAID>}`. The "a"
// field references a presented credential, "n" a revoked one. A payload
// missing the sender or the credential reference is malformed and dropped.
func (h *Handler) Handle(ctx context.Context, msg core.ExchangeMessage) error {
	notice, err := NoticeFromPayload(msg.Payload)
	if err != nil {
		h.logger.Error("exchange message rejected", "resource", h.Resource(), "error", err)
		return err
	}
	if err := validateNoticeContract(notice); err != nil {
		h.logger.Error("exchange notice contract violation", "error", err)
		return core.MalformedMessageError(err.Error())
	}
	if err := h.queue.Enqueue(ctx, notice); err != nil {
		return err
	}
	h.logger.Debug("exchange notice queued",
		"type", notice.Type(), "said", notice.Subject(), "sender", notice.Actor())
	return nil
}

// NoticeFromPayload maps the wire shape onto a tagged notice record.
func NoticeFromPayload(payload map[string]any) (core.Notice, error) {
	sender := stringField(payload, "i")
	if sender == "" {
		return nil, core.MalformedMessageError("exchange message has no sender identifier")
	}
	if said := stringField(payload, "a"); said != "" {
		return core.PresentationNotice{SenderPrefix: sender, SAID: said}, nil
	}
	if said := stringField(payload, "n"); said != "" {
		return core.RevocationNotice{SenderPrefix: sender, SAID: said}, nil
	}
	return nil, core.MalformedMessageError("exchange message has no credential reference")
}

// validateNoticeContract enforces the Type() plus Validate() message
// contract the queue bridge relies on.
func validateNoticeContract(notice core.Notice) error {
	if err := command.ValidateMessage(notice); err != nil {
		return err
	}
	msg, ok := notice.(command.Message)
	if !ok {
		return fmt.Errorf("ingest: notice must implement Type() string")
	}
	if strings.TrimSpace(msg.Type()) == "" {
		return fmt.Errorf("ingest: notice type is required")
	}
	return nil
}

func stringField(payload map[string]any, key string) string {
	if len(payload) == 0 {
		return ""
	}
	value, ok := payload[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

var _ core.ExchangeHandler = (*Handler)(nil)
