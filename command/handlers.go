package command

import (
	"context"

	"github.com/goliatone/go-verify/core"
)

// CredentialWriter persists credentials ahead of escrow resolution.
type CredentialWriter interface {
	Put(ctx context.Context, cred core.Credential) error
}

type SubmitPresentationCommand struct {
	queue core.NoticeQueue
}

func NewSubmitPresentationCommand(queue core.NoticeQueue) *SubmitPresentationCommand {
	return &SubmitPresentationCommand{queue: queue}
}

func (c *SubmitPresentationCommand) Execute(ctx context.Context, msg SubmitPresentationMessage) error {
	if c == nil || c.queue == nil {
		return commandDependencyError("command: notice queue is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: submit presentation")
	}
	return c.queue.Enqueue(ctx, core.PresentationNotice{
		SenderPrefix: msg.SenderPrefix,
		SAID:         msg.SAID,
	})
}

type SubmitRevocationCommand struct {
	queue core.NoticeQueue
}

func NewSubmitRevocationCommand(queue core.NoticeQueue) *SubmitRevocationCommand {
	return &SubmitRevocationCommand{queue: queue}
}

func (c *SubmitRevocationCommand) Execute(ctx context.Context, msg SubmitRevocationMessage) error {
	if c == nil || c.queue == nil {
		return commandDependencyError("command: notice queue is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: submit revocation")
	}
	return c.queue.Enqueue(ctx, core.RevocationNotice{
		SenderPrefix: msg.SenderPrefix,
		SAID:         msg.SAID,
	})
}

type RegisterCredentialCommand struct {
	store CredentialWriter
}

func NewRegisterCredentialCommand(store CredentialWriter) *RegisterCredentialCommand {
	return &RegisterCredentialCommand{store: store}
}

func (c *RegisterCredentialCommand) Execute(ctx context.Context, msg RegisterCredentialMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: credential writer is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: register credential")
	}
	return c.store.Put(ctx, msg.Credential)
}
