// Package command exposes the programmatic mutation surface of the
// pipeline: submitting notices and registering credentials without going
// through the exchange transport.
package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-verify/core"
)

const (
	TypeSubmitPresentation = "verify.command.presentation.submit"
	TypeSubmitRevocation   = "verify.command.revocation.submit"
	TypeRegisterCredential = "verify.command.credential.register"
)

type SubmitPresentationMessage struct {
	SenderPrefix string
	SAID         string
}

func (SubmitPresentationMessage) Type() string { return TypeSubmitPresentation }

func (m SubmitPresentationMessage) Validate() error {
	if strings.TrimSpace(m.SenderPrefix) == "" {
		return fmt.Errorf("command: sender prefix is required")
	}
	if strings.TrimSpace(m.SAID) == "" {
		return fmt.Errorf("command: credential SAID is required")
	}
	return nil
}

type SubmitRevocationMessage struct {
	SenderPrefix string
	SAID         string
}

func (SubmitRevocationMessage) Type() string { return TypeSubmitRevocation }

func (m SubmitRevocationMessage) Validate() error {
	if strings.TrimSpace(m.SenderPrefix) == "" {
		return fmt.Errorf("command: sender prefix is required")
	}
	if strings.TrimSpace(m.SAID) == "" {
		return fmt.Errorf("command: credential SAID is required")
	}
	return nil
}

type RegisterCredentialMessage struct {
	Credential core.Credential
}

func (RegisterCredentialMessage) Type() string { return TypeRegisterCredential }

func (m RegisterCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Credential.SAID) == "" {
		return fmt.Errorf("command: credential SAID is required")
	}
	if strings.TrimSpace(m.Credential.SchemaID) == "" {
		return fmt.Errorf("command: credential schema is required")
	}
	if strings.TrimSpace(m.Credential.IssuerPrefix) == "" {
		return fmt.Errorf("command: credential issuer is required")
	}
	return nil
}
