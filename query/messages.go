// Package query exposes the read side of the pipeline: escrow stage
// inspection and credential lookups for operators and embedding services.
package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-verify/escrow"
)

const (
	TypeGetEscrowRecord = "verify.query.escrow.get"
	TypeListStage       = "verify.query.escrow.list"
	TypeGetCredential   = "verify.query.credential.get"
)

type GetEscrowRecordMessage struct {
	Stage escrow.Stage
	SAID  string
}

func (GetEscrowRecordMessage) Type() string { return TypeGetEscrowRecord }

func (m GetEscrowRecordMessage) Validate() error {
	if strings.TrimSpace(string(m.Stage)) == "" {
		return fmt.Errorf("query: escrow stage is required")
	}
	if strings.TrimSpace(m.SAID) == "" {
		return fmt.Errorf("query: credential SAID is required")
	}
	return nil
}

type ListStageMessage struct {
	Stage escrow.Stage
}

func (ListStageMessage) Type() string { return TypeListStage }

func (m ListStageMessage) Validate() error {
	if strings.TrimSpace(string(m.Stage)) == "" {
		return fmt.Errorf("query: escrow stage is required")
	}
	return nil
}

type GetCredentialMessage struct {
	SAID string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	if strings.TrimSpace(m.SAID) == "" {
		return fmt.Errorf("query: credential SAID is required")
	}
	return nil
}
