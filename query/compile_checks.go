package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/escrow"
)

var (
	_ gocmd.Querier[GetEscrowRecordMessage, escrow.Record] = (*GetEscrowRecordQuery)(nil)
	_ gocmd.Querier[ListStageMessage, []escrow.Entry]      = (*ListStageQuery)(nil)
	_ gocmd.Querier[GetCredentialMessage, core.Credential] = (*GetCredentialQuery)(nil)
)
