package query

import (
	"context"

	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/escrow"
)

// StageReader is the read subset of the escrow stage store.
type StageReader interface {
	Get(ctx context.Context, stage escrow.Stage, said string) (escrow.Record, bool, error)
	All(ctx context.Context, stage escrow.Stage) ([]escrow.Entry, error)
}

type GetEscrowRecordQuery struct {
	stages StageReader
}

func NewGetEscrowRecordQuery(stages StageReader) *GetEscrowRecordQuery {
	return &GetEscrowRecordQuery{stages: stages}
}

func (q *GetEscrowRecordQuery) Query(ctx context.Context, msg GetEscrowRecordMessage) (escrow.Record, error) {
	if q == nil || q.stages == nil {
		return escrow.Record{}, queryDependencyError("query: stage reader is required")
	}
	if err := msg.Validate(); err != nil {
		return escrow.Record{}, queryWrapValidation(err, "query: get escrow record")
	}
	record, ok, err := q.stages.Get(ctx, msg.Stage, msg.SAID)
	if err != nil {
		return escrow.Record{}, queryInternalError(err, "query: get escrow record")
	}
	if !ok {
		return escrow.Record{}, queryNotFoundError("query: escrow record not found", msg.SAID)
	}
	return record, nil
}

type ListStageQuery struct {
	stages StageReader
}

func NewListStageQuery(stages StageReader) *ListStageQuery {
	return &ListStageQuery{stages: stages}
}

func (q *ListStageQuery) Query(ctx context.Context, msg ListStageMessage) ([]escrow.Entry, error) {
	if q == nil || q.stages == nil {
		return nil, queryDependencyError("query: stage reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryWrapValidation(err, "query: list stage")
	}
	entries, err := q.stages.All(ctx, msg.Stage)
	if err != nil {
		return nil, queryInternalError(err, "query: list stage")
	}
	return entries, nil
}

type GetCredentialQuery struct {
	credentials core.CredentialStore
}

func NewGetCredentialQuery(credentials core.CredentialStore) *GetCredentialQuery {
	return &GetCredentialQuery{credentials: credentials}
}

func (q *GetCredentialQuery) Query(ctx context.Context, msg GetCredentialMessage) (core.Credential, error) {
	if q == nil || q.credentials == nil {
		return core.Credential{}, queryDependencyError("query: credential store is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Credential{}, queryWrapValidation(err, "query: get credential")
	}
	cred, found, err := q.credentials.Get(ctx, msg.SAID)
	if err != nil {
		return core.Credential{}, queryInternalError(err, "query: get credential")
	}
	if !found {
		return core.Credential{}, queryNotFoundError("query: credential not found", msg.SAID)
	}
	return cred, nil
}
