package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-verify/core"
	"github.com/goliatone/go-verify/escrow"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EscrowStore is the durable StageStore. Stage mappings share one table
// discriminated by the stage column; a (stage, said) pair is unique and the
// seq column preserves insertion order across restarts. Overwriting an
// existing pair keeps its seq, matching the in-memory store's iteration
// semantics.
type EscrowStore struct {
	db   *bun.DB
	repo repository.Repository[*escrowEntryRecord]
	seq  atomic.Int64
}

func NewEscrowStore(ctx context.Context, db *bun.DB) (*EscrowStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*escrowEntryRecord](db, escrowEntryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid escrow repository wiring: %w", err)
		}
	}
	store := &EscrowStore{
		db:   db,
		repo: repo,
	}

	var maxSeq sql.NullInt64
	err := db.NewSelect().
		Model((*escrowEntryRecord)(nil)).
		ColumnExpr("MAX(seq)").
		Scan(ctx, &maxSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlstore: seed escrow sequence: %w", err)
	}
	if maxSeq.Valid {
		store.seq.Store(maxSeq.Int64)
	}
	return store, nil
}

func (s *EscrowStore) Put(ctx context.Context, stage escrow.Stage, said string, record escrow.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: escrow store is not configured")
	}
	said = strings.TrimSpace(said)
	if said == "" {
		return fmt.Errorf("sqlstore: record SAID is required")
	}
	if err := validStage(stage); err != nil {
		return err
	}

	now := time.Now().UTC()
	row := &escrowEntryRecord{
		ID:                 uuid.NewString(),
		Stage:              string(stage),
		SAID:               said,
		CounterpartyPrefix: record.CounterpartyPrefix,
		Credential:         credentialToPayload(record.Credential),
		EnqueuedAt:         record.EnqueuedAt.UTC(),
		Seq:                s.seq.Add(1),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (stage, said) DO UPDATE").
		Set("counterparty_prefix = EXCLUDED.counterparty_prefix").
		Set("credential = EXCLUDED.credential").
		Set("enqueued_at = EXCLUDED.enqueued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *EscrowStore) Get(ctx context.Context, stage escrow.Stage, said string) (escrow.Record, bool, error) {
	if s == nil || s.db == nil {
		return escrow.Record{}, false, fmt.Errorf("sqlstore: escrow store is not configured")
	}
	if err := validStage(stage); err != nil {
		return escrow.Record{}, false, err
	}
	row := &escrowEntryRecord{}
	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.stage = ?", string(stage)).
		Where("?TableAlias.said = ?", strings.TrimSpace(said)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return escrow.Record{}, false, nil
		}
		return escrow.Record{}, false, err
	}
	return escrowEntryToDomain(row), true, nil
}

func (s *EscrowStore) Remove(ctx context.Context, stage escrow.Stage, said string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: escrow store is not configured")
	}
	if err := validStage(stage); err != nil {
		return err
	}
	_, err := s.db.NewDelete().
		Model((*escrowEntryRecord)(nil)).
		Where("stage = ?", string(stage)).
		Where("said = ?", strings.TrimSpace(said)).
		Exec(ctx)
	return err
}

func (s *EscrowStore) All(ctx context.Context, stage escrow.Stage) ([]escrow.Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: escrow store is not configured")
	}
	if err := validStage(stage); err != nil {
		return nil, err
	}
	var rows []*escrowEntryRecord
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.stage = ?", string(stage)).
		OrderExpr("?TableAlias.seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]escrow.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, escrow.Entry{
			SAID:   row.SAID,
			Record: escrowEntryToDomain(row),
		})
	}
	return entries, nil
}

func validStage(stage escrow.Stage) error {
	for _, known := range escrow.Stages() {
		if stage == known {
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unknown escrow stage %q", stage)
}

func credentialToPayload(cred *core.Credential) map[string]any {
	if cred == nil {
		return nil
	}
	return map[string]any{
		"said":          cred.SAID,
		"schema_id":     cred.SchemaID,
		"issuer_prefix": cred.IssuerPrefix,
		"issuee_prefix": cred.IssueePrefix,
		"registry_key":  cred.RegistryKey,
		"attributes":    copyAttributes(cred.Attributes),
	}
}

func credentialFromPayload(payload map[string]any) *core.Credential {
	if len(payload) == 0 {
		return nil
	}
	cred := &core.Credential{
		SAID:         payloadString(payload, "said"),
		SchemaID:     payloadString(payload, "schema_id"),
		IssuerPrefix: payloadString(payload, "issuer_prefix"),
		IssueePrefix: payloadString(payload, "issuee_prefix"),
		RegistryKey:  payloadString(payload, "registry_key"),
	}
	if attrs, ok := payload["attributes"].(map[string]any); ok {
		cred.Attributes = copyAttributes(attrs)
	}
	return cred
}

func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return value
}

func escrowEntryToDomain(row *escrowEntryRecord) escrow.Record {
	if row == nil {
		return escrow.Record{}
	}
	return escrow.Record{
		SAID:               row.SAID,
		CounterpartyPrefix: row.CounterpartyPrefix,
		EnqueuedAt:         row.EnqueuedAt.UTC(),
		Credential:         credentialFromPayload(row.Credential),
	}
}

var _ escrow.StageStore = (*EscrowStore)(nil)
