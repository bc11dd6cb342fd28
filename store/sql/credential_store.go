package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-verify/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore holds parsed credentials keyed by SAID. The ingest side
// writes credentials as they arrive over the exchange transport; the escrow
// coordinator reads them while resolving presentation notices.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *CredentialStore) Get(ctx context.Context, said string) (core.Credential, bool, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	said = strings.TrimSpace(said)
	if said == "" {
		return core.Credential{}, false, fmt.Errorf("sqlstore: credential SAID is required")
	}

	record := &credentialRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.said = ?", said).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Credential{}, false, nil
		}
		return core.Credential{}, false, err
	}
	return credentialToDomain(record), true, nil
}

// Put upserts a credential by SAID. Re-presentation of a known credential
// refreshes its attributes in place.
func (s *CredentialStore) Put(ctx context.Context, cred core.Credential) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if strings.TrimSpace(cred.SAID) == "" {
		return fmt.Errorf("sqlstore: credential SAID is required")
	}

	now := time.Now().UTC()
	record := &credentialRecord{
		ID:           uuid.NewString(),
		SAID:         strings.TrimSpace(cred.SAID),
		SchemaID:     strings.TrimSpace(cred.SchemaID),
		IssuerPrefix: strings.TrimSpace(cred.IssuerPrefix),
		IssueePrefix: strings.TrimSpace(cred.IssueePrefix),
		RegistryKey:  strings.TrimSpace(cred.RegistryKey),
		Attributes:   copyAttributes(cred.Attributes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (said) DO UPDATE").
		Set("schema_id = EXCLUDED.schema_id").
		Set("issuer_prefix = EXCLUDED.issuer_prefix").
		Set("issuee_prefix = EXCLUDED.issuee_prefix").
		Set("registry_key = EXCLUDED.registry_key").
		Set("attributes = EXCLUDED.attributes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *CredentialStore) Delete(ctx context.Context, said string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("said = ?", strings.TrimSpace(said)).
		Exec(ctx)
	return err
}

func credentialToDomain(record *credentialRecord) core.Credential {
	if record == nil {
		return core.Credential{}
	}
	return core.Credential{
		SAID:         record.SAID,
		SchemaID:     record.SchemaID,
		IssuerPrefix: record.IssuerPrefix,
		IssueePrefix: record.IssueePrefix,
		RegistryKey:  record.RegistryKey,
		Attributes:   copyAttributes(record.Attributes),
	}
}

func copyAttributes(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ core.CredentialStore = (*CredentialStore)(nil)
