// Package sqlstore provides the bun-backed persistence layer: the external
// credential database and the durable escrow stage store.
package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:verify_credentials,alias:vc"`

	ID           string         `bun:"id,pk"`
	SAID         string         `bun:"said,notnull"`
	SchemaID     string         `bun:"schema_id,notnull"`
	IssuerPrefix string         `bun:"issuer_prefix,notnull"`
	IssueePrefix string         `bun:"issuee_prefix"`
	RegistryKey  string         `bun:"registry_key"`
	Attributes   map[string]any `bun:"attributes,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type escrowEntryRecord struct {
	bun.BaseModel `bun:"table:verify_escrow_entries,alias:vee"`

	ID                 string         `bun:"id,pk"`
	Stage              string         `bun:"stage,notnull"`
	SAID               string         `bun:"said,notnull"`
	CounterpartyPrefix string         `bun:"counterparty_prefix,notnull"`
	Credential         map[string]any `bun:"credential,type:jsonb"`
	EnqueuedAt         time.Time      `bun:"enqueued_at,notnull"`
	Seq                int64          `bun:"seq,notnull"`
	CreatedAt          time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
