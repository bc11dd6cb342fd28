package escrow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-verify/core"
)

// Stage names the disjoint keyed mappings a record moves through. A SAID
// lives in at most one stage at a time for a given lifecycle pass.
type Stage string

const (
	StagePendingPresentation Stage = "pending_presentation"
	StagePendingRevocation   Stage = "pending_revocation"
	StageValidatedIssuance   Stage = "validated_issuance"
	StageValidatedRevocation Stage = "validated_revocation"
	StageAcknowledged        Stage = "acknowledged"
)

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{
		StagePendingPresentation,
		StagePendingRevocation,
		StageValidatedIssuance,
		StageValidatedRevocation,
		StageAcknowledged,
	}
}

// Record is one escrowed credential event. EnqueuedAt anchors the timeout
// window; it is reset when a counterparty re-presents the same SAID while
// the record is still pending.
type Record struct {
	SAID               string
	CounterpartyPrefix string
	EnqueuedAt         time.Time
	Credential         *core.Credential
}

// Entry pairs a stage key with its record for iteration.
type Entry struct {
	SAID   string
	Record Record
}

// StageStore is the persistence contract for the five escrow stages. All
// reads ordered by insertion, stable enough for fairness but not strict
// FIFO. Cross-stage moves performed by the coordinator are put-then-remove
// and deliberately not transactional: a crash between the two calls can
// duplicate or lose a record, which is acceptable for a best-effort
// notification pipeline.
type StageStore interface {
	Put(ctx context.Context, stage Stage, said string, record Record) error
	Get(ctx context.Context, stage Stage, said string) (Record, bool, error)
	Remove(ctx context.Context, stage Stage, said string) error
	All(ctx context.Context, stage Stage) ([]Entry, error)
}

type memoryBucket struct {
	order   []string
	records map[string]Record
}

// MemoryStore is the in-process StageStore. Put and Remove are atomic per
// mapping; overwriting an existing key keeps its iteration position.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[Stage]*memoryBucket
}

func NewMemoryStore() *MemoryStore {
	buckets := make(map[Stage]*memoryBucket, len(Stages()))
	for _, stage := range Stages() {
		buckets[stage] = &memoryBucket{records: map[string]Record{}}
	}
	return &MemoryStore{buckets: buckets}
}

func (s *MemoryStore) Put(_ context.Context, stage Stage, said string, record Record) error {
	said = strings.TrimSpace(said)
	if said == "" {
		return fmt.Errorf("escrow: record SAID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(stage)
	if err != nil {
		return err
	}
	if _, exists := bucket.records[said]; !exists {
		bucket.order = append(bucket.order, said)
	}
	bucket.records[said] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, stage Stage, said string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(stage)
	if err != nil {
		return Record{}, false, err
	}
	record, ok := bucket.records[strings.TrimSpace(said)]
	return record, ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, stage Stage, said string) error {
	said = strings.TrimSpace(said)
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(stage)
	if err != nil {
		return err
	}
	if _, ok := bucket.records[said]; !ok {
		return nil
	}
	delete(bucket.records, said)
	for i, key := range bucket.order {
		if key == said {
			bucket.order = append(bucket.order[:i], bucket.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) All(_ context.Context, stage Stage) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(stage)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(bucket.order))
	for _, said := range bucket.order {
		entries = append(entries, Entry{SAID: said, Record: bucket.records[said]})
	}
	return entries, nil
}

func (s *MemoryStore) bucket(stage Stage) (*memoryBucket, error) {
	bucket, ok := s.buckets[stage]
	if !ok {
		return nil, fmt.Errorf("escrow: unknown stage %q", stage)
	}
	return bucket, nil
}

var _ StageStore = (*MemoryStore)(nil)
