// Package sequence hands out per-partition event sequence numbers.
package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

type Sequencer interface {
	Next(ctx context.Context, partitionKey string) (int64, error)
}

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSequencer keeps counters in event_sequence so they survive restarts
// and are shared between replicas.
type PostgresSequencer struct {
	db Querier
}

func NewPostgresSequencer(db Querier) *PostgresSequencer {
	return &PostgresSequencer{db: db}
}

// Next atomically increments and returns the partition's sequence, starting at 1.
func (s *PostgresSequencer) Next(ctx context.Context, partitionKey string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", partitionKey, err)
	}
	return seq, nil
}

// MemorySequencer is a process-local Sequencer.
type MemorySequencer struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{last: map[string]int64{}}
}

func (s *MemorySequencer) Next(_ context.Context, partitionKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[partitionKey]++
	return s.last[partitionKey], nil
}
