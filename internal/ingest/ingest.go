// Package ingest provides idempotent heartbeat ingestion with per-message
// dedupe and stale rejection.
package ingest

import (
	"context"
	"sync"
	"time"
)

// Event is a pipeline heartbeat keyed by pipeline id, with a message id
// for exactly-once application.
type Event struct {
	PipelineID string    `json:"pipeline_id"`
	MessageID  string    `json:"message_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
}

// Result classifies what applying an event did.
type Result string

const (
	ResultApplied       Result = "applied"
	ResultDuplicate     Result = "duplicate"
	ResultStaleRejected Result = "stale_rejected"
)

// PipelineState is the last applied heartbeat for a pipeline.
type PipelineState struct {
	PipelineID    string    `json:"pipeline_id"`
	Status        string    `json:"status"`
	LastAppliedAt time.Time `json:"last_applied_at"`
}

// Ledger applies events transactionally: a seen message id is a no-op, an
// event older than the last applied timestamp is recorded as
// stale_rejected without regressing state, and anything else applies the
// pipeline state and the dedupe marker atomically.
type Ledger interface {
	Apply(ctx context.Context, ev Event) (Result, error)
	State(ctx context.Context, pipelineID string) (*PipelineState, error)
}

// MemoryLedger is the in-process Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	states map[string]*PipelineState
	seen   map[string]Result
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		states: make(map[string]*PipelineState),
		seen:   make(map[string]Result),
	}
}

// Apply implements Ledger.
func (l *MemoryLedger) Apply(_ context.Context, ev Event) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[ev.MessageID]; ok {
		return ResultDuplicate, nil
	}

	if st, ok := l.states[ev.PipelineID]; ok && ev.Timestamp.Before(st.LastAppliedAt) {
		l.seen[ev.MessageID] = ResultStaleRejected
		return ResultStaleRejected, nil
	}

	l.states[ev.PipelineID] = &PipelineState{
		PipelineID:    ev.PipelineID,
		Status:        ev.Status,
		LastAppliedAt: ev.Timestamp,
	}
	l.seen[ev.MessageID] = ResultApplied
	return ResultApplied, nil
}

// State implements Ledger. A pipeline with no applied events returns nil.
func (l *MemoryLedger) State(_ context.Context, pipelineID string) (*PipelineState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[pipelineID]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}
