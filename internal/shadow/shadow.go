// Package shadow provides the paper-trade executor the gate hands
// allowed intents to.
package shadow

import (
	"context"
	"sync"
	"time"

	"riskgate/internal/models"
)

// Record is the stored result of a shadow execution.
type Record struct {
	ID        string      `json:"id"`
	IntentID  string      `json:"intent_id"`
	Symbol    string      `json:"symbol"`
	Side      models.Side `json:"side"`
	Quantity  int         `json:"quantity"`
	Price     float64     `json:"price"`
	Notional  float64     `json:"notional"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Executor records a simulated trade. Execute must be idempotent per id:
// the same id yields the same stored record, never a duplicate.
type Executor interface {
	Execute(ctx context.Context, intent models.OrderIntent, id string) (*Record, error)
}

// RecordStore optionally persists shadow records. Saves must be
// create-if-absent so replays cannot duplicate.
type RecordStore interface {
	SaveShadowTrade(ctx context.Context, rec *Record) error
	GetShadowTrade(ctx context.Context, id string) (*Record, error)
}

// PaperExecutor simulates execution against an in-memory book, tracking
// positions and cash the way a paper broker would.
type PaperExecutor struct {
	mu        sync.Mutex
	records   map[string]*Record
	positions map[string]int
	cash      float64
	store     RecordStore // optional
}

// NewPaperExecutor creates a PaperExecutor. store may be nil.
func NewPaperExecutor(initialCash float64, store RecordStore) *PaperExecutor {
	if initialCash == 0 {
		initialCash = 100000
	}
	return &PaperExecutor{
		records:   make(map[string]*Record),
		positions: make(map[string]int),
		cash:      initialCash,
		store:     store,
	}
}

// Execute implements Executor. A repeated id returns the original record
// without touching positions or cash.
func (p *PaperExecutor) Execute(ctx context.Context, intent models.OrderIntent, id string) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rec, ok := p.records[id]; ok {
		c := *rec
		return &c, nil
	}
	if p.store != nil {
		if rec, err := p.store.GetShadowTrade(ctx, id); err == nil && rec != nil {
			p.records[id] = rec
			c := *rec
			return &c, nil
		}
	}

	rec := &Record{
		ID:        id,
		IntentID:  intent.ID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Quantity:  intent.Quantity,
		Price:     intent.Price,
		Notional:  intent.Notional,
		Status:    "filled",
		CreatedAt: time.Now().UTC(),
	}

	// Persist before touching the book or the cache. A failed save must
	// leave no trace, so a retry of the same id re-runs the whole fill
	// instead of returning a record the store never received.
	if p.store != nil {
		if err := p.store.SaveShadowTrade(ctx, rec); err != nil {
			return nil, err
		}
	}

	qty := intent.Quantity
	if intent.Side == models.SideSell {
		qty = -qty
	}
	p.positions[intent.Symbol] += qty
	p.cash -= float64(qty) * intent.Price
	p.records[id] = rec

	c := *rec
	return &c, nil
}

// Position returns the simulated signed position for a symbol.
func (p *PaperExecutor) Position(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol]
}

// Cash returns the simulated cash balance.
func (p *PaperExecutor) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}
