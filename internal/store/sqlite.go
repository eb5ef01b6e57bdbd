// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"riskgate/internal/capital"
	riskerr "riskgate/internal/errors"
	"riskgate/internal/ingest"
	"riskgate/internal/models"
	"riskgate/internal/shadow"
	"riskgate/pkg/utils"
)

// SQLiteStore persists capital snapshots, shadow trade records, and
// pipeline heartbeats. Transient failures are retried with backoff and
// jitter here, in the adapter; exhausted retries surface as hard
// StoreErrors upstream of any decision.
type SQLiteStore struct {
	db    *sql.DB
	retry utils.RetryConfig
}

// NewSQLiteStore opens (and initializes) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", riskerr.ErrStoreUnavailable, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, retry: utils.DefaultRetryConfig()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing schema: %v", riskerr.ErrStoreUnavailable, err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Immutable per-day capital anchors
	CREATE TABLE IF NOT EXISTS capital_snapshots (
		tenant TEXT NOT NULL,
		account TEXT NOT NULL,
		trading_day TEXT NOT NULL,
		starting_equity REAL NOT NULL,
		starting_cash REAL NOT NULL,
		starting_buying_power REAL NOT NULL,
		valid_from DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant, account, trading_day)
	);

	-- Shadow (paper) trade records, keyed by deterministic handoff id
	CREATE TABLE IF NOT EXISTS shadow_trades (
		id TEXT PRIMARY KEY,
		intent_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		notional REAL NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Pipeline heartbeat state
	CREATE TABLE IF NOT EXISTS pipeline_heartbeats (
		pipeline_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		last_applied_at DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-message dedupe markers
	CREATE TABLE IF NOT EXISTS ingest_dedupe (
		message_id TEXT PRIMARY KEY,
		pipeline_id TEXT NOT NULL,
		result TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements capital.Store. The fingerprint is re-verified on every
// load; a mismatch fails hard.
func (s *SQLiteStore) Get(ctx context.Context, key capital.Key) (*capital.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant, account, trading_day, starting_equity, starting_cash,
		       starting_buying_power, valid_from, expires_at, fingerprint
		FROM capital_snapshots
		WHERE tenant = ? AND account = ? AND trading_day = ?`,
		key.Tenant, key.Account, key.TradingDay)
	snap, err := scanSnapshot(row)
	if err != nil {
		if riskerr.Is(err, riskerr.ErrNotFound) || riskerr.IsIntegrity(err) {
			return nil, err
		}
		return nil, riskerr.NewStoreError("get", key.String(), err)
	}
	return snap, nil
}

// CreateOnce implements capital.Store with insert-if-absent followed by
// a read-back, so racing creators converge on the stored winner.
func (s *SQLiteStore) CreateOnce(ctx context.Context, snap *capital.Snapshot) (*capital.Snapshot, error) {
	key := snap.Key()
	err := utils.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO capital_snapshots
			(tenant, account, trading_day, starting_equity, starting_cash,
			 starting_buying_power, valid_from, expires_at, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Tenant, snap.Account, snap.TradingDay,
			snap.StartingEquity, snap.StartingCash, snap.StartingBuyingPower,
			snap.ValidFrom.UTC().Format(time.RFC3339Nano),
			snap.ExpiresAt.UTC().Format(time.RFC3339Nano),
			snap.Fingerprint)
		return err
	})
	if err != nil {
		return nil, riskerr.NewStoreError("create_once", key.String(), err)
	}
	return s.Get(ctx, key)
}

func scanSnapshot(row *sql.Row) (*capital.Snapshot, error) {
	var snap capital.Snapshot
	var validFrom, expiresAt string
	err := row.Scan(&snap.Tenant, &snap.Account, &snap.TradingDay,
		&snap.StartingEquity, &snap.StartingCash, &snap.StartingBuyingPower,
		&validFrom, &expiresAt, &snap.Fingerprint)
	if err == sql.ErrNoRows {
		return nil, riskerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if snap.ValidFrom, err = time.Parse(time.RFC3339Nano, validFrom); err != nil {
		return nil, err
	}
	if snap.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, err
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveShadowTrade implements shadow.RecordStore as create-if-absent.
func (s *SQLiteStore) SaveShadowTrade(ctx context.Context, rec *shadow.Record) error {
	err := utils.Retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO shadow_trades
			(id, intent_id, symbol, side, quantity, price, notional, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.IntentID, rec.Symbol, string(rec.Side), rec.Quantity,
			rec.Price, rec.Notional, rec.Status,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return riskerr.NewStoreError("save_shadow_trade", rec.ID, err)
	}
	return nil
}

// GetShadowTrade implements shadow.RecordStore.
func (s *SQLiteStore) GetShadowTrade(ctx context.Context, id string) (*shadow.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intent_id, symbol, side, quantity, price, notional, status, created_at
		FROM shadow_trades WHERE id = ?`, id)
	var r shadow.Record
	var side, createdAt string
	err := row.Scan(&r.ID, &r.IntentID, &r.Symbol, &side, &r.Quantity,
		&r.Price, &r.Notional, &r.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, riskerr.ErrNotFound
	}
	if err != nil {
		return nil, riskerr.NewStoreError("get_shadow_trade", id, err)
	}
	r.Side = models.Side(side)
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, riskerr.NewStoreError("get_shadow_trade", id, err)
	}
	return &r, nil
}

// Apply implements ingest.Ledger in one transaction: dedupe check,
// staleness check against the pipeline's last applied timestamp, then
// state upsert plus dedupe marker.
func (s *SQLiteStore) Apply(ctx context.Context, ev ingest.Event) (ingest.Result, error) {
	result, err := utils.RetryWithResult(ctx, s.retry, func() (ingest.Result, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return "", err
		}
		defer tx.Rollback()

		var existing string
		err = tx.QueryRowContext(ctx,
			`SELECT result FROM ingest_dedupe WHERE message_id = ?`, ev.MessageID).Scan(&existing)
		if err == nil {
			return ingest.ResultDuplicate, tx.Commit()
		}
		if err != sql.ErrNoRows {
			return "", err
		}

		var lastApplied string
		stale := false
		err = tx.QueryRowContext(ctx,
			`SELECT last_applied_at FROM pipeline_heartbeats WHERE pipeline_id = ?`, ev.PipelineID).Scan(&lastApplied)
		if err != nil && err != sql.ErrNoRows {
			return "", err
		}
		if err == nil {
			last, perr := time.Parse(time.RFC3339Nano, lastApplied)
			if perr != nil {
				return "", perr
			}
			stale = ev.Timestamp.Before(last)
		}

		result := ingest.ResultApplied
		if stale {
			result = ingest.ResultStaleRejected
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO pipeline_heartbeats (pipeline_id, status, last_applied_at, updated_at)
				VALUES (?, ?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(pipeline_id) DO UPDATE SET
					status = excluded.status,
					last_applied_at = excluded.last_applied_at,
					updated_at = CURRENT_TIMESTAMP`,
				ev.PipelineID, ev.Status, ev.Timestamp.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return "", err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO ingest_dedupe (message_id, pipeline_id, result) VALUES (?, ?, ?)`,
			ev.MessageID, ev.PipelineID, string(result))
		if err != nil {
			return "", err
		}

		return result, tx.Commit()
	})
	if err != nil {
		return "", riskerr.NewStoreError("apply_heartbeat", ev.MessageID, err)
	}
	return result, nil
}

// State implements ingest.Ledger.
func (s *SQLiteStore) State(ctx context.Context, pipelineID string) (*ingest.PipelineState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pipeline_id, status, last_applied_at FROM pipeline_heartbeats WHERE pipeline_id = ?`, pipelineID)
	var ps ingest.PipelineState
	var lastApplied string
	err := row.Scan(&ps.PipelineID, &ps.Status, &lastApplied)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, riskerr.NewStoreError("heartbeat_state", pipelineID, err)
	}
	if ps.LastAppliedAt, err = time.Parse(time.RFC3339Nano, lastApplied); err != nil {
		return nil, riskerr.NewStoreError("heartbeat_state", pipelineID, err)
	}
	return &ps, nil
}
