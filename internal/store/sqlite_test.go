package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/calendar"
	"riskgate/internal/capital"
	riskerr "riskgate/internal/errors"
	"riskgate/internal/ingest"
	"riskgate/internal/models"
	"riskgate/internal/shadow"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "riskgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// 2026-01-23 is a Friday.
func testSnapshot(t *testing.T, equity float64) *capital.Snapshot {
	t.Helper()
	cal := calendar.MustNew(calendar.Config{})
	day, err := time.ParseInLocation("2006-01-02 15:04", "2026-01-23 11:00", cal.Location())
	require.NoError(t, err)
	snap, err := capital.New(cal, "acme", "paper-1", day, equity, 60000, 200000)
	require.NoError(t, err)
	return snap
}

func TestNewSQLiteStoreUnavailablePath(t *testing.T) {
	// A directory is not a database file; opening must fail with the
	// store-unavailable sentinel, not a silent degraded store.
	_, err := NewSQLiteStore(t.TempDir())
	require.Error(t, err)
	assert.True(t, riskerr.Is(err, riskerr.ErrStoreUnavailable))
}

func TestCapitalRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	snap := testSnapshot(t, 100000)

	stored, err := s.CreateOnce(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, stored.Fingerprint)

	got, err := s.Get(ctx, snap.Key())
	require.NoError(t, err)
	assert.Equal(t, snap.StartingEquity, got.StartingEquity)
	assert.True(t, snap.ValidFrom.Equal(got.ValidFrom))
	assert.True(t, snap.ExpiresAt.Equal(got.ExpiresAt))
	assert.NoError(t, got.Verify())
}

func TestCapitalGetMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(context.Background(),
		capital.Key{Tenant: "acme", Account: "paper-1", TradingDay: "2026-01-23"})
	require.Error(t, err)
	assert.True(t, riskerr.Is(err, riskerr.ErrNotFound))
}

func TestCapitalCreateOnceFirstWriterWins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.CreateOnce(ctx, testSnapshot(t, 100000))
	require.NoError(t, err)

	// A second creation for the same key keeps the original row.
	got, err := s.CreateOnce(ctx, testSnapshot(t, 55555))
	require.NoError(t, err)
	assert.Equal(t, 100000.0, got.StartingEquity)
}

func TestCapitalTamperDetectedOnLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	snap := testSnapshot(t, 100000)

	_, err := s.CreateOnce(ctx, snap)
	require.NoError(t, err)

	// Corrupt the row behind the store's back.
	_, err = s.db.Exec(`UPDATE capital_snapshots SET starting_equity = 999999`)
	require.NoError(t, err)

	_, err = s.Get(ctx, snap.Key())
	require.Error(t, err)
	assert.True(t, riskerr.IsIntegrity(err))
}

func TestShadowTradeRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	rec := &shadow.Record{
		ID:        "s-1",
		IntentID:  "i-1",
		Symbol:    "AAPL",
		Side:      models.SideBuy,
		Quantity:  10,
		Price:     150,
		Notional:  1500,
		Status:    "filled",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, s.SaveShadowTrade(ctx, rec))

	got, err := s.GetShadowTrade(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, rec.IntentID, got.IntentID)
	assert.Equal(t, models.SideBuy, got.Side)
	assert.Equal(t, 10, got.Quantity)
}

func TestShadowTradeSaveIsCreateIfAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	rec := &shadow.Record{ID: "s-1", IntentID: "i-1", Symbol: "AAPL",
		Side: models.SideBuy, Quantity: 10, Price: 150, Notional: 1500,
		Status: "filled", CreatedAt: time.Now().UTC()}

	require.NoError(t, s.SaveShadowTrade(ctx, rec))

	replay := *rec
	replay.Quantity = 99
	require.NoError(t, s.SaveShadowTrade(ctx, &replay))

	got, err := s.GetShadowTrade(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
}

func TestShadowTradeMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.GetShadowTrade(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, riskerr.Is(err, riskerr.ErrNotFound))
}

func heartbeat(pipeline, message, ts, status string) ingest.Event {
	parsed, _ := time.Parse(time.RFC3339, ts)
	return ingest.Event{PipelineID: pipeline, MessageID: message, Timestamp: parsed, Status: status}
}

func TestHeartbeatApplyAndState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	res, err := s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T15:00:00Z", "healthy"))
	require.NoError(t, err)
	assert.Equal(t, ingest.ResultApplied, res)

	st, err := s.State(ctx, "md-feed")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "healthy", st.Status)
}

func TestHeartbeatDuplicateMessage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T15:00:00Z", "healthy"))
	require.NoError(t, err)

	res, err := s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T16:00:00Z", "degraded"))
	require.NoError(t, err)
	assert.Equal(t, ingest.ResultDuplicate, res)

	st, err := s.State(ctx, "md-feed")
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Status)
}

func TestHeartbeatStaleRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, heartbeat("md-feed", "m-2", "2026-01-23T15:05:00Z", "healthy"))
	require.NoError(t, err)

	res, err := s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T15:00:00Z", "degraded"))
	require.NoError(t, err)
	assert.Equal(t, ingest.ResultStaleRejected, res)

	st, err := s.State(ctx, "md-feed")
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Status)
}

func TestHeartbeatStaleMarkerDedupes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, heartbeat("md-feed", "m-2", "2026-01-23T15:05:00Z", "healthy"))
	require.NoError(t, err)
	_, err = s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T15:00:00Z", "degraded"))
	require.NoError(t, err)

	// Replaying the stale message id is a duplicate, not a second
	// staleness evaluation.
	res, err := s.Apply(ctx, heartbeat("md-feed", "m-1", "2026-01-23T15:00:00Z", "degraded"))
	require.NoError(t, err)
	assert.Equal(t, ingest.ResultDuplicate, res)
}

func TestHeartbeatStateUnknownPipeline(t *testing.T) {
	s := testStore(t)

	st, err := s.State(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, st)
}
