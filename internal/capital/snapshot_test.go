package capital

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/calendar"
	riskerr "riskgate/internal/errors"
)

func testCalendar(t *testing.T) *calendar.Exchange {
	t.Helper()
	return calendar.MustNew(calendar.Config{})
}

// 2026-01-23 is a Friday.
func tradingDay(t *testing.T, cal *calendar.Exchange) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02 15:04", "2026-01-23 11:00", cal.Location())
	require.NoError(t, err)
	return d
}

func TestNewSnapshot(t *testing.T) {
	cal := testCalendar(t)
	day := tradingDay(t, cal)

	snap, err := New(cal, "acme", "paper-1", day, 100000, 60000, 200000)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-23", snap.TradingDay)
	assert.Equal(t, cal.MarketOpen(day).UTC(), snap.ValidFrom)
	assert.Equal(t, cal.MarketClose(day).UTC(), snap.ExpiresAt)
	assert.NotEmpty(t, snap.Fingerprint)
	assert.NoError(t, snap.Verify())
}

func TestNewSnapshotNonTradingDay(t *testing.T) {
	cal := testCalendar(t)
	saturday := tradingDay(t, cal).AddDate(0, 0, 1)

	_, err := New(cal, "acme", "paper-1", saturday, 100000, 60000, 200000)
	require.Error(t, err)
	assert.True(t, riskerr.IsIntegrity(err))
}

func TestFingerprintStableAcrossClones(t *testing.T) {
	cal := testCalendar(t)
	snap, err := New(cal, "acme", "paper-1", tradingDay(t, cal), 100000.55, 60000.1, 200000)
	require.NoError(t, err)

	clone := snap.Clone()
	assert.Equal(t, snap.Fingerprint, clone.ComputeFingerprint())
}

func TestVerifyDetectsTamper(t *testing.T) {
	cal := testCalendar(t)
	snap, err := New(cal, "acme", "paper-1", tradingDay(t, cal), 100000, 60000, 200000)
	require.NoError(t, err)

	snap.StartingEquity += 0.01
	err = snap.Verify()
	require.Error(t, err)
	assert.True(t, riskerr.IsIntegrity(err))
}

func TestAssertDateMatch(t *testing.T) {
	cal := testCalendar(t)
	snap, err := New(cal, "acme", "paper-1", tradingDay(t, cal), 100000, 60000, 200000)
	require.NoError(t, err)

	assert.NoError(t, snap.AssertDateMatch("2026-01-23"))
	err = snap.AssertDateMatch("2026-01-26")
	require.Error(t, err)
	assert.True(t, riskerr.IsIntegrity(err))
}

func TestAssertTradeWindow(t *testing.T) {
	cal := testCalendar(t)
	day := tradingDay(t, cal)
	snap, err := New(cal, "acme", "paper-1", day, 100000, 60000, 200000)
	require.NoError(t, err)

	assert.NoError(t, snap.AssertTradeWindow(cal.MarketOpen(day)))
	assert.NoError(t, snap.AssertTradeWindow(day)) // 11:00, mid-session

	// Before open and at close are both outside [valid_from, expires_at).
	require.Error(t, snap.AssertTradeWindow(cal.MarketOpen(day).Add(-time.Minute)))
	require.Error(t, snap.AssertTradeWindow(cal.MarketClose(day)))
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), Key{Tenant: "a", Account: "b", TradingDay: "2026-01-23"})
	require.Error(t, err)
	assert.True(t, riskerr.Is(err, riskerr.ErrNotFound))
}

func TestCreateOnceFirstWriterWins(t *testing.T) {
	cal := testCalendar(t)
	day := tradingDay(t, cal)
	store := NewMemoryStore()

	first, err := New(cal, "acme", "paper-1", day, 100000, 60000, 200000)
	require.NoError(t, err)
	second, err := New(cal, "acme", "paper-1", day, 99999, 55555, 190000)
	require.NoError(t, err)

	got1, err := store.CreateOnce(context.Background(), first)
	require.NoError(t, err)
	got2, err := store.CreateOnce(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, got1.Fingerprint, got2.Fingerprint)
	assert.Equal(t, 100000.0, got2.StartingEquity)
}

func TestCreateOnceConcurrentConverges(t *testing.T) {
	cal := testCalendar(t)
	day := tradingDay(t, cal)
	store := NewMemoryStore()

	var wg sync.WaitGroup
	results := make([]*Snapshot, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := New(cal, "acme", "paper-1", day, float64(90000+i), 60000, 200000)
			if err != nil {
				return
			}
			got, err := GetOrCreateOnce(context.Background(), store, snap)
			if err != nil {
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	for _, r := range results[1:] {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Fingerprint, r.Fingerprint)
	}
}

func TestStoredSnapshotIsImmutable(t *testing.T) {
	cal := testCalendar(t)
	day := tradingDay(t, cal)
	store := NewMemoryStore()

	snap, err := New(cal, "acme", "paper-1", day, 100000, 60000, 200000)
	require.NoError(t, err)
	stored, err := store.CreateOnce(context.Background(), snap)
	require.NoError(t, err)

	// Mutating the returned copy must not affect what the store holds.
	stored.StartingEquity = 1

	fresh, err := store.Get(context.Background(), snap.Key())
	require.NoError(t, err)
	assert.Equal(t, 100000.0, fresh.StartingEquity)
}
