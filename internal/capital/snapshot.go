// Package capital provides the immutable per-trading-day bankroll anchor
// and its store contract.
package capital

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"riskgate/internal/calendar"
	riskerr "riskgate/internal/errors"
)

// Key identifies a snapshot: exactly one snapshot exists per key.
type Key struct {
	Tenant     string
	Account    string
	TradingDay string // "2006-01-02", exchange-local
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Tenant, k.Account, k.TradingDay)
}

// Snapshot is the day's starting bankroll. It is created once at or
// after session open and read-only thereafter; it expires logically at
// session close but is never deleted.
type Snapshot struct {
	Tenant              string    `json:"tenant"`
	Account             string    `json:"account"`
	TradingDay          string    `json:"trading_day"`
	StartingEquity      float64   `json:"starting_equity"`
	StartingCash        float64   `json:"starting_cash"`
	StartingBuyingPower float64   `json:"starting_buying_power"`
	ValidFrom           time.Time `json:"valid_from"`
	ExpiresAt           time.Time `json:"expires_at"`
	Fingerprint         string    `json:"fingerprint"`
}

// New builds a snapshot for the given trading day. Asking for a
// non-trading day is a programming error and fails hard, not a denial.
func New(cal calendar.SessionCalendar, tenant, account string, day time.Time, equity, cash, buyingPower float64) (*Snapshot, error) {
	if !cal.IsTradingDay(day) {
		return nil, riskerr.NewIntegrityError(
			riskerr.IntegrityNonTradingDay,
			fmt.Sprintf("%s/%s/%s", tenant, account, calendar.DayKey(day, cal.Location())),
			"capital snapshot requested for a non-trading day",
		)
	}

	s := &Snapshot{
		Tenant:              tenant,
		Account:             account,
		TradingDay:          calendar.DayKey(day, cal.Location()),
		StartingEquity:      equity,
		StartingCash:        cash,
		StartingBuyingPower: buyingPower,
		ValidFrom:           cal.MarketOpen(day).UTC(),
		ExpiresAt:           cal.MarketClose(day).UTC(),
	}
	s.Fingerprint = s.ComputeFingerprint()
	return s, nil
}

// Key returns the snapshot's identity key.
func (s *Snapshot) Key() Key {
	return Key{Tenant: s.Tenant, Account: s.Account, TradingDay: s.TradingDay}
}

// ComputeFingerprint hashes a canonical serialization of every field
// except the fingerprint itself. Map keys marshal sorted, and floats are
// rendered with the shortest exact representation, so the hash is stable
// across loads.
func (s *Snapshot) ComputeFingerprint() string {
	payload := map[string]string{
		"tenant":                s.Tenant,
		"account":               s.Account,
		"trading_day":           s.TradingDay,
		"starting_equity":       strconv.FormatFloat(s.StartingEquity, 'f', -1, 64),
		"starting_cash":         strconv.FormatFloat(s.StartingCash, 'f', -1, 64),
		"starting_buying_power": strconv.FormatFloat(s.StartingBuyingPower, 'f', -1, 64),
		"valid_from":            s.ValidFrom.UTC().Format(time.RFC3339Nano),
		"expires_at":            s.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the fingerprint and compares it against the stored
// one. A mismatch means tampering or a persistence bug and fails hard.
func (s *Snapshot) Verify() error {
	if got := s.ComputeFingerprint(); got != s.Fingerprint {
		return riskerr.NewIntegrityError(
			riskerr.IntegrityTampered,
			s.Key().String(),
			fmt.Sprintf("fingerprint mismatch: stored %s, recomputed %s", s.Fingerprint, got),
		)
	}
	return nil
}

// AssertDateMatch fails hard when the snapshot's recorded trading day is
// not the caller's expected day, preventing silent reuse of yesterday's
// bankroll.
func (s *Snapshot) AssertDateMatch(expectedDay string) error {
	if s.TradingDay != expectedDay {
		return riskerr.NewIntegrityError(
			riskerr.IntegrityDayMismatch,
			s.Key().String(),
			fmt.Sprintf("snapshot day %s does not match expected %s", s.TradingDay, expectedDay),
		)
	}
	return nil
}

// AssertTradeWindow fails hard when now falls outside
// [valid_from, expires_at).
func (s *Snapshot) AssertTradeWindow(now time.Time) error {
	now = now.UTC()
	if now.Before(s.ValidFrom) || !now.Before(s.ExpiresAt) {
		return riskerr.NewIntegrityError(
			riskerr.IntegrityOutsideWindow,
			s.Key().String(),
			fmt.Sprintf("now %s outside window [%s, %s)",
				now.Format(time.RFC3339), s.ValidFrom.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339)),
		)
	}
	return nil
}

// Clone returns a copy so stored snapshots stay immutable.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	return &c
}
