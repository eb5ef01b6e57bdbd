// Package calendar provides trading session calendar lookups in
// exchange-local time.
package calendar

import (
	"time"

	"riskgate/pkg/utils"
)

// SessionCalendar answers trading-day and session-boundary questions.
// All returned instants carry the exchange-local location; callers
// convert to UTC explicitly at the boundary.
type SessionCalendar interface {
	IsTradingDay(t time.Time) bool
	MarketOpen(t time.Time) time.Time
	MarketClose(t time.Time) time.Time
	Now() time.Time
	Location() *time.Location
}

// Config configures an Exchange calendar.
type Config struct {
	Timezone string
	Open     string // "09:30"
	Close    string // "16:00"
	Holidays []string
}

// Exchange is a weekday session calendar with a configurable holiday set.
type Exchange struct {
	loc         *time.Location
	openMinute  int
	closeMinute int
	holidays    map[string]bool
}

// New creates an Exchange calendar from config. Zero-value fields fall
// back to a US equities session in America/New_York.
func New(cfg Config) (*Exchange, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}

	open := cfg.Open
	if open == "" {
		open = "09:30"
	}
	close := cfg.Close
	if close == "" {
		close = "16:00"
	}
	openMin, err := utils.ParseClock(open)
	if err != nil {
		return nil, err
	}
	closeMin, err := utils.ParseClock(close)
	if err != nil {
		return nil, err
	}

	ex := &Exchange{
		loc:         loc,
		openMinute:  openMin,
		closeMinute: closeMin,
		holidays:    make(map[string]bool),
	}
	for _, h := range cfg.Holidays {
		ex.holidays[h] = true
	}
	return ex, nil
}

// MustNew is New for known-good configuration, used in tests.
func MustNew(cfg Config) *Exchange {
	ex, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return ex
}

// AddHoliday adds a market holiday.
func (e *Exchange) AddHoliday(date time.Time) {
	e.holidays[date.In(e.loc).Format("2006-01-02")] = true
}

// IsTradingDay reports whether the date of t (exchange-local) is a
// trading day.
func (e *Exchange) IsTradingDay(t time.Time) bool {
	t = t.In(e.loc)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !e.holidays[t.Format("2006-01-02")]
}

// MarketOpen returns the session open on the date of t.
func (e *Exchange) MarketOpen(t time.Time) time.Time {
	d := utils.DateOf(t, e.loc)
	return d.Add(time.Duration(e.openMinute) * time.Minute)
}

// MarketClose returns the session close on the date of t.
func (e *Exchange) MarketClose(t time.Time) time.Time {
	d := utils.DateOf(t, e.loc)
	return d.Add(time.Duration(e.closeMinute) * time.Minute)
}

// Now returns the current exchange-local time.
func (e *Exchange) Now() time.Time {
	return time.Now().In(e.loc)
}

// Location returns the exchange-local location.
func (e *Exchange) Location() *time.Location {
	return e.loc
}

// DayKey formats the exchange-local trading-day key for t.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
