// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// IntegrityKind classifies hard data-integrity failures. These abort the
// caller; they are never interpreted as a risk denial.
type IntegrityKind string

const (
	IntegrityTampered      IntegrityKind = "fingerprint_mismatch"
	IntegrityDayMismatch   IntegrityKind = "trading_day_mismatch"
	IntegrityOutsideWindow IntegrityKind = "outside_trade_window"
	IntegrityNonTradingDay IntegrityKind = "non_trading_day"
)

// IntegrityError represents tampered, stale, or structurally invalid
// persisted state. Callers must halt, not proceed with a denial.
type IntegrityError struct {
	Kind    IntegrityKind
	Key     string
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error [%s] %s: %s", e.Kind, e.Key, e.Message)
}

// NewIntegrityError creates a new IntegrityError.
func NewIntegrityError(kind IntegrityKind, key, message string) *IntegrityError {
	return &IntegrityError{Kind: kind, Key: key, Message: message}
}

// IsIntegrity reports whether err is an IntegrityError of any kind.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// SelectionError represents a failed option contract selection. Reason is
// a stable code from the models reason vocabulary.
type SelectionError struct {
	Reason      string
	Explanation string
	Details     map[string]string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection failed [%s]: %s", e.Reason, e.Explanation)
}

// NewSelectionError creates a new SelectionError.
func NewSelectionError(reason, explanation string, details map[string]string) *SelectionError {
	return &SelectionError{Reason: reason, Explanation: explanation, Details: details}
}

// AsSelection returns the SelectionError in err's chain, if any.
func AsSelection(err error) (*SelectionError, bool) {
	var se *SelectionError
	ok := errors.As(err, &se)
	return se, ok
}

// StoreError represents a persistence failure surfaced after the adapter
// exhausted its retries. It is a hard error upstream of any decision.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}

// ControlError represents a failed read of external control state (kill
// switch, drawdown breaker, strategy P&L). The orchestrator maps it to a
// denial, biasing failed reads toward not trading.
type ControlError struct {
	Source string
	Err    error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("control read failed [%s]: %v", e.Source, e.Err)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}

// NewControlError creates a new ControlError.
func NewControlError(source string, err error) *ControlError {
	return &ControlError{Source: source, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
