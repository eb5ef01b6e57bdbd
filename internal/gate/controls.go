package gate

import (
	"context"

	riskerr "riskgate/internal/errors"
	"riskgate/internal/resilience"
)

// GuardedControls wraps a ControlReader with a circuit breaker so a
// repeatedly failing control plane fails fast instead of stalling every
// evaluation. A rejected or failed read surfaces as an error, which the
// orchestrator turns into a CONTROL_READ_FAILED denial.
type GuardedControls struct {
	inner   ControlReader
	breaker *resilience.Breaker
}

// NewGuardedControls wraps inner with breaker.
func NewGuardedControls(inner ControlReader, breaker *resilience.Breaker) *GuardedControls {
	return &GuardedControls{inner: inner, breaker: breaker}
}

// Read implements ControlReader. Failures, including fast rejections
// from an open breaker, come back as a *errors.ControlError.
func (g *GuardedControls) Read(ctx context.Context) (ControlState, error) {
	state, err := resilience.DoWithResult(g.breaker, ctx, func() (ControlState, error) {
		return g.inner.Read(ctx)
	})
	if err != nil {
		return ControlState{}, riskerr.NewControlError(g.breaker.Name(), err)
	}
	return state, nil
}

// Breaker exposes the underlying breaker for status reporting.
func (g *GuardedControls) Breaker() *resilience.Breaker {
	return g.breaker
}
