// Package trading defines the error taxonomy shared by the decision and
// execution pipeline. Adapters return these typed errors; callers decide
// whether to hold, retry next cycle, or abort.
package trading

import (
	"errors"
	"fmt"
)

// ConfigurationError signals missing or invalid credentials/broker setup.
// Never retried automatically; blocks execution but not analysis.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ValidationError signals a failed execution precondition. Always local,
// never retried, always carries a user-facing reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// ExchangeError carries the exchange-provided rejection code and message.
// The decision cycle may be retried on the next tick, never the same order.
type ExchangeError struct {
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange rejected: code=%d msg=%s", e.Code, e.Message)
}

// TransientDataError signals a failed market-data or price fetch. Isolated
// per asset and cycle; retried on the next tick.
type TransientDataError struct {
	Symbol string
	Err    error
}

func (e *TransientDataError) Error() string {
	return fmt.Sprintf("transient data error for %s: %v", e.Symbol, e.Err)
}

func (e *TransientDataError) Unwrap() error { return e.Err }

// InvariantViolation signals inconsistent internal state (quantity
// reconstruction mismatch, double execution). Fatal for the affected
// operation; the action halts and the violation is surfaced.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

// ErrUnknownOutcome marks a real-mode order submission whose HTTP call timed
// out. The order must not be assumed successful; it is surfaced for
// reconciliation instead.
var ErrUnknownOutcome = errors.New("order outcome unknown, reconciliation required")

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsExchange reports whether err is an ExchangeError.
func IsExchange(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee)
}
