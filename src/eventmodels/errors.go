package eventmodels

import "fmt"

// AuthError indicates the broker rejected our credentials. It is not fatal to
// the process: the session retries authentication on the next reconnect.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

// TransportError wraps a network-level failure. The websocket session treats
// it as a signal to tear down and reconnect.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ContractNotFoundError is returned when no tradable front-month contract
// exists for a root symbol.
type ContractNotFoundError struct {
	Symbol string
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("no tradable contract found for symbol %s", e.Symbol)
}

// ValidationError rejects an order request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order request: field %s: %s", e.Field, e.Reason)
}

// PlacementError carries the broker's rejection of an order. The gateway
// publishes it as an order-rejected event rather than propagating it upward.
type PlacementError struct {
	Reason string
	Text   string
}

func (e *PlacementError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("order placement rejected: %s: %s", e.Reason, e.Text)
	}

	return fmt.Sprintf("order placement rejected: %s", e.Reason)
}

// ModifyNotSupportedError documents the broker limitation that bracket and
// strategy legs cannot be modified in place; they require cancel + recreate.
type ModifyNotSupportedError struct {
	OrderID int64
}

func (e *ModifyNotSupportedError) Error() string {
	return fmt.Sprintf("order %d is a bracket/strategy leg and cannot be modified; cancel and recreate instead", e.OrderID)
}

// ReconciliationError records one account's sync failure. A failure on one
// account must not abort reconciliation of the others.
type ReconciliationError struct {
	AccountID int64
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for account %d: %v", e.AccountID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
