package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidArgument marks non-positive quantities, prices or ratios.
	// Never retried automatically.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InsufficientHoldingsError is returned when a sell is committed for more
// units than the current projection holds. It carries enough context for the
// caller to render an actionable message.
type InsufficientHoldingsError struct {
	Symbol    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings for %s: requested %s, available %s",
		e.Symbol, e.Requested, e.Available)
}

// HoldingNotFoundError is returned when a corporate action targets a symbol
// the user does not currently hold.
type HoldingNotFoundError struct {
	Symbol string
}

func (e *HoldingNotFoundError) Error() string {
	return fmt.Sprintf("no holding found for symbol %s", e.Symbol)
}

// StorageError wraps a persistence layer failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidArgumentf builds an ErrInvalidArgument with a formatted detail.
func InvalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
