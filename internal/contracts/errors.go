package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Recoverable, per-instrument-per-date errors. The instrument is excluded for
// the date and the simulation continues.
var (
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrDataIntegrity       = errors.New("data integrity")
)

// Fatal errors. These abort the run.
var (
	ErrPointInTimeViolation = errors.New("point-in-time violation")
	ErrInvariantViolation   = errors.New("invariant violation")
)

// DataIntegrityError describes a rejected bar or record
type DataIntegrityError struct {
	Ticker string
	Date   time.Time
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s %s: %s %s", e.Ticker, e.Date.Format(DateLayout), e.Field, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// PointInTimeViolationError is raised when code asks for data published after
// the as-of date, or asks the store for a date beyond its clock.
type PointInTimeViolationError struct {
	Ticker      string
	AsOf        time.Time
	PublishedAt time.Time
	Detail      string
}

func (e *PointInTimeViolationError) Error() string {
	return fmt.Sprintf("%s as of %s read data published %s: %s",
		e.Ticker, e.AsOf.Format(DateLayout), e.PublishedAt.Format(DateLayout), e.Detail)
}

func (e *PointInTimeViolationError) Unwrap() error { return ErrPointInTimeViolation }

// IsRecoverable reports whether err should degrade to an exclusion
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrDataIntegrity)
}

// ExclusionReason maps a recoverable error onto the reason recorded in the audit ledger
func ExclusionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrDataIntegrity):
		return "data_integrity"
	default:
		return "error"
	}
}
