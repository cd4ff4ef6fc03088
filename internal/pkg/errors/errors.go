package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a booking engine error for callers and the HTTP layer.
type Kind int

const (
	// KindCapacityExceeded indicates a ledger write would exceed total units for a day
	KindCapacityExceeded Kind = iota
	// KindSlotUnavailable indicates at least one day in a requested range lacks capacity
	KindSlotUnavailable
	// KindHoldNotFound indicates the hold does not exist or is no longer active
	KindHoldNotFound
	// KindHoldExpired indicates the hold's TTL elapsed before it was consumed
	KindHoldExpired
	// KindInvalidDateRange indicates a past check-in or a non-positive stay length
	KindInvalidDateRange
	// KindCouponInvalid indicates an unknown, inactive or out-of-window coupon code
	KindCouponInvalid
	// KindTransactionAborted indicates the underlying atomic commit failed (e.g. lock timeout)
	KindTransactionAborted
	// KindNotFound indicates a referenced entity does not exist
	KindNotFound
	// KindInvalidInput indicates malformed caller input
	KindInvalidInput
	// KindInternal indicates an unexpected storage or programming failure
	KindInternal
)

// Error is a classified error with a stable code and optional cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// CapacityExceeded reports a ledger write that would overflow a day's total units.
func CapacityExceeded(message string) *Error {
	return &Error{Kind: KindCapacityExceeded, Code: "CAPACITY_EXCEEDED", Message: message}
}

// SlotUnavailable reports a requested range with at least one undersupplied day.
func SlotUnavailable(message string) *Error {
	return &Error{Kind: KindSlotUnavailable, Code: "SLOT_UNAVAILABLE", Message: message}
}

// HoldNotFound reports an operation on a hold that is not active.
func HoldNotFound(message string) *Error {
	return &Error{Kind: KindHoldNotFound, Code: "HOLD_NOT_FOUND", Message: message}
}

// HoldExpired reports a hold whose TTL elapsed before consumption.
func HoldExpired(message string) *Error {
	return &Error{Kind: KindHoldExpired, Code: "HOLD_EXPIRED", Message: message}
}

// InvalidDateRange reports a past check-in or inverted date range.
func InvalidDateRange(message string) *Error {
	return &Error{Kind: KindInvalidDateRange, Code: "INVALID_DATE_RANGE", Message: message}
}

// CouponInvalid reports an unusable coupon code.
func CouponInvalid(message string) *Error {
	return &Error{Kind: KindCouponInvalid, Code: "COUPON_INVALID", Message: message}
}

// TransactionAborted reports a failed atomic commit. It is the only
// transient kind: callers may retry the same logical operation.
func TransactionAborted(message string, cause error) *Error {
	return &Error{Kind: KindTransactionAborted, Code: "TRANSACTION_ABORTED", Message: message, Cause: cause}
}

// NotFound reports a missing referenced entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

// InvalidInput reports malformed caller input.
func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Code: "INVALID_INPUT", Message: message}
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Cause: cause}
}

// KindOf returns the classification of err, or KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}

// IsTransient reports whether err is safe to retry as the same logical
// operation. Only aborted transactions qualify.
func IsTransient(err error) bool {
	return Is(err, KindTransactionAborted)
}
