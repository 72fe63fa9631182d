package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the refund flow. Repositories translate storage
// failures into these; the HTTP layer maps them onto status codes.
var (
	// Sale item
	ErrSaleItemNotFound   = errors.New("sale item not found")
	ErrAlreadyRefunded    = errors.New("sale item already refunded")
	ErrAmountExceedsTotal = errors.New("refund amount exceeds item total")

	// Refund
	ErrRefundNotFound         = errors.New("refund not found")
	ErrInvalidRefundMethod    = errors.New("invalid refund method")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrRefundInProgress       = errors.New("a refund for this item is already being processed")
	ErrRefundNotResumable     = errors.New("refund is not in a resumable state")

	// Customer
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerRequired = errors.New("customer required for account refunds")

	// Inventory
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("product variant not found")

	// Atomic procedure
	ErrProcedureUnavailable = errors.New("atomic refund procedure unavailable")

	// Idempotency
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrDuplicateRefundNumber   = errors.New("duplicate refund number")
)

// DomainError carries a machine-readable code next to the message, so the
// HTTP layer can expose codes without parsing error strings.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// ValidationError names the request field that failed, which the HTTP
// layer surfaces as a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
