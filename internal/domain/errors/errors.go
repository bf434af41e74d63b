// Package errors provides standardized error types for the domain layer.
// The ledger service classifies every failure into one of these categories so
// the HTTP layer can map them to status codes and the transaction processor
// can decide what is safe to retry.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrAccountNotFound indicates a referenced account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds indicates a debit would drive a balance negative
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates a non-positive or malformed amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch indicates a transfer between accounts of
	// different currencies
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidInput indicates a malformed request
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateIdempotencyKey indicates the unique index on
	// idempotency_key rejected an insert
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrSerialization indicates a concurrency abort (deadlock, lock
	// timeout, serialization failure) inside the store
	ErrSerialization = errors.New("serialization failure")

	// ErrStoreUnavailable indicates a transport or host level store error
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInternal indicates an unexpected internal error
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// AccountNotFoundError creates an account not found error
func AccountNotFoundError(accountID string) *DomainError {
	return &DomainError{
		Err:     ErrAccountNotFound,
		Code:    "ACCOUNT_NOT_FOUND",
		Message: fmt.Sprintf("account %s not found", accountID),
	}
}

// InsufficientFundsError creates an insufficient funds error
func InsufficientFundsError(balance, amount string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: fmt.Sprintf("insufficient funds: balance %s, requested %s", balance, amount),
	}
}

// InvalidAmountError creates an invalid amount error
func InvalidAmountError(message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidAmount,
		Code:    "INVALID_AMOUNT",
		Message: message,
	}
}

// CurrencyMismatchError creates a currency mismatch error
func CurrencyMismatchError(senderCurrency, receiverCurrency string) *DomainError {
	return &DomainError{
		Err:     ErrCurrencyMismatch,
		Code:    "CURRENCY_MISMATCH",
		Message: fmt.Sprintf("cannot transfer between %s and %s accounts", senderCurrency, receiverCurrency),
	}
}

// ValidationError creates a validation error for a request field
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// DuplicateIdempotencyKeyError creates a duplicate idempotency key error
func DuplicateIdempotencyKeyError(key string) *DomainError {
	return &DomainError{
		Err:     ErrDuplicateIdempotencyKey,
		Code:    "DUPLICATE_IDEMPOTENCY_KEY",
		Message: fmt.Sprintf("transaction with idempotency key %q already exists", key),
	}
}

// SerializationError creates a retryable concurrency abort error
func SerializationError(err error) *DomainError {
	return &DomainError{
		Err:       ErrSerialization,
		Code:      "SERIALIZATION_FAILURE",
		Message:   "store transaction aborted due to concurrent access",
		Retryable: true,
		Details:   causeDetails(err),
	}
}

// StoreUnavailableError creates a retryable store transport error
func StoreUnavailableError(err error) *DomainError {
	return &DomainError{
		Err:       ErrStoreUnavailable,
		Code:      "STORE_UNAVAILABLE",
		Message:   "store is temporarily unavailable",
		Retryable: true,
		Details:   causeDetails(err),
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	return &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Details: causeDetails(err),
	}
}

func causeDetails(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	return map[string]interface{}{"cause": err.Error()}
}

// IsAccountNotFound checks if an error is an account not found error
func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsInsufficientFunds checks if an error is an insufficient funds error
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsInvalidAmount checks if an error is an invalid amount error
func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// IsCurrencyMismatch checks if an error is a currency mismatch error
func IsCurrencyMismatch(err error) bool {
	return errors.Is(err, ErrCurrencyMismatch)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDuplicateIdempotencyKey checks if an error is a duplicate key error
func IsDuplicateIdempotencyKey(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsRetryable reports whether the processor may retry the operation with a
// fresh store session.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
