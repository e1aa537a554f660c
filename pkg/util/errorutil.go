package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the issuance workflow.
const (
	CodeInvalidIdentity     = "INVALID_IDENTITY"
	CodeIdentityNotFound    = "IDENTITY_NOT_FOUND"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeProviderError       = "PROVIDER_ERROR"
	CodeTokenCollision      = "TOKEN_COLLISION"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeStoreRejected       = "STORE_REJECTED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Retryable  bool
	Details    map[string]any
	Err        error
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

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewInvalidIdentity(message string) error {
	if message == "" {
		message = "identity must not be empty"
	}
	return NewDomainError(CodeInvalidIdentity, message, http.StatusBadRequest, nil)
}

func NewIdentityNotFound(identity string) error {
	return &DomainError{
		Code:       CodeIdentityNotFound,
		Message:    "identity not known to provider",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"identity": identity},
	}
}

func NewProviderUnavailable(err error) error {
	return &DomainError{
		Code:       CodeProviderUnavailable,
		Message:    "identity provider unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

func NewProviderError(err error) error {
	return &DomainError{
		Code:       CodeProviderError,
		Message:    "identity provider request failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewTokenCollision(fingerprint string) error {
	return &DomainError{
		Code:       CodeTokenCollision,
		Message:    "token already exists with a different record",
		HTTPStatus: http.StatusConflict,
		Retryable:  true,
		Details:    map[string]any{"fingerprint": fingerprint},
	}
}

func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "token store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

func NewStoreRejected(err error) error {
	return &DomainError{
		Code:       CodeStoreRejected,
		Message:    "token store rejected the write",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsRetryable reports whether the error represents a transient condition.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}
