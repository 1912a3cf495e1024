package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Input errors
	CodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
	CodeInvalidUpload     ErrorCode = "INVALID_UPLOAD"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Generation reply contract violations
	CodeNoStructuredPayload ErrorCode = "NO_STRUCTURED_PAYLOAD"
	CodeMalformedPayload    ErrorCode = "MALFORMED_PAYLOAD"
	CodeSchemaViolation     ErrorCode = "SCHEMA_VIOLATION"

	// Upstream generation service
	CodeGenerationTimeout     ErrorCode = "GENERATION_TIMEOUT"
	CodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	CodeGenerationRejected    ErrorCode = "GENERATION_REJECTED"

	// Persistence
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
	// Raw holds the offending upstream text for contract violations.
	Raw string `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// WithContext attaches a detail key to the error and returns it for chaining.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewNotFoundError(id string) *DomainError {
	return NewError(CodeNotFound, fmt.Sprintf("quiz not found with ID: %s", id), nil).WithContext("id", id)
}

func NewInvalidIdentifierError(id string) *DomainError {
	return NewError(CodeInvalidIdentifier, "invalid or missing id", nil).WithContext("id", id)
}

func NewInvalidUploadError(message string, cause error) *DomainError {
	return NewError(CodeInvalidUpload, message, cause)
}

func NewUnsupportedFormatError(message string, cause error) *DomainError {
	return NewError(CodeUnsupportedFormat, message, cause)
}

func NewNoStructuredPayloadError(raw string) *DomainError {
	e := NewError(CodeNoStructuredPayload, "generation reply contains no structured payload", nil)
	e.Raw = raw
	return e
}

func NewMalformedPayloadError(raw string, cause error) *DomainError {
	e := NewError(CodeMalformedPayload, "generation reply payload could not be parsed", cause)
	e.Raw = raw
	return e
}

// NewSchemaViolationError names the offending field and the expectation it failed.
func NewSchemaViolationError(field, expected, raw string) *DomainError {
	e := NewError(CodeSchemaViolation, fmt.Sprintf("field %s: expected %s", field, expected), nil).
		WithContext("field", field).
		WithContext("expected", expected)
	e.Raw = raw
	return e
}

func NewGenerationTimeoutError(cause error) *DomainError {
	return NewError(CodeGenerationTimeout, "generation service did not answer in time", cause)
}

func NewGenerationUnavailableError(attempts int, cause error) *DomainError {
	return NewError(CodeGenerationUnavailable, "generation service unavailable", cause).WithContext("attempts", attempts)
}

func NewGenerationRejectedError(cause error) *DomainError {
	return NewError(CodeGenerationRejected, "generation service rejected the request", cause)
}

func NewStorageUnavailableError(message string, cause error) *DomainError {
	return NewError(CodeStorageUnavailable, message, cause)
}
