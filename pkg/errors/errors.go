// Package errors provides a structured error system for recipescrape with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for recipescrape operations.
type ErrorCode string

// Error code constants grouped by category.
const (
	// Cache errors
	ErrCodeInvalidTTL       ErrorCode = "INVALID_TTL"
	ErrCodeInvalidNamespace ErrorCode = "INVALID_NAMESPACE"
	ErrCodeInvalidValue     ErrorCode = "INVALID_VALUE"
	ErrCodeSnapshotRead     ErrorCode = "SNAPSHOT_READ"
	ErrCodeSnapshotWrite    ErrorCode = "SNAPSHOT_WRITE"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave    ErrorCode = "CONFIG_SAVE"

	// Connection errors
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	ErrCodeHTTPStatus        ErrorCode = "HTTP_STATUS"
	ErrCodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"

	// Content errors
	ErrCodeParseFailed ErrorCode = "PARSE_FAILED"
	ErrCodeOutputWrite ErrorCode = "OUTPUT_WRITE"

	// Authentication errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeCredentialsMissing   ErrorCode = "CREDENTIALS_MISSING"

	// Operation errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeScraperNotFound   ErrorCode = "SCRAPER_NOT_FOUND"

	// Internal errors
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryCache         ErrorCategory = "cache"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryContent       ErrorCategory = "content"
	CategoryAuth          ErrorCategory = "auth"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// Error represents a structured error with context and metadata.
type Error struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code (for errors.Is compatibility).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *Error) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("Error{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default values derived from its code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new error with the given cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidTTL, ErrCodeInvalidNamespace, ErrCodeInvalidValue,
		ErrCodeSnapshotRead, ErrCodeSnapshotWrite:
		return CategoryCache
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeConfigSave:
		return CategoryConfiguration
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout, ErrCodeHTTPStatus, ErrCodeCircuitOpen:
		return CategoryConnection
	case ErrCodeParseFailed, ErrCodeOutputWrite:
		return CategoryContent
	case ErrCodeAuthenticationFailed, ErrCodeCredentialsMissing:
		return CategoryAuth
	case ErrCodeOperationCanceled, ErrCodeRetryExhausted, ErrCodeScraperNotFound:
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout:
		return true
	}
	return false
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidTTL, ErrCodeInvalidNamespace, ErrCodeInvalidConfig,
		ErrCodeAuthenticationFailed, ErrCodeCredentialsMissing, ErrCodeScraperNotFound,
		ErrCodeSnapshotWrite, ErrCodeOutputWrite:
		return true
	}
	return false
}

// WithContext adds contextual information to an error
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable overrides the default retryable flag
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	for err != nil {
		if stderr.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// IsRetryable reports whether err is a structured error flagged as retryable.
func IsRetryable(err error) bool {
	var e *Error
	if stderr.As(err, &e) {
		return e.Retryable
	}
	return false
}

// UserFacingMessage returns a simplified message suitable for end users
func (e *Error) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Re-run with --log-level DEBUG for details."
	}

	messages := map[ErrorCode]string{
		ErrCodeInvalidTTL:           "Cache TTL must not be negative",
		ErrCodeInvalidNamespace:     "Invalid cache namespace",
		ErrCodeInvalidConfig:        "Invalid configuration",
		ErrCodeAuthenticationFailed: "Authentication failed - check your API token",
		ErrCodeCredentialsMissing:   "Credentials not configured",
		ErrCodeSnapshotWrite:        "Failed to write the cache snapshot",
		ErrCodeOutputWrite:          "Failed to write scraper output",
	}

	if msg, exists := messages[e.Code]; exists {
		return msg
	}
	return e.Message
}
