// Package errors provides structured error handling for topodraw operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Pipeline errors.
	CodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	CodeMalformedRecord   ErrorCode = "MALFORMED_RECORD"
	CodeUnexpectedEvent   ErrorCode = "UNEXPECTED_EVENT"
	CodeSinkUnavailable   ErrorCode = "SINK_UNAVAILABLE"

	// Scanning errors.
	CodeScanFailed ErrorCode = "SCAN_FAILED"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
)

// RecordError describes a failure tied to a position in the scan report:
// the index of the host being built and the element that caused it.
type RecordError struct {
	Code      ErrorCode
	Message   string
	HostIndex int    // -1 when the failure is not inside a host element
	Element   string // element name, if applicable
	Attribute string // attribute name, if applicable
	Value     string // offending attribute value, if applicable
	Cause     error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	var pos []string
	if e.HostIndex >= 0 {
		pos = append(pos, fmt.Sprintf("host: %d", e.HostIndex))
	}
	if e.Element != "" {
		pos = append(pos, "element: "+e.Element)
	}
	if e.Attribute != "" {
		pos = append(pos, "attribute: "+e.Attribute)
	}
	if e.Value != "" {
		pos = append(pos, fmt.Sprintf("value: %q", e.Value))
	}
	if len(pos) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(pos, ", "))
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error {
	return e.Cause
}

// NewRecordError creates a record error positioned at a host and element.
func NewRecordError(code ErrorCode, message string, hostIndex int, element string) *RecordError {
	return &RecordError{
		Code:      code,
		Message:   message,
		HostIndex: hostIndex,
		Element:   element,
	}
}

// WrapRecordError wraps an existing error as a record error with no position.
func WrapRecordError(code ErrorCode, message string, err error) *RecordError {
	return &RecordError{
		Code:      code,
		Message:   message,
		HostIndex: -1,
		Cause:     err,
	}
}

// WithAttribute records the attribute (and optionally its value) at fault.
func (e *RecordError) WithAttribute(name, value string) *RecordError {
	e.Attribute = name
	e.Value = value
	return e
}

// ScanError represents a failure of a live nmap scan.
type ScanError struct {
	Code    ErrorCode
	Message string
	Targets []string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if len(e.Targets) > 0 {
		return fmt.Sprintf("[%s] %s (targets: %s)", e.Code, e.Message, strings.Join(e.Targets, ","))
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, targets []string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Targets: targets,
		Cause:   err,
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message, operation string, err error) *DatabaseError {
	return &DatabaseError{
		Code:      code,
		Message:   message,
		Operation: operation,
		Cause:     err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var recErr *RecordError
	if stderrors.As(err, &recErr) {
		return recErr.Code
	}
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if stderrors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsFatal determines if an error should abort a pipeline run.
// Only unexpected events are tolerated.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return GetCode(err) != CodeUnexpectedEvent
}

// Common error creation functions

// ErrMissingAttribute creates an error for a required attribute that is absent.
func ErrMissingAttribute(hostIndex int, element, attribute string) *RecordError {
	return NewRecordError(CodeMalformedRecord, "required attribute missing", hostIndex, element).
		WithAttribute(attribute, "")
}

// ErrInvalidAttribute creates an error for an attribute whose value cannot be used.
func ErrInvalidAttribute(hostIndex int, element, attribute, value string, cause error) *RecordError {
	e := NewRecordError(CodeMalformedRecord, "invalid attribute value", hostIndex, element).
		WithAttribute(attribute, value)
	e.Cause = cause
	return e
}

// ErrSourceUnavailable creates an error for an input that cannot be opened or read.
func ErrSourceUnavailable(source string, err error) *RecordError {
	return WrapRecordError(CodeSourceUnavailable, "cannot read scan report "+source, err)
}

// ErrSinkUnavailable creates an error for an output that cannot be created or written.
func ErrSinkUnavailable(sink string, err error) *RecordError {
	return WrapRecordError(CodeSinkUnavailable, "cannot write diagram "+sink, err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrDatabaseConnection creates an error for a database that cannot be reached.
// The cause is kept for logs; the message never carries connection details.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", "connect", err)
}
