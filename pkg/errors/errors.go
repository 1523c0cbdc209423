package errors

import (
	"fmt"
	"strings"
)

// ErrorType categorizes domain errors for programmatic handling
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProcess    ErrorType = "process"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeCancelled  ErrorType = "cancelled"
)

// DomainError is the error type used across the supervisor packages.
// It carries a category, an optional cause and ordered key/value context.
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error

	contextKeys   []string
	contextValues map[string]string
}

func newDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:          errorType,
		Message:       message,
		Cause:         cause,
		contextValues: make(map[string]string),
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeConflict, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeIO, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeProcess, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeInternal, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeCancelled, message, cause)
}

// WithContext attaches a key/value pair to the error and returns the error
// to allow chaining. Re-setting a key overwrites its value but keeps its
// original position in the output.
func (e *DomainError) WithContext(key, value string) *DomainError {
	if _, exists := e.contextValues[key]; !exists {
		e.contextKeys = append(e.contextKeys, key)
	}
	e.contextValues[key] = value
	return e
}

// Context returns the value for a context key, if present.
func (e *DomainError) Context(key string) (string, bool) {
	value, ok := e.contextValues[key]
	return value, ok
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(" error: ")
	sb.WriteString(e.Message)
	for _, key := range e.contextKeys {
		sb.WriteString(fmt.Sprintf(", %s: %s", key, e.contextValues[key]))
	}
	if e.Cause != nil {
		sb.WriteString(", cause: ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is a DomainError of the given type,
// inspecting the wrap chain.
func IsType(err error, errorType ErrorType) bool {
	for err != nil {
		if domainErr, ok := err.(*DomainError); ok && domainErr.Type == errorType {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func IsValidationError(err error) bool { return IsType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool   { return IsType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool   { return IsType(err, ErrorTypeConflict) }
func IsIOError(err error) bool         { return IsType(err, ErrorTypeIO) }
func IsProcessError(err error) bool    { return IsType(err, ErrorTypeProcess) }
func IsInternalError(err error) bool   { return IsType(err, ErrorTypeInternal) }
func IsCancelledError(err error) bool  { return IsType(err, ErrorTypeCancelled) }
