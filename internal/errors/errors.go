package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - invalid input data
	ErrorTypeValidation
	// Resolution errors - a tag, date or log pattern matched no commit
	ErrorTypeResolution
	// Parse errors - external output does not follow the expected format
	ErrorTypeParse
	// Process errors - non-zero exit, missing binary, missing working directory
	ErrorTypeProcess
	// Timeout errors - an external call exceeded its deadline
	ErrorTypeTimeout
	// Degenerate errors - a metric has no defined value (e.g. division by zero)
	ErrorTypeDegenerate
	// Storage errors - database connection or query failures
	ErrorTypeStorage
	// Network errors - network connectivity issues
	ErrorTypeNetwork
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - aborts the current unit of work (one file)
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		e.Type.String(),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

// String returns the upper-case name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeResolution:
		return "RESOLUTION"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeProcess:
		return "PROCESS"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeDegenerate:
		return "DEGENERATE"
	case ErrorTypeStorage:
		return "STORAGE"
	case ErrorTypeNetwork:
		return "NETWORK"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Sentinels for errors.Is matching by type
var (
	ErrResolution = &Error{Type: ErrorTypeResolution}
	ErrParse      = &Error{Type: ErrorTypeParse}
	ErrProcess    = &Error{Type: ErrorTypeProcess}
	ErrTimeout    = &Error{Type: ErrorTypeTimeout}
	ErrDegenerate = &Error{Type: ErrorTypeDegenerate}
)

// Convenience constructors for common error types

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// NotFoundf creates a recoverable resolution error for a lookup that matched nothing
func NotFoundf(format string, args ...interface{}) *Error {
	return New(ErrorTypeResolution, SeverityLow, fmt.Sprintf(format, args...))
}

// MalformedOutput creates a parse error carrying the offending raw line
func MalformedOutput(line string, format string, args ...interface{}) *Error {
	e := New(ErrorTypeParse, SeverityHigh, "malformed history output: "+fmt.Sprintf(format, args...))
	return e.WithContext("line", line)
}

// ProcessError wraps a failed external process invocation
func ProcessError(err error, message string) *Error {
	return Wrap(err, ErrorTypeProcess, SeverityCritical, message)
}

// ProcessErrorf wraps a failed external process invocation with formatting
func ProcessErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeProcess, SeverityCritical, fmt.Sprintf(format, args...))
}

// TimeoutError wraps an external call that exceeded its deadline
func TimeoutError(err error, message string) *Error {
	return Wrap(err, ErrorTypeTimeout, SeverityHigh, message)
}

// DegenerateMetricf reports a metric whose value is undefined for the input
func DegenerateMetricf(format string, args ...interface{}) *Error {
	return New(ErrorTypeDegenerate, SeverityHigh, fmt.Sprintf(format, args...))
}

// StorageError wraps a database error
func StorageError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, message)
}

// StorageErrorf wraps a database error with formatting
func StorageErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, fmt.Sprintf(format, args...))
}

// NetworkError wraps a network error
func NetworkError(err error, message string) *Error {
	return Wrap(err, ErrorTypeNetwork, SeverityHigh, message)
}

// NetworkErrorf wraps a network error with formatting
func NetworkErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeNetwork, SeverityHigh, fmt.Sprintf(format, args...))
}

// InternalError creates an internal error
func InternalError(message string) *Error {
	return New(ErrorTypeInternal, SeverityCritical, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// IsNotFound reports whether err is a resolution failure
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrResolution)
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity
	}

	return SeverityMedium
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}

	return ErrorTypeInternal
}
