package errors

import (
	"fmt"
)

// CheckError is the structured error type for libcompat. It keeps the
// probe failure taxonomy attached to the error so the orchestrator can map
// a failure onto the right issue flags.
type CheckError struct {
	// Code is the unique error code (e.g. "ERR_201_CANNOT_LOAD").
	Code string

	// Message is the human-readable error message, surfaced as the
	// report's diagnostic text.
	Message string

	// Category is the taxonomy bucket (Usage, Load, Parse, Timeout, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *CheckError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CheckError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code, enabling
// errors.Is() against sentinel CheckErrors.
func (e *CheckError) Is(target error) bool {
	if t, ok := target.(*CheckError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *CheckError) WithDetail(key, value string) *CheckError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new CheckError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *CheckError {
	return &CheckError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a CheckError from an existing error, keeping its message.
func Wrap(code string, err error) *CheckError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// UsageError creates a bad-arguments error.
func UsageError(message string, cause error) *CheckError {
	return New(ErrCodeBadArguments, message, cause)
}

// LoadError creates a loader-failure error.
func LoadError(message string, cause error) *CheckError {
	return New(ErrCodeCannotLoad, message, cause)
}

// ParseError creates a malformed-input error.
func ParseError(message string, cause error) *CheckError {
	return New(ErrCodeMalformedELF, message, cause)
}

// TimeoutError creates a probe-timeout error.
func TimeoutError(message string, cause error) *CheckError {
	return New(ErrCodeProbeTimeout, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CheckError {
	return New(ErrCodeInternal, message, cause)
}

// GetCode extracts the error code from a CheckError.
// Returns empty string if not a CheckError.
func GetCode(err error) string {
	if ce, ok := err.(*CheckError); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a CheckError.
// Returns empty string if not a CheckError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CheckError); ok {
		return ce.Category
	}
	return ""
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CheckError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}
