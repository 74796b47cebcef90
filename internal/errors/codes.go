// Package errors provides structured error handling for libcompat.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: usage errors (bad CLI arguments)
//   - 2XX: load errors (the dynamic loader rejected the library)
//   - 3XX: parse errors (malformed binary container or expectation file)
//   - 4XX: timeout errors
//   - 5XX: internal errors
package errors

// Category classifies errors along the probe failure taxonomy.
type Category string

const (
	// CategoryUsage indicates bad probe or CLI arguments.
	CategoryUsage Category = "USAGE"
	// CategoryLoad indicates the library or a dependency failed to load.
	CategoryLoad Category = "LOAD"
	// CategoryParse indicates a malformed binary container or a malformed
	// expectation pairing.
	CategoryParse Category = "PARSE"
	// CategoryTimeout indicates a probe exceeded its time bound.
	CategoryTimeout Category = "TIMEOUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the caller can continue
	// with other libraries.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded results, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Usage errors (100-199)
	ErrCodeBadArguments  = "ERR_101_BAD_ARGUMENTS"
	ErrCodeBadArch       = "ERR_102_BAD_ARCHITECTURE"
	ErrCodeBadFormat     = "ERR_103_BAD_EXPECTATION_FORMAT"
	ErrCodeProbeMissing  = "ERR_104_PROBE_NOT_FOUND"
	ErrCodeConfigInvalid = "ERR_105_CONFIG_INVALID"

	// Load errors (200-299)
	ErrCodeCannotLoad       = "ERR_201_CANNOT_LOAD"
	ErrCodeHiddenDepFailed  = "ERR_202_HIDDEN_DEPENDENCY_FAILED"
	ErrCodeNoLinkMap        = "ERR_203_NO_LINK_MAP"

	// Parse errors (300-399)
	ErrCodeMalformedELF      = "ERR_301_MALFORMED_ELF"
	ErrCodeBadExpectations   = "ERR_302_BAD_EXPECTATIONS"
	ErrCodeBadProbeOutput    = "ERR_303_BAD_PROBE_OUTPUT"

	// Timeout errors (400-499)
	ErrCodeProbeTimeout = "ERR_401_PROBE_TIMEOUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the numeric range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryUsage
	case '2':
		return CategoryLoad
	case '3':
		return CategoryParse
	case '4':
		return CategoryTimeout
	}
	return CategoryInternal
}

// severityFromCode derives a default severity from the code. Nothing in a
// single-library check is fatal to a caller iterating many libraries, so
// only internal errors default to FATAL.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryInternal:
		return SeverityFatal
	case CategoryParse:
		return SeverityWarning
	}
	return SeverityError
}
