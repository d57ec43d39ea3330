package fredsim

import "fmt"

// Error message templates for the configuration and parsing error class.
// Mirrors the teacher's pattern of exported constant message templates
// formatted with fmt.Errorf/fmt.Sprintf at the call site.
const (
	MissingRequiredKeyError  = "required parameter %q not found"
	UnrecognizedKeywordError = "unrecognized value %q for parameter %q"
	MalformedTableError      = "malformed table at %s line %d: %s"
	DuplicateGroupIDError    = "mixing group id %d already registered"
	DuplicateConditionError  = "condition id %d already registered"
	FileParsingError         = "error parsing line %d: %s"
)

// Test-only message templates, mirroring the teacher's errors.go
// constants of the same names (UnequalIntParameterError et al.), used
// across this module's *_test.go files instead of ad-hoc t.Errorf
// strings.
const (
	UnequalIntParameterError    = "expected %s %d, instead got %d"
	UnequalFloatParameterError  = "expected %s %f, instead got %f"
	UnequalStringParameterError = "expected %s %s, instead got %s"
	UnequalBoolParameterError   = "expected %s %t, instead got %t"
	UnexpectedErrorWhileError   = "encountered error while %s: %s"
	ExpectedErrorWhileError     = "expected an error while %s, instead got none"
)

// InvariantError marks a structural contract violation: member-index
// corruption, duplicate mixing-group id, double exposure of the same
// agent in the same condition on the same day. Spec.md classifies these
// as fatal assertions that indicate programmer error in a component and
// are never expected at steady state, so they are raised as panics of
// this named type rather than returned, letting tests recover() and
// assert on them directly.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Msg
}

func invariantf(format string, args ...interface{}) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// ConfigError wraps a fatal configuration problem detected before the
// first Update call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
