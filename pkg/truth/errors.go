package truth

import "fmt"

// ErrorKind is the closed failure taxonomy for compilation.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "INVALID_INPUT"
	ErrIntegrityMismatch  ErrorKind = "INTEGRITY_MISMATCH"
	ErrSchemaValidation   ErrorKind = "SCHEMA_VALIDATION"
	ErrClaimDerivation    ErrorKind = "CLAIM_DERIVATION"
	ErrParse              ErrorKind = "PARSE_ERROR"
	ErrCanonicalization   ErrorKind = "CANONICALIZATION_ERROR"
)

// CompilationError is returned, never panicked, from the compile path.
// Two identical inputs produce identical error bytes: messages are fixed
// strings plus canonical values, and Details carries only deterministic
// content.
type CompilationError struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func compileErr(kind ErrorKind, format string, args ...interface{}) *CompilationError {
	return &CompilationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	if ce, ok := err.(*CompilationError); ok {
		return ce.Kind
	}
	return ""
}
