package permissions

import "fmt"

// Validation error codes surfaced through the resolve envelope.
const (
	CodeInvalidUserID        = "INVALID_USER_ID"
	CodeInvalidApplicationID = "INVALID_APPLICATION_ID"
	CodeInvalidEnvironment   = "INVALID_ENVIRONMENT"
	CodeDataAccess           = "DATA_ACCESS_FAILURE"
)

// ValidationError reports rejected resolver input. Resolution is aborted
// before any fetch when one is returned.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("permissions: %s: %s", e.Code, e.Message)
}

// DataAccessError wraps a failed fetch from the role store. The resolver
// never converts a fetch failure into a partial result.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("permissions: %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }
