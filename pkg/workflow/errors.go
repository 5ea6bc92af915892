package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"p9e.in/launchpad/pkg/deployment"
)

// Kind classifies workflow failures. The values double as the stable
// error codes returned to clients.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindUnauthenticated Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindInvalidState    Kind = "INVALID_STATUS"
	KindPrerequisite    Kind = "PREREQUISITE_NOT_MET"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Error is returned by every workflow operation.
type Error struct {
	Kind    Kind
	Message string
	// Details maps request field names to what is wrong with them.
	Details map[string]string
	Err     error

	unprocessable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Unprocessable marks validation failures of a well-formed request whose
// field values are rejected as a whole (HTTP 422 rather than 400).
func (e *Error) Unprocessable() bool { return e.unprocessable }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// FieldErrors builds a validation error carrying per-field details.
func FieldErrors(message string, details map[string]string, unprocessable bool) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details, unprocessable: unprocessable}
}

func Unauthenticated() *Error {
	return newError(KindUnauthenticated, "authentication required")
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func PrerequisiteNotMet(format string, args ...any) *Error {
	return newError(KindPrerequisite, format, args...)
}

// Internal hides err behind a generic message; the cause stays reachable
// through Unwrap for logging.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a workflow error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AsError converts any error into an *Error.
func AsError(err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	var derr *deployment.Error
	if errors.As(err, &derr) {
		details := map[string]string{}
		if derr.Field != "" {
			details[derr.Field] = derr.Reason
		}
		return FieldErrors(derr.Error(), details, false)
	}
	return Internal(err, "internal server error")
}

// storageError maps a persistence failure. Unique violations become
// conflicts; anything else is internal.
func storageError(err error, conflictMessage string) error {
	if err == nil {
		return nil
	}
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("record not found")
	}
	if isUniqueViolation(err) {
		return &Error{Kind: KindConflict, Message: conflictMessage, Err: err}
	}
	return Internal(err, "internal server error")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
