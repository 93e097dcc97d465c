package core

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrNetwork marks a failed remote call. Transient and retryable.
	ErrNetwork = errors.New("network error")
	// ErrAuth marks a missing or rejected session.
	ErrAuth = errors.New("authentication error")
	// ErrNotFound marks an entity that is missing or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation error")
	// ErrConflict is reserved for version mismatches.
	ErrConflict = errors.New("conflict")
	// ErrStorage marks a failed local persistence write or read.
	ErrStorage = errors.New("storage error")
)

// Error carries the failing operation and entity alongside its kind.
type Error struct {
	Kind error
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel as well as anything the cause matches.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Wrap classifies err under kind. A nil err stays nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound builds an ErrNotFound for the given entity id.
func NotFound(op, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, ID: id}
}

// Invalid builds an ErrValidation with a cause.
func Invalid(op string, err error) error {
	return &Error{Kind: ErrValidation, Op: op, Err: err}
}

// Retryable reports whether a failed remote operation may succeed if tried
// again. Only network failures qualify; unclassified errors are treated as
// network failures since they originate below the taxonomy.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return false
	}
	return true
}
