package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown task or record kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSearchUnavailable indicates the search engine is not configured.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrRateLimited indicates a remote endpoint rejected a request for rate.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrTransport indicates an external system could not be reached or
	// failed to answer. Transport failures are always retryable.
	ErrTransport = errors.New("transport failure")

	// ErrConflictUnresolvable indicates two versions of an entity disagree
	// on a field no authority rule covers.
	ErrConflictUnresolvable = errors.New("conflict unresolvable")

	// ErrMapping indicates an external payload or record cannot be
	// translated into the target shape. Retrying will not help.
	ErrMapping = errors.New("mapping failed")

	// ErrSchedulerOverload indicates the task queue refused new work.
	ErrSchedulerOverload = errors.New("scheduler overload")

	// ErrRevisionConflict indicates a write lost an optimistic revision race.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrTaskNotPending indicates a task is no longer cancellable.
	ErrTaskNotPending = errors.New("task not pending")

	// ErrNotModified indicates a conditional fetch found no new content.
	ErrNotModified = errors.New("not modified")
)

// TransportError describes a failed call to an external system.
type TransportError struct {
	// System names the collaborator, e.g. "search", "store", "feed".
	System string
	// Op is the operation that failed.
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: transport failure", e.System, e.Op)
	}
	return fmt.Sprintf("%s %s: %v", e.System, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// NewTransportError wraps err as a transport failure of system/op.
func NewTransportError(system, op string, err error) error {
	return &TransportError{System: system, Op: op, Err: err}
}

// ConflictError lists the fields two record versions disagree on.
type ConflictError struct {
	GUID   GUID
	Fields []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict unresolvable for %s: %s", e.GUID, strings.Join(e.Fields, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflictUnresolvable
}

// MappingError describes a payload item that could not be mapped.
type MappingError struct {
	// Source is the feed URL or record GUID the item came from.
	Source string
	// Item identifies the offending entry, when known.
	Item string
	Err  error
}

func (e *MappingError) Error() string {
	msg := "mapping failed for " + e.Source
	if e.Item != "" {
		msg += " item " + e.Item
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *MappingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMapping}
	}
	return []error{ErrMapping, e.Err}
}

// IsPermanent reports whether err is a data-integrity failure that a retry
// cannot fix. Everything else, including unknown errors, is retryable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrMapping) ||
		errors.Is(err, ErrConflictUnresolvable) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrInvalidInput)
}
