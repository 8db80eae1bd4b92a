package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized  = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
)

// StorageError indicates a device-scoped cache read or write failure.
// Reads are expected to degrade to "no data" before this surfaces; writes
// propagate it to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage: " + e.Op + " failed"
	}
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps a cache backend failure for the given operation
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// SessionError indicates that no valid authenticated context existed when
// one was required by a remote cart operation.
type SessionError struct {
	Reason string
}

func (e *SessionError) Error() string {
	if e.Reason == "" {
		return "session: no valid authenticated context"
	}
	return "session: " + e.Reason
}

// NewSessionError creates a SessionError with the given reason
func NewSessionError(reason string) *SessionError {
	return &SessionError{Reason: reason}
}

// IsSessionError reports whether err is (or wraps) a SessionError
func IsSessionError(err error) bool {
	var target *SessionError
	return errors.As(err, &target)
}

// NetworkError indicates a transport or backend failure on a remote cart
// operation. Fetch failures degrade to the cached snapshot; replace failures
// propagate.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "remote: " + e.Op + " failed"
	}
	return "remote: " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NewNetworkError wraps a remote backend failure for the given operation
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

// IsNetworkError reports whether err is (or wraps) a NetworkError
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// MergeError indicates an unexpected failure inside the cart merge step.
// Callers treat it as "use the remote snapshot only"; it must never corrupt
// published cart state.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string {
	if e.Err == nil {
		return "merge failed"
	}
	return "merge: " + e.Err.Error()
}

func (e *MergeError) Unwrap() error { return e.Err }

// NewMergeError wraps a merge failure
func NewMergeError(err error) *MergeError {
	return &MergeError{Err: err}
}

// IsMergeError reports whether err is (or wraps) a MergeError
func IsMergeError(err error) bool {
	var target *MergeError
	return errors.As(err, &target)
}
