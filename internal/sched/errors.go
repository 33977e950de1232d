package sched

import (
	"errors"
	"fmt"
)

// ContractViolation reports a host bug detected by the engine.
//
// Contract violations are not recoverable runtime conditions. The engine
// panics with a *ContractViolation value; tests and harnesses that want to
// observe one recover it with AsContractViolation.
type ContractViolation struct {
	// Code identifies the violated precondition.
	Code ViolationCode

	// Message is a human-readable description.
	Message string

	// Item is the host identifier involved, formatted with %v.
	Item string
}

// ViolationCode categorizes contract violations.
type ViolationCode string

const (
	// ErrCodeDoubleEnqueue indicates an item was enqueued while already queued.
	ErrCodeDoubleEnqueue ViolationCode = "DOUBLE_ENQUEUE"

	// ErrCodeNotQueued indicates a neighbour query on an item that is not queued.
	ErrCodeNotQueued ViolationCode = "NOT_QUEUED"

	// ErrCodeSelfMerge indicates an item was merged into itself.
	ErrCodeSelfMerge ViolationCode = "SELF_MERGE"

	// ErrCodeNonEmptyTeardown indicates Close was called with items queued.
	ErrCodeNonEmptyTeardown ViolationCode = "NON_EMPTY_TEARDOWN"

	// ErrCodeClosed indicates a call on a scheduler that was torn down.
	ErrCodeClosed ViolationCode = "CLOSED"

	// ErrCodeInvalidConfig indicates New was given invalid tunables.
	ErrCodeInvalidConfig ViolationCode = "INVALID_CONFIG"

	// ErrCodeInvalidTag indicates an unknown class or direction.
	ErrCodeInvalidTag ViolationCode = "INVALID_TAG"
)

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContractViolation returns true if err is or wraps a *ContractViolation.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}

// ViolationCodeOf returns the code of a wrapped *ContractViolation.
func ViolationCodeOf(err error) (ViolationCode, bool) {
	var cv *ContractViolation
	if errors.As(err, &cv) {
		return cv.Code, true
	}
	return "", false
}

// AsContractViolation converts a value returned by recover into a
// *ContractViolation. It returns false for any other panic value.
func AsContractViolation(r any) (*ContractViolation, bool) {
	err, ok := r.(error)
	if !ok {
		return nil, false
	}
	var cv *ContractViolation
	if errors.As(err, &cv) {
		return cv, true
	}
	return nil, false
}

func violate(code ViolationCode, item any, message string) {
	cv := &ContractViolation{Code: code, Message: message}
	if item != nil {
		cv.Item = fmt.Sprint(item)
	}
	panic(cv)
}
