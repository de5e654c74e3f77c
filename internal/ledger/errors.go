package ledger

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by every ledger and service operation.
//
// All codes except CodeConsistencyFault describe bad input or a transient
// condition and are turned into a user-facing reply at the command boundary.
// CodeConsistencyFault means an invariant is broken and must be logged with
// full context.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// MatchID identifies the affected match, zero if none.
	MatchID MatchID

	// Participant identifies the affected participant, zero if none.
	Participant ParticipantID

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause (persistence failures).
	Err error
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// CodeNotFound indicates an unknown match.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeNotParticipant indicates the participant does not play in the match.
	CodeNotParticipant ErrorCode = "NOT_PARTICIPANT"

	// CodeInvalidInput indicates a malformed outcome token or a self-pairing.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeAlreadyResolved indicates a second report for a resolved match.
	CodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"

	// CodeUnauthorized indicates a non-admin caller invoked an admin operation.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodePersistenceFailure indicates the durable write did not complete.
	// In-memory state is unchanged and the command may be retried.
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// CodeConsistencyFault indicates a broken ledger invariant.
	CodeConsistencyFault ErrorCode = "CONSISTENCY_FAULT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.MatchID != 0 {
		msg = fmt.Sprintf("%s (match=%d)", msg, e.MatchID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err is nil or carries no ledger error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCode reports whether err carries a ledger error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound returns true if err is a CodeNotFound error.
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }

// IsConsistencyFault returns true if err is a CodeConsistencyFault error.
func IsConsistencyFault(err error) bool { return IsCode(err, CodeConsistencyFault) }

// NewNotFoundError creates an Error for an unknown match.
func NewNotFoundError(id MatchID) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "match not found",
		MatchID: id,
	}
}

// NewNotParticipantError creates an Error for a participant outside the match.
func NewNotParticipantError(id MatchID, p ParticipantID) *Error {
	return &Error{
		Code:        CodeNotParticipant,
		Message:     fmt.Sprintf("participant %d is not part of the match", p),
		MatchID:     id,
		Participant: p,
	}
}

// NewAlreadyResolvedError creates an Error for a repeated report.
func NewAlreadyResolvedError(m Match) *Error {
	return &Error{
		Code:    CodeAlreadyResolved,
		Message: "match already has a result",
		MatchID: m.ID,
		Details: map[string]string{
			"winner": fmt.Sprintf("%d", m.Winner),
		},
	}
}

// NewInvalidInputError creates an Error for malformed input.
func NewInvalidInputError(message string) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewInvalidPairingError creates an Error for an attempt to match a
// participant against themselves.
func NewInvalidPairingError(p ParticipantID) *Error {
	return &Error{
		Code:        CodeInvalidInput,
		Message:     "a participant cannot be paired with themselves",
		Participant: p,
	}
}

// NewUnauthorizedError creates an Error for a non-admin caller.
func NewUnauthorizedError(p ParticipantID, operation string) *Error {
	return &Error{
		Code:        CodeUnauthorized,
		Message:     fmt.Sprintf("%s requires admin privileges", operation),
		Participant: p,
	}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(err error) *Error {
	return &Error{
		Code:    CodePersistenceFailure,
		Message: "durable write did not complete",
		Err:     err,
	}
}

// NewConsistencyFault creates an Error for a broken invariant.
func NewConsistencyFault(message string, details map[string]string) *Error {
	return &Error{
		Code:    CodeConsistencyFault,
		Message: message,
		Details: details,
	}
}
