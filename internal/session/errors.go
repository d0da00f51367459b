package session

import (
	"errors"
	"fmt"
)

// Input errors: UI-layer misuse, surfaced immediately, never retried and
// never mutate state.
var (
	ErrUnknownQuestion     = errors.New("question does not belong to this exam")
	ErrInvalidOptionIndex  = errors.New("option index out of range for this question")
	ErrNotAcceptingAnswers = errors.New("attempt is no longer accepting answers")

	// ErrAttemptClosed means the attempt was abandoned. Abandonment is
	// terminal: no further operations are accepted and no result will
	// ever be written for the attempt.
	ErrAttemptClosed = errors.New("attempt was abandoned")
)

// Gateway outcome sentinels.
var (
	// ErrResultNotFound is returned by FetchLatest when the student has no
	// graded result for the exam.
	ErrResultNotFound = errors.New("no graded result exists for this attempt")

	// ErrAlreadySubmitted is the store's rejection of a duplicate submit.
	// The engine treats it as success and fetches the existing result.
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// ErrSubmitPending means a prior submission's outcome is unknown; the
	// caller must reconcile before a fresh submit is allowed.
	ErrSubmitPending = errors.New("submission outcome unknown, reconcile first")
)

// TransportError wraps a failure while talking to the result store.
// Retryable is true only when the engine can be certain no write reached
// the store (e.g. the connection was refused outright). Ambiguous failures
// such as timeouts must not be marked retryable: a response timeout does
// not imply the write never happened.
type TransportError struct {
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("result store transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isRetryable reports whether err is a transport failure that provably
// left no write behind.
func isRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable
}
