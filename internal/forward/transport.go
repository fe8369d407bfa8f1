// Package forward delivers matched messages to the destination and
// classifies the result so the ledger can decide between retry and terminal
// failure.
package forward

import "context"

// OutcomeKind classifies one forward attempt.
type OutcomeKind int

const (
	// Success means the transport confirmed delivery.
	Success OutcomeKind = iota
	// RetryableFailure means a transient transport or network error; the
	// message is eligible for another attempt.
	RetryableFailure
	// FatalFailure means the destination rejected permanently; the message
	// is never retried.
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case FatalFailure:
		return "fatal_failure"
	}
	return "unknown"
}

// Outcome is the classified result of a forward attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Transport delivers one message to a destination chat.
type Transport interface {
	Forward(ctx context.Context, destination int64, text string, matchedKeywords []string) Outcome
}
