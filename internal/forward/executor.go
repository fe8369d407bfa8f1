package forward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg-monitor-relay-go/internal/metrics"
)

// EventSink receives one audit record per attempt outcome. Implemented by
// the repository.
type EventSink interface {
	AppendEvent(level, status, message string) error
}

// Executor wraps the transport with bounded in-process retries, a per-attempt
// timeout, and audit logging. Retries beyond its budget are left to the
// ledger's lease recovery.
type Executor struct {
	transport   Transport
	events      EventSink
	metrics     *metrics.Metrics
	maxAttempts int
	timeout     time.Duration
}

// NewExecutor creates an executor. maxAttempts of 1 disables in-process
// retries.
func NewExecutor(transport Transport, events EventSink, m *metrics.Metrics, maxAttempts int, timeout time.Duration) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Executor{
		transport:   transport,
		events:      events,
		metrics:     m,
		maxAttempts: maxAttempts,
		timeout:     timeout,
	}
}

// Forward attempts delivery, retrying retryable outcomes with quadratic
// backoff up to the attempt budget. The returned outcome is the last
// attempt's classification; one event is logged per attempt.
func (e *Executor) Forward(ctx context.Context, destination int64, text string, matchedKeywords []string) Outcome {
	var outcome Outcome
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		outcome = e.transport.Forward(attemptCtx, destination, text, matchedKeywords)
		cancel()

		e.logAttempt(outcome, matchedKeywords, attempt)

		if outcome.Kind == Success {
			e.metrics.ForwardSuccesses.Inc()
			return outcome
		}

		e.metrics.ForwardFailures.Inc()
		if outcome.Kind == FatalFailure {
			return outcome
		}
		if attempt == e.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			outcome.Reason = fmt.Sprintf("%s (cancelled: %v)", outcome.Reason, ctx.Err())
			return outcome
		}

		wait := time.Duration(attempt*attempt) * time.Second
		logrus.Infof("Forward attempt %d/%d failed, waiting %v before retry", attempt, e.maxAttempts, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			outcome.Reason = fmt.Sprintf("%s (cancelled: %v)", outcome.Reason, ctx.Err())
			return outcome
		}
	}
	return outcome
}

func (e *Executor) logAttempt(outcome Outcome, matchedKeywords []string, attempt int) {
	level := "info"
	message := fmt.Sprintf("Forwarded message matching [%s]", strings.Join(matchedKeywords, ", "))
	if outcome.Kind != Success {
		level = "error"
		message = fmt.Sprintf("Forward attempt %d failed: %s", attempt, outcome.Reason)
	}
	if err := e.events.AppendEvent(level, outcome.Kind.String(), message); err != nil {
		logrus.Errorf("Failed to append event log entry: %v", err)
	}
}
