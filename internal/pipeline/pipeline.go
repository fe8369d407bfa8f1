// Package pipeline runs the match-claim-forward-checkpoint path. Live
// messages and backfilled history go through the same Process call, so the
// idempotency and checkpoint rules hold regardless of how a message arrived.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg-monitor-relay-go/internal/forward"
	"tg-monitor-relay-go/internal/matcher"
	"tg-monitor-relay-go/internal/metrics"
	"tg-monitor-relay-go/internal/models"
	"tg-monitor-relay-go/internal/repository"
	"tg-monitor-relay-go/internal/source"
)

// Config carries the pipeline's tunables.
type Config struct {
	// Destination is the chat that receives forwarded matches.
	Destination int64
	// LeaseWindow is how long a claim stays exclusive before another
	// worker may assume the holder died.
	LeaseWindow time.Duration
	// MaxFailures is the retryable-failure budget per message; one more
	// failure turns the ledger entry terminal.
	MaxFailures int
	// LogSkipped controls whether zero-match messages get an event log
	// entry.
	LogSkipped bool
}

// Pipeline processes observed messages.
type Pipeline struct {
	repo     *repository.Repository
	matcher  *matcher.Matcher
	executor *forward.Executor
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a pipeline.
func New(repo *repository.Repository, m *matcher.Matcher, executor *forward.Executor, mtr *metrics.Metrics, cfg Config) *Pipeline {
	return &Pipeline{
		repo:     repo,
		matcher:  m,
		executor: executor,
		metrics:  mtr,
		cfg:      cfg,
	}
}

// Process handles one observed message end to end. The checkpoint advances
// only when the message is done: forwarded, terminally failed, not matching,
// or already handled elsewhere. A message pending retry keeps the checkpoint
// where it is so a later backfill pass picks it up again.
func (p *Pipeline) Process(ctx context.Context, msg source.Message) error {
	start := time.Now()
	defer func() {
		p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}()
	p.metrics.MessagesObserved.Inc()

	matched := p.matcher.Match(msg.Text)
	if len(matched) == 0 {
		if p.cfg.LogSkipped {
			if err := p.repo.AppendEvent(repository.EventLevelInfo, "skipped",
				fmt.Sprintf("Message %d in chat %d matched no keywords", msg.MessageID, msg.ChatID)); err != nil {
				logrus.Errorf("Failed to log skipped message: %v", err)
			}
		}
		return p.advance(msg)
	}
	p.metrics.MatchCount.Inc()

	ref := models.MessageRef{ChatID: msg.ChatID, MessageID: msg.MessageID}
	claim, err := p.repo.Claim(ref, p.cfg.LeaseWindow)
	if err != nil {
		return fmt.Errorf("failed to claim message: %w", err)
	}

	switch claim {
	case repository.ClaimAlreadyHandled:
		// Duplicate delivery of a finished message; just move on.
		p.metrics.ClaimConflicts.Inc()
		return p.advance(msg)
	case repository.ClaimAlreadyClaimed:
		// Another worker owns it. Leave the checkpoint alone: if that
		// worker dies, backfill must still find this message.
		p.metrics.ClaimConflicts.Inc()
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
		"keywords":   strings.Join(matched, ","),
	}).Info("Message matched, forwarding")

	outcome := p.executor.Forward(ctx, p.cfg.Destination, msg.Text, matched)
	switch outcome.Kind {
	case forward.Success:
		if err := p.repo.MarkSent(ref); err != nil {
			return err
		}
		if err := p.repo.SetLastEvent(fmt.Sprintf("Forwarded message %d from chat %d", msg.MessageID, msg.ChatID)); err != nil {
			logrus.Errorf("Failed to update last event: %v", err)
		}
		return p.advance(msg)

	case forward.FatalFailure:
		if err := p.repo.MarkFailed(ref, outcome.Reason); err != nil {
			return err
		}
		if err := p.repo.SetLastError(outcome.Reason); err != nil {
			logrus.Errorf("Failed to update last error: %v", err)
		}
		// Terminal: nothing left to retry, the checkpoint may pass it.
		return p.advance(msg)

	default:
		terminal, err := p.repo.MarkRetry(ref, outcome.Reason, p.cfg.MaxFailures)
		if err != nil {
			return err
		}
		if err := p.repo.SetLastError(outcome.Reason); err != nil {
			logrus.Errorf("Failed to update last error: %v", err)
		}
		if terminal {
			if err := p.repo.AppendEvent(repository.EventLevelError, "retries_exhausted",
				fmt.Sprintf("Message %d in chat %d failed %d times, giving up: %s",
					msg.MessageID, msg.ChatID, p.cfg.MaxFailures+1, outcome.Reason)); err != nil {
				logrus.Errorf("Failed to append event: %v", err)
			}
			return p.advance(msg)
		}
		// Pending retry: hold the checkpoint so backfill revisits it.
		return nil
	}
}

// advance moves the chat's checkpoint to this message, unless an earlier
// message in the same chat is still pending retry. Passing a pending entry
// would put it behind the checkpoint where backfill never looks, stranding
// it unforwarded.
func (p *Pipeline) advance(msg source.Message) error {
	blocked, err := p.repo.HasPendingBefore(msg.ChatID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("failed to check for pending entries: %w", err)
	}
	if blocked {
		logrus.Debugf("Checkpoint for chat %d held below message %d: earlier message still pending",
			msg.ChatID, msg.MessageID)
		return nil
	}

	moved, err := p.repo.AdvanceCheckpoint(msg.ChatID, msg.MessageID, msg.Date)
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	if !moved {
		logrus.Debugf("Checkpoint for chat %d already at or past message %d", msg.ChatID, msg.MessageID)
	}
	return nil
}
