package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg-monitor-relay-go/internal/metrics"
	"tg-monitor-relay-go/internal/repository"
	"tg-monitor-relay-go/internal/source"
)

// Reconciler walks each source's history from its checkpoint forward,
// pushing missed messages through the regular pipeline. Run on startup,
// after a reconnect, and on a schedule.
type Reconciler struct {
	source   source.Client
	pipeline *Pipeline
	repo     *repository.Repository
	metrics  *metrics.Metrics
	chats    []int64
	pageSize int
}

// NewReconciler creates a reconciler for the given watched chats.
func NewReconciler(client source.Client, p *Pipeline, repo *repository.Repository, mtr *metrics.Metrics, chats []int64, pageSize int) *Reconciler {
	if pageSize < 1 {
		pageSize = 100
	}
	return &Reconciler{
		source:   client,
		pipeline: p,
		repo:     repo,
		metrics:  mtr,
		chats:    chats,
		pageSize: pageSize,
	}
}

// Run reconciles every watched chat. A failure in one chat does not stop
// the others.
func (r *Reconciler) Run(ctx context.Context) {
	r.metrics.BackfillRuns.Inc()
	for _, chatID := range r.chats {
		if ctx.Err() != nil {
			return
		}
		if err := r.reconcileChat(ctx, chatID); err != nil {
			if errors.Is(err, source.ErrHistoryUnavailable) {
				logrus.Debugf("Source client has no history API, skipping backfill for chat %d", chatID)
				continue
			}
			logrus.Errorf("Backfill for chat %d aborted: %v", chatID, err)
			if logErr := r.repo.AppendEvent(repository.EventLevelError, "backfill_aborted",
				fmt.Sprintf("Backfill for chat %d aborted: %v", chatID, err)); logErr != nil {
				logrus.Errorf("Failed to append event: %v", logErr)
			}
		}
	}
}

// reconcileChat pulls history pages strictly after the chat's checkpoint in
// ascending order. A page fetch error aborts this chat's cycle without
// touching the checkpoint; the next cycle safely retries from the same
// position. A single message failing follows the ledger retry policy and
// does not abort the page.
func (r *Reconciler) reconcileChat(ctx context.Context, chatID int64) error {
	after := int64(0)
	cp, err := r.repo.GetCheckpoint(chatID)
	if err != nil {
		return err
	}
	if cp != nil {
		after = cp.LastMessageID
	}

	for {
		page, err := r.source.History(ctx, chatID, after, r.pageSize)
		if err != nil {
			return fmt.Errorf("history fetch after message %d failed: %w", after, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, msg := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.pipeline.Process(ctx, msg); err != nil {
				logrus.Errorf("Backfill processing of message %d in chat %d failed: %v",
					msg.MessageID, msg.ChatID, err)
			}
		}

		// Page forward from the last pulled id, not the checkpoint: a
		// message left pending for retry must not wedge the walk.
		after = page[len(page)-1].MessageID
	}
}
