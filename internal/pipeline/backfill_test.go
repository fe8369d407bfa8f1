package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-monitor-relay-go/internal/forward"
	"tg-monitor-relay-go/internal/models"
	"tg-monitor-relay-go/internal/source"
)

// fakeHistory serves pages from a fixed ascending message list and can be
// told to fail the next fetch.
type fakeHistory struct {
	messages map[int64][]source.Message
	failNext bool
	fetches  int
}

func (f *fakeHistory) Updates(ctx context.Context) (<-chan source.Message, error) {
	ch := make(chan source.Message)
	close(ch)
	return ch, nil
}

func (f *fakeHistory) History(ctx context.Context, chatID, afterID int64, pageSize int) ([]source.Message, error) {
	f.fetches++
	if f.failNext {
		f.failNext = false
		return nil, errors.New("connection reset")
	}
	var page []source.Message
	for _, m := range f.messages[chatID] {
		if m.MessageID > afterID {
			page = append(page, m)
		}
		if len(page) == pageSize {
			break
		}
	}
	return page, nil
}

func (f *fakeHistory) Connected() bool { return true }

func history(chatID int64, ids ...int64) map[int64][]source.Message {
	msgs := make([]source.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, source.Message{
			ChatID:    chatID,
			MessageID: id,
			Text:      "urgent update",
			Date:      time.Now(),
		})
	}
	return map[int64][]source.Message{chatID: msgs}
}

func TestBackfillStartsAfterCheckpoint(t *testing.T) {
	h := newHarness(t, []string{"urgent"}, Config{})
	_, err := h.repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)

	client := &fakeHistory{messages: history(7, 99, 100, 101, 102)}
	r := NewReconciler(client, h.pipeline, h.repo, testMetrics, []int64{7}, 10)
	r.Run(context.Background())

	// Only 101 and 102 are newer than the checkpoint.
	assert.Len(t, h.transport.sent, 2)

	cp, err := h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(102), cp.LastMessageID)
}

func TestBackfillFetchFailureLeavesCheckpoint(t *testing.T) {
	h := newHarness(t, []string{"urgent"}, Config{})
	_, err := h.repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)

	client := &fakeHistory{messages: history(7, 101, 102), failNext: true}
	r := NewReconciler(client, h.pipeline, h.repo, testMetrics, []int64{7}, 10)
	r.Run(context.Background())

	assert.Empty(t, h.transport.sent)
	cp, err := h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cp.LastMessageID, "aborted cycle must not move the checkpoint")

	// The next cycle retries from the same position and catches up.
	r.Run(context.Background())
	assert.Len(t, h.transport.sent, 2)
	cp, err = h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(102), cp.LastMessageID)
}

func TestBackfillPagination(t *testing.T) {
	h := newHarness(t, []string{"urgent"}, Config{})

	client := &fakeHistory{messages: history(7, 1, 2, 3, 4, 5)}
	r := NewReconciler(client, h.pipeline, h.repo, testMetrics, []int64{7}, 2)
	r.Run(context.Background())

	assert.Len(t, h.transport.sent, 5)
	// Pages of 2: [1,2], [3,4], [5], then the empty terminator.
	assert.Equal(t, 4, client.fetches)

	cp, err := h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cp.LastMessageID)
}

func TestPendingMessageRecoveredAfterLaterSuccess(t *testing.T) {
	h := newHarness(t, []string{"urgent"}, Config{MaxFailures: 3})
	_, err := h.repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)

	// 101 fails retryably and stays pending; 102 then succeeds.
	h.transport.outcome = forward.Outcome{Kind: forward.RetryableFailure, Reason: "flood wait"}
	require.NoError(t, h.pipeline.Process(context.Background(), source.Message{
		ChatID: 7, MessageID: 101, Text: "urgent first", Date: time.Now(),
	}))
	h.transport.outcome = forward.Outcome{Kind: forward.Success}
	require.NoError(t, h.pipeline.Process(context.Background(), source.Message{
		ChatID: 7, MessageID: 102, Text: "urgent second", Date: time.Now(),
	}))

	// The later success must not move the checkpoint past the pending 101,
	// or backfill would never see it again.
	cp, err := h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cp.LastMessageID)

	entry, err := h.repo.GetLedgerEntry(models.MessageRef{ChatID: 7, MessageID: 101})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, models.LedgerStatusPending, entry.Status)

	// The next backfill cycle re-drives 101 and the checkpoint catches up.
	client := &fakeHistory{messages: map[int64][]source.Message{7: {
		{ChatID: 7, MessageID: 101, Text: "urgent first", Date: time.Now()},
		{ChatID: 7, MessageID: 102, Text: "urgent second", Date: time.Now()},
	}}}
	r := NewReconciler(client, h.pipeline, h.repo, testMetrics, []int64{7}, 10)
	r.Run(context.Background())

	entry, err = h.repo.GetLedgerEntry(models.MessageRef{ChatID: 7, MessageID: 101})
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusSent, entry.Status)
	assert.Contains(t, h.transport.sent, "urgent first")

	cp, err = h.repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(102), cp.LastMessageID)
}

func TestBackfillHistoryUnavailable(t *testing.T) {
	h := newHarness(t, []string{"urgent"}, Config{})

	client := &noHistoryClient{}
	r := NewReconciler(client, h.pipeline, h.repo, testMetrics, []int64{7}, 10)
	r.Run(context.Background())

	// Quietly skipped, no error events.
	events, err := h.repo.ListEvents(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type noHistoryClient struct{}

func (n *noHistoryClient) Updates(ctx context.Context) (<-chan source.Message, error) {
	ch := make(chan source.Message)
	close(ch)
	return ch, nil
}

func (n *noHistoryClient) History(ctx context.Context, chatID, afterID int64, pageSize int) ([]source.Message, error) {
	return nil, source.ErrHistoryUnavailable
}

func (n *noHistoryClient) Connected() bool { return false }
