package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-monitor-relay-go/internal/models"
)

func TestCleanupDeletesByAge(t *testing.T) {
	repo := openTestRepo(t)
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)

	// One stale and one fresh row per table; CreatedAt is honored when set.
	require.NoError(t, repo.db.Create(&models.EventLog{
		Level: "info", Status: "success", Message: "old", CreatedAt: old,
	}).Error)
	require.NoError(t, repo.AppendEvent(EventLevelInfo, "success", "fresh"))

	require.NoError(t, repo.db.Create(&models.LedgerEntry{
		SourceChatID: 1, SourceMessageID: 1, Status: models.LedgerStatusSent, CreatedAt: old,
	}).Error)
	require.NoError(t, repo.db.Create(&models.LedgerEntry{
		SourceChatID: 1, SourceMessageID: 2, Status: models.LedgerStatusSent,
	}).Error)

	result, err := repo.Cleanup(7, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.EventLogs)
	assert.Equal(t, int64(1), result.ForwardedMessages)

	events, err := repo.ListEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Message)

	entry, err := repo.GetLedgerEntry(models.MessageRef{ChatID: 1, MessageID: 2})
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestCleanupIgnoresStatus(t *testing.T) {
	repo := openTestRepo(t)
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)

	for i, status := range []string{models.LedgerStatusPending, models.LedgerStatusSent, models.LedgerStatusFailed} {
		require.NoError(t, repo.db.Create(&models.LedgerEntry{
			SourceChatID: 2, SourceMessageID: int64(i + 1), Status: status, CreatedAt: old,
		}).Error)
	}

	result, err := repo.Cleanup(7, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.ForwardedMessages)
}

func TestCleanupClampsDays(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.AppendEvent(EventLevelInfo, "success", "fresh"))

	// Zero and negative ages clamp to one day; fresh rows survive.
	result, err := repo.Cleanup(0, -1)
	require.NoError(t, err)
	assert.Zero(t, result.EventLogs)
	assert.Zero(t, result.ForwardedMessages)
}
