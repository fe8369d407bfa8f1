package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-monitor-relay-go/internal/models"
)

const testLease = time.Minute

func TestClaimNewMessage(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 5, MessageID: 42}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimGranted, result)

	entry, err := repo.GetLedgerEntry(ref)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.LedgerStatusPending, entry.Status)
	assert.NotNil(t, entry.ClaimedAt)
}

func TestClaimWhileLeaseLive(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 1, MessageID: 10}

	first, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, first)

	second, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyClaimed, second)
}

func TestClaimAfterSent(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 1, MessageID: 11}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, result)
	require.NoError(t, repo.MarkSent(ref))

	replay, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyHandled, replay)

	entry, err := repo.GetLedgerEntry(ref)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusSent, entry.Status)
	assert.NotNil(t, entry.SentAt)
}

func TestClaimExpiredLeaseIsReclaimable(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 2, MessageID: 20}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, result)

	// Zero lease window: the claim counts as abandoned immediately, as if
	// the owning worker died mid-attempt.
	reclaimed, err := repo.Claim(ref, 0)
	require.NoError(t, err)
	assert.Equal(t, ClaimGranted, reclaimed)
}

func TestClaimAfterRetryableFailure(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 2, MessageID: 21}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, result)

	terminal, err := repo.MarkRetry(ref, "connection reset", 3)
	require.NoError(t, err)
	assert.False(t, terminal)

	// claimed_at was cleared, so another worker can claim right away even
	// inside the lease window.
	next, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimGranted, next)

	entry, err := repo.GetLedgerEntry(ref)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.FailCount)
	assert.Equal(t, "connection reset", entry.LastError)
}

func TestMarkRetryExhaustsBudget(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 3, MessageID: 30}
	maxFailures := 2

	for i := 0; i < maxFailures; i++ {
		result, err := repo.Claim(ref, testLease)
		require.NoError(t, err)
		require.Equal(t, ClaimGranted, result)

		terminal, err := repo.MarkRetry(ref, "timeout", maxFailures)
		require.NoError(t, err)
		require.False(t, terminal)
	}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, result)

	terminal, err := repo.MarkRetry(ref, "timeout", maxFailures)
	require.NoError(t, err)
	assert.True(t, terminal)

	entry, err := repo.GetLedgerEntry(ref)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusFailed, entry.Status)
	assert.Equal(t, maxFailures+1, entry.FailCount)

	// Terminal entries are never handed out again.
	replay, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyHandled, replay)
}

func TestMarkFailedIsTerminal(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 3, MessageID: 31}

	result, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	require.Equal(t, ClaimGranted, result)

	require.NoError(t, repo.MarkFailed(ref, "chat not found"))

	entry, err := repo.GetLedgerEntry(ref)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusFailed, entry.Status)
	assert.Equal(t, "chat not found", entry.LastError)

	replay, err := repo.Claim(ref, testLease)
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyHandled, replay)
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 5, MessageID: 42}

	const workers = 8
	results := make([]ClaimResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Claim(ref, testLease)
		}(i)
	}
	wg.Wait()

	granted := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		switch results[i] {
		case ClaimGranted:
			granted++
		case ClaimAlreadyClaimed:
		default:
			t.Fatalf("unexpected claim result %v", results[i])
		}
	}
	assert.Equal(t, 1, granted, "exactly one concurrent claim must win")
}

func TestHasPendingBefore(t *testing.T) {
	repo := openTestRepo(t)
	ref := models.MessageRef{ChatID: 5, MessageID: 101}

	_, err := repo.Claim(ref, testLease)
	require.NoError(t, err)

	blocked, err := repo.HasPendingBefore(5, 102)
	require.NoError(t, err)
	assert.True(t, blocked)

	// Strictly earlier: the message itself does not block its own position.
	blocked, err = repo.HasPendingBefore(5, 101)
	require.NoError(t, err)
	assert.False(t, blocked)

	// Other chats are independent.
	blocked, err = repo.HasPendingBefore(6, 200)
	require.NoError(t, err)
	assert.False(t, blocked)

	// Terminal entries do not block.
	require.NoError(t, repo.MarkSent(ref))
	blocked, err = repo.HasPendingBefore(5, 102)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGetLedgerEntryMissing(t *testing.T) {
	repo := openTestRepo(t)

	entry, err := repo.GetLedgerEntry(models.MessageRef{ChatID: 9, MessageID: 99})
	require.NoError(t, err)
	assert.Nil(t, entry)
}
