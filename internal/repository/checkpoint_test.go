package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointLazyCreation(t *testing.T) {
	repo := openTestRepo(t)

	cp, err := repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Nil(t, cp)

	moved, err := repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)
	assert.True(t, moved)

	cp, err = repo.GetCheckpoint(7)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(100), cp.LastMessageID)
	assert.NotNil(t, cp.LastMessageDate)
}

func TestCheckpointMonotonicity(t *testing.T) {
	repo := openTestRepo(t)

	moved, err := repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)
	require.True(t, moved)

	// Equal id: rejected
	moved, err = repo.AdvanceCheckpoint(7, 100, time.Now())
	require.NoError(t, err)
	assert.False(t, moved)

	// Smaller id: rejected
	moved, err = repo.AdvanceCheckpoint(7, 50, time.Now())
	require.NoError(t, err)
	assert.False(t, moved)

	cp, err := repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), cp.LastMessageID)

	// Greater id: applied
	moved, err = repo.AdvanceCheckpoint(7, 101, time.Now())
	require.NoError(t, err)
	assert.True(t, moved)

	cp, err = repo.GetCheckpoint(7)
	require.NoError(t, err)
	assert.Equal(t, int64(101), cp.LastMessageID)
}

func TestCheckpointsPerChatAreIndependent(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.AdvanceCheckpoint(1, 10, time.Time{})
	require.NoError(t, err)
	_, err = repo.AdvanceCheckpoint(2, 20, time.Time{})
	require.NoError(t, err)

	cps, err := repo.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, int64(10), cps[0].LastMessageID)
	assert.Equal(t, int64(20), cps[1].LastMessageID)
	// Zero message date stays null
	assert.Nil(t, cps[0].LastMessageDate)
}
