package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anilibrary/internal/database/history"
)

type fakePruner struct {
	entryIDs []uint
	listErr  error
	pruneErr error

	calls []history.PruneOptions
}

func (f *fakePruner) EntryIDsWithHistory() ([]uint, error) {
	return f.entryIDs, f.listErr
}

func (f *fakePruner) PruneWatchHistory(entryID uint, opts history.PruneOptions) (int64, error) {
	f.calls = append(f.calls, opts)
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	return 2, nil
}

func TestPruneWatchHistoryProcessor(t *testing.T) {
	pruner := &fakePruner{entryIDs: []uint{1, 2, 3}}
	processor := PruneWatchHistoryProcessor(pruner)

	err := processor(context.Background(), PruneWatchHistoryTask{KeepLastN: 8, MaxAgeDays: 30})
	require.NoError(t, err)

	require.Len(t, pruner.calls, 3)
	for _, opts := range pruner.calls {
		assert.Equal(t, 8, opts.KeepLastN)
		require.NotNil(t, opts.OlderThan)
	}
}

func TestPruneWatchHistoryProcessor_NoLimitsSkips(t *testing.T) {
	pruner := &fakePruner{entryIDs: []uint{1}}
	processor := PruneWatchHistoryProcessor(pruner)

	err := processor(context.Background(), PruneWatchHistoryTask{})
	require.NoError(t, err)
	assert.Empty(t, pruner.calls, "no retention limits means no prune calls")
}

func TestPruneWatchHistoryProcessor_KeepLastNOnly(t *testing.T) {
	pruner := &fakePruner{entryIDs: []uint{7}}
	processor := PruneWatchHistoryProcessor(pruner)

	err := processor(context.Background(), PruneWatchHistoryTask{KeepLastN: 5})
	require.NoError(t, err)

	require.Len(t, pruner.calls, 1)
	assert.Equal(t, 5, pruner.calls[0].KeepLastN)
	assert.Nil(t, pruner.calls[0].OlderThan)
}

func TestPruneWatchHistoryProcessor_Errors(t *testing.T) {
	t.Run("nil pruner", func(t *testing.T) {
		processor := PruneWatchHistoryProcessor(nil)
		err := processor(context.Background(), PruneWatchHistoryTask{KeepLastN: 1})
		assert.Error(t, err)
	})

	t.Run("listing failure", func(t *testing.T) {
		boom := errors.New("boom")
		processor := PruneWatchHistoryProcessor(&fakePruner{listErr: boom})
		err := processor(context.Background(), PruneWatchHistoryTask{KeepLastN: 1})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("prune failure", func(t *testing.T) {
		boom := errors.New("boom")
		processor := PruneWatchHistoryProcessor(&fakePruner{entryIDs: []uint{1}, pruneErr: boom})
		err := processor(context.Background(), PruneWatchHistoryTask{KeepLastN: 1})
		assert.ErrorIs(t, err, boom)
	})
}

func TestPruneWatchHistoryTaskConfig(t *testing.T) {
	cfg := PruneWatchHistoryTask{}.Config()
	assert.Equal(t, "prune_watch_history", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
}
