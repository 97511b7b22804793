package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"anilibrary/internal/database/history"
)

// HistoryPruner provides the ability to trim watch history logs.
type HistoryPruner interface {
	EntryIDsWithHistory() ([]uint, error)
	PruneWatchHistory(entryID uint, opts history.PruneOptions) (int64, error)
}

// PruneWatchHistoryTask trims the watch history of every library entry
// according to the retention settings. Library entries and their derived
// progress are never touched, only the event log shrinks.
type PruneWatchHistoryTask struct {
	KeepLastN  int `json:"keep_last_n"`
	MaxAgeDays int `json:"max_age_days"`
}

// Config returns the queue configuration for history pruning tasks.
func (t PruneWatchHistoryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_watch_history",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneWatchHistoryProcessor creates a processor function for PruneWatchHistoryTask.
func PruneWatchHistoryProcessor(pruner HistoryPruner) backlite.QueueProcessor[PruneWatchHistoryTask] {
	return func(ctx context.Context, task PruneWatchHistoryTask) error {
		if pruner == nil {
			return fmt.Errorf("history pruner not configured")
		}
		if task.KeepLastN <= 0 && task.MaxAgeDays <= 0 {
			log.Printf("[TASK] Watch history pruning skipped: no retention limits set")
			return nil
		}

		opts := history.PruneOptions{KeepLastN: task.KeepLastN}
		if task.MaxAgeDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -task.MaxAgeDays)
			opts.OlderThan = &cutoff
		}

		entryIDs, err := pruner.EntryIDsWithHistory()
		if err != nil {
			return fmt.Errorf("prune watch history: %w", err)
		}

		var deleted int64
		for _, id := range entryIDs {
			n, err := pruner.PruneWatchHistory(id, opts)
			if err != nil {
				return fmt.Errorf("prune watch history for entry %d: %w", id, err)
			}
			deleted += n
		}

		log.Printf("[TASK] Pruned %d watch history rows across %d entries", deleted, len(entryIDs))
		return nil
	}
}

// NewPruneWatchHistoryQueue creates a backlite queue for history pruning tasks.
func NewPruneWatchHistoryQueue(pruner HistoryPruner) backlite.Queue {
	return backlite.NewQueue(PruneWatchHistoryProcessor(pruner))
}
