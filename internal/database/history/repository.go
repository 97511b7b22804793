// Package history provides database operations for the watch history log.
//
// History is a time-ordered, append-only record of episode-watching events.
// Writing a history row raises the owning entry's progress to at least the
// watched episode, but deleting or pruning history never lowers it; progress
// is a ceiling owned by the library entry, not recomputed from the log.
//
// # Interface Implementation
//
//	var _ http.HistoryStore = (*Repository)(nil)
//
// # Usage
//
//	repo := history.NewRepository(db)
//	id, err := repo.AddWatchHistoryEntry(&entities.WatchHistoryEntry{EntryID: 1, EpisodeNumber: 3, Duration: 1440})
package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"anilibrary/internal/database"
	"anilibrary/internal/entities"
)

// DefaultPageSize is applied when a history listing does not set a limit.
const DefaultPageSize = 50

// Repository handles all watch history database operations.
type Repository struct {
	db *database.Database
}

// NewRepository creates a new watch history repository.
func NewRepository(db *database.Database) *Repository {
	return &Repository{db: db}
}

// HistoryStats summarizes one entry's watch history.
type HistoryStats struct {
	EpisodesWatched int64      `json:"episodes_watched"` // distinct episodes
	TotalDuration   int64      `json:"total_duration"`   // seconds
	FirstWatched    *time.Time `json:"first_watched,omitempty"`
	LastWatched     *time.Time `json:"last_watched,omitempty"`
}

// PruneOptions selects which rows PruneWatchHistory removes. With neither
// option set the call is a no-op.
type PruneOptions struct {
	KeepLastN int        `json:"keep_last_n,omitempty"`
	OlderThan *time.Time `json:"older_than,omitempty"`
}

// AddWatchHistoryEntry appends a history row and, in the same transaction,
// raises the owning entry's progress to max(current, episode) and stamps its
// last-watched time. Progress stays within the episode cap.
func (r *Repository) AddWatchHistoryEntry(h *entities.WatchHistoryEntry) (uint, error) {
	if h.EpisodeNumber <= 0 {
		return 0, fmt.Errorf("%w: %d", database.ErrInvalidEpisodeNumber, h.EpisodeNumber)
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}

	err := r.db.RunInTransaction(func(tx *gorm.DB) error {
		var entry entities.LibraryEntry
		if err := tx.First(&entry, h.EntryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrEntryNotFound
			}
			return err
		}

		if err := tx.Create(h).Error; err != nil {
			return err
		}

		newProgress := entry.Progress
		if h.EpisodeNumber > newProgress {
			newProgress = h.EpisodeNumber
		}
		if entry.TotalEpisodes > 0 && newProgress > entry.TotalEpisodes {
			newProgress = entry.TotalEpisodes
		}

		updates := map[string]any{
			"last_watched": h.Timestamp,
			"updated_at":   time.Now(),
		}
		if newProgress != entry.Progress {
			updates["progress"] = newProgress
		}
		if entry.Status == entities.StatusWatching && entry.StartDate == nil && newProgress > 0 {
			updates["start_date"] = h.Timestamp
		}
		return tx.Model(&entities.LibraryEntry{}).Where("id = ?", entry.ID).Updates(updates).Error
	})
	if err != nil {
		return 0, database.WrapOp("add watch history entry", err)
	}
	return h.ID, nil
}

// GetWatchHistory returns a newest-first page of an entry's history and the
// total row count.
func (r *Repository) GetWatchHistory(entryID uint, limit, offset int) ([]entities.WatchHistoryEntry, int64, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := r.db.DB.Model(&entities.WatchHistoryEntry{}).
		Where("entry_id = ?", entryID).
		Count(&total).Error
	if err != nil {
		return nil, 0, database.WrapOp("get watch history", err)
	}

	var rows []entities.WatchHistoryEntry
	err = r.db.DB.Where("entry_id = ?", entryID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, database.WrapOp("get watch history", err)
	}
	return rows, total, nil
}

// GetWatchHistoryEntry returns a single history row by its id.
func (r *Repository) GetWatchHistoryEntry(id uint) (*entities.WatchHistoryEntry, error) {
	var row entities.WatchHistoryEntry
	err := r.db.DB.First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrHistoryEntryNotFound
	}
	if err != nil {
		return nil, database.WrapOp("get watch history entry", err)
	}
	return &row, nil
}

// UpdateWatchHistoryEntry corrects a row's duration and/or timestamp, the
// only mutable fields of the otherwise immutable log.
func (r *Repository) UpdateWatchHistoryEntry(id uint, duration *int, timestamp *time.Time) error {
	if duration == nil && timestamp == nil {
		return database.ErrEmptyUpdate
	}

	updates := map[string]any{"updated_at": time.Now()}
	if duration != nil {
		updates["duration"] = *duration
	}
	if timestamp != nil {
		updates["timestamp"] = *timestamp
	}

	result := r.db.DB.Model(&entities.WatchHistoryEntry{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return database.WrapOp("update watch history entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrHistoryEntryNotFound
	}
	return nil
}

// DeleteWatchHistoryEntry removes a single history row.
func (r *Repository) DeleteWatchHistoryEntry(id uint) error {
	result := r.db.DB.Delete(&entities.WatchHistoryEntry{}, id)
	if result.Error != nil {
		return database.WrapOp("delete watch history entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrHistoryEntryNotFound
	}
	return nil
}

// GetWatchHistoryStats aggregates one entry's history.
func (r *Repository) GetWatchHistoryStats(entryID uint) (*HistoryStats, error) {
	stats := &HistoryStats{}

	err := r.db.DB.Raw(`
		SELECT COUNT(DISTINCT episode_number) FROM watch_history WHERE entry_id = ?`, entryID).
		Scan(&stats.EpisodesWatched).Error
	if err != nil {
		return nil, database.WrapOp("get watch history stats", err)
	}

	err = r.db.DB.Raw(`
		SELECT COALESCE(SUM(duration), 0) FROM watch_history WHERE entry_id = ?`, entryID).
		Scan(&stats.TotalDuration).Error
	if err != nil {
		return nil, database.WrapOp("get watch history stats", err)
	}

	// MIN/MAX aggregates lose the column's declared type and come back from
	// the driver as strings, so fetch the boundary rows off the real column.
	if stats.EpisodesWatched > 0 {
		var first, last entities.WatchHistoryEntry
		err = r.db.DB.Where("entry_id = ?", entryID).
			Order("timestamp ASC, id ASC").
			Take(&first).Error
		if err != nil {
			return nil, database.WrapOp("get watch history stats", err)
		}
		err = r.db.DB.Where("entry_id = ?", entryID).
			Order("timestamp DESC, id DESC").
			Take(&last).Error
		if err != nil {
			return nil, database.WrapOp("get watch history stats", err)
		}
		stats.FirstWatched = &first.Timestamp
		stats.LastWatched = &last.Timestamp
	}

	return stats, nil
}

// PruneWatchHistory deletes old rows for one entry. KeepLastN removes every
// row older than the Nth-most-recent row's timestamp; OlderThan removes rows
// before an absolute cutoff. Returns the number of rows deleted; a call with
// neither option set deletes nothing.
func (r *Repository) PruneWatchHistory(entryID uint, opts PruneOptions) (int64, error) {
	if opts.KeepLastN <= 0 && opts.OlderThan == nil {
		return 0, nil
	}

	var deleted int64
	err := r.db.RunInTransaction(func(tx *gorm.DB) error {
		if opts.KeepLastN > 0 {
			var cutoffs []time.Time
			err := tx.Model(&entities.WatchHistoryEntry{}).
				Where("entry_id = ?", entryID).
				Order("timestamp DESC").
				Limit(1).
				Offset(opts.KeepLastN - 1).
				Pluck("timestamp", &cutoffs).Error
			if err != nil {
				return err
			}
			// No Nth-newest row means fewer than N rows exist; nothing to prune.
			if len(cutoffs) == 1 {
				result := tx.Where("entry_id = ? AND timestamp < ?", entryID, cutoffs[0]).
					Delete(&entities.WatchHistoryEntry{})
				if result.Error != nil {
					return result.Error
				}
				deleted += result.RowsAffected
			}
		}

		if opts.OlderThan != nil {
			result := tx.Where("entry_id = ? AND timestamp < ?", entryID, *opts.OlderThan).
				Delete(&entities.WatchHistoryEntry{})
			if result.Error != nil {
				return result.Error
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, database.WrapOp("prune watch history", err)
	}
	return deleted, nil
}

// EntryIDsWithHistory returns the ids of entries that have at least one
// history row. Used by the background retention task.
func (r *Repository) EntryIDsWithHistory() ([]uint, error) {
	var ids []uint
	err := r.db.DB.Model(&entities.WatchHistoryEntry{}).
		Distinct("entry_id").
		Pluck("entry_id", &ids).Error
	if err != nil {
		return nil, database.WrapOp("list entries with history", err)
	}
	return ids, nil
}
