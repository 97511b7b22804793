// Package progress implements the watch-status derivation rules and the
// progress update entry points built on them.
//
// Statuses are derived, not chosen: a progress update never resurrects a
// completed or dropped entry. Manual status changes go through the library
// repository's update operation instead.
//
// # Usage
//
//	engine := progress.NewEngine(db)
//	err := engine.UpdateProgress(progress.UpdateRequest{ID: id, NewProgress: 5, AutoUpdateStatus: true})
package progress

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"anilibrary/internal/database"
	"anilibrary/internal/database/collections"
	"anilibrary/internal/entities"
)

// Engine applies progress updates and the derived status transitions.
type Engine struct {
	db *database.Database
}

// NewEngine creates a new progress engine.
func NewEngine(db *database.Database) *Engine {
	return &Engine{db: db}
}

// DetermineStatus computes the derived status for a progress value.
// Completed and dropped are sticky: once reached, only a manual edit leaves
// them. Otherwise reaching the episode cap completes the entry, any positive
// progress means watching, and zero progress leaves the status alone.
func DetermineStatus(newProgress int, current entities.WatchStatus, totalEpisodes int) entities.WatchStatus {
	switch {
	case current == entities.StatusCompleted:
		return current
	case current == entities.StatusDropped:
		return current
	case totalEpisodes > 0 && newProgress >= totalEpisodes:
		return entities.StatusCompleted
	case newProgress > 0:
		return entities.StatusWatching
	default:
		return current
	}
}

// UpdateRequest describes a single progress update.
type UpdateRequest struct {
	ID                uint `json:"id"`
	NewProgress       int  `json:"new_progress"`
	AutoUpdateStatus  bool `json:"auto_update_status"`
	UpdateLastWatched bool `json:"update_last_watched"`
}

// UpdateProgress validates and persists one progress update in a single
// transaction, including the status-collection membership move when the
// derived status changes.
func (e *Engine) UpdateProgress(req UpdateRequest) error {
	err := e.db.RunInTransaction(func(tx *gorm.DB) error {
		return applyUpdate(tx, req, time.Now())
	})
	return database.WrapOp("update progress", err)
}

// BatchUpdateProgress applies updates inside one transaction. Items that
// fail validation (missing entry, out-of-bounds progress) are skipped so one
// bad id does not block the rest; storage failures still abort and roll back
// the whole batch. Returns the number of updates applied.
func (e *Engine) BatchUpdateProgress(updates []UpdateRequest) (int, error) {
	applied := 0
	err := e.db.RunInTransaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, req := range updates {
			if err := applyUpdate(tx, req, now); err != nil {
				if database.IsValidationError(err) {
					log.Printf("Batch progress update: skipping entry %d: %v", req.ID, err)
					continue
				}
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, database.WrapOp("batch update progress", err)
	}
	return applied, nil
}

// UpdateTotalEpisodes changes an entry's episode cap. When current progress
// meets or exceeds the new positive cap, the progress update is re-run so
// the status machine can retroactively complete the entry; progress above
// the new cap is clamped down to it.
func (e *Engine) UpdateTotalEpisodes(id uint, totalEpisodes int) error {
	if totalEpisodes < 0 {
		return database.ErrNegativeTotalEpisodes
	}

	err := e.db.RunInTransaction(func(tx *gorm.DB) error {
		var entry entities.LibraryEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrEntryNotFound
			}
			return err
		}

		updates := map[string]any{
			"total_episodes": totalEpisodes,
			"updated_at":     time.Now(),
		}
		if err := tx.Model(&entities.LibraryEntry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if totalEpisodes > 0 && entry.Progress >= totalEpisodes {
			newProgress := entry.Progress
			if newProgress > totalEpisodes {
				newProgress = totalEpisodes
			}
			return applyUpdate(tx, UpdateRequest{
				ID:               id,
				NewProgress:      newProgress,
				AutoUpdateStatus: true,
			}, time.Now())
		}
		return nil
	})
	return database.WrapOp("update total episodes", err)
}

// applyUpdate runs one validated progress update against the live
// transaction. Shared by the single, batch and total-episode entry points so
// they cannot drift apart.
func applyUpdate(tx *gorm.DB, req UpdateRequest, now time.Time) error {
	var entry entities.LibraryEntry
	if err := tx.First(&entry, req.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ErrEntryNotFound
		}
		return err
	}

	if req.NewProgress < 0 || (entry.TotalEpisodes > 0 && req.NewProgress > entry.TotalEpisodes) {
		return fmt.Errorf("%w: %d", database.ErrInvalidProgress, req.NewProgress)
	}

	updates := map[string]any{
		"progress":   req.NewProgress,
		"updated_at": now,
	}

	status := entry.Status
	if req.AutoUpdateStatus {
		status = DetermineStatus(req.NewProgress, entry.Status, entry.TotalEpisodes)
		if status != entry.Status {
			updates["status"] = status
			if status == entities.StatusCompleted && entry.CompletedDate == nil {
				updates["completed_date"] = now
			}
		}
	}
	// An entry may already carry the watching status before its first
	// positive progress; the start stamp tracks progress turning positive,
	// not the status transition.
	if status == entities.StatusWatching && entry.StartDate == nil && req.NewProgress > 0 {
		updates["start_date"] = now
	}
	if req.UpdateLastWatched {
		updates["last_watched"] = now
	}

	if err := tx.Model(&entities.LibraryEntry{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
		return err
	}
	if status != entry.Status {
		return collections.SetStatusMembership(tx, entry.ID, status)
	}
	return nil
}
