// Package library provides database operations for the user's anime library.
//
// This package implements the LibraryStore interface defined in
// internal/http/library.go.
//
// # Interface Implementation
//
//	var _ http.LibraryStore = (*Repository)(nil)
//
// # Usage
//
//	repo := library.NewRepository(db)
//	id, err := repo.AddToLibrary(&entities.LibraryEntry{AnimeID: "aot-1", Title: "Attack on Titan"})
package library

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"anilibrary/internal/database"
	"anilibrary/internal/database/collections"
	"anilibrary/internal/entities"
)

// DefaultPageSize is applied when a listing request does not set one.
const DefaultPageSize = 20

// CollectionAll is the sentinel collection name that lists the whole library
// without joining the membership table.
const CollectionAll = "all"

// sortColumns whitelists the user-selectable sort fields.
var sortColumns = map[string]string{
	"title":      "title",
	"updated_at": "updated_at",
	"progress":   "progress",
	"rating":     "rating",
	"created_at": "created_at",
}

// Repository handles all library entry database operations.
type Repository struct {
	db *database.Database
}

// NewRepository creates a new library repository.
func NewRepository(db *database.Database) *Repository {
	return &Repository{db: db}
}

// EntryPatch enumerates the fields UpdateLibraryEntry may change. Nil fields
// are left untouched; ClearRating removes the rating entirely.
type EntryPatch struct {
	Title         *string
	Image         *string
	Status        *entities.WatchStatus
	Progress      *int
	TotalEpisodes *int
	Rating        *int
	ClearRating   bool
	Notes         *string
	LastWatched   *time.Time
	StartDate     *time.Time
	CompletedDate *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.Title == nil && p.Image == nil && p.Status == nil &&
		p.Progress == nil && p.TotalEpisodes == nil &&
		p.Rating == nil && !p.ClearRating && p.Notes == nil &&
		p.LastWatched == nil && p.StartDate == nil && p.CompletedDate == nil
}

// ListOptions controls pagination, ordering and search for collection
// listings. Pages are 1-based.
type ListOptions struct {
	Page      int
	PageSize  int
	SortBy    string // title, updated_at, progress, rating, created_at
	SortOrder string // asc or desc
	Search    string // case-insensitive substring match on title
}

// CollectionPage is one page of library entries.
type CollectionPage struct {
	Entries     []entities.LibraryEntry `json:"entries"`
	Total       int64                   `json:"total"`
	HasNextPage bool                    `json:"has_next_page"`
}

// EntryView is the reduced projection used by the UI for point lookups.
// Nullable columns are coerced: a missing rating reads as 0, missing text
// fields as empty strings.
type EntryView struct {
	ID            uint                 `json:"id"`
	AnimeID       string               `json:"anime_id"`
	Title         string               `json:"title"`
	Image         string               `json:"image"`
	Status        entities.WatchStatus `json:"status"`
	Progress      int                  `json:"progress"`
	TotalEpisodes int                  `json:"total_episodes"`
	Rating        int                  `json:"rating"`
	Notes         string               `json:"notes"`
	LastWatched   *time.Time           `json:"last_watched,omitempty"`
	StartDate     *time.Time           `json:"start_date,omitempty"`
	CompletedDate *time.Time           `json:"completed_date,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// LibraryStatistics is the read-side aggregate over entries and history.
type LibraryStatistics struct {
	TotalAnime      int64                          `json:"total_anime"`
	StatusCounts    map[entities.WatchStatus]int64 `json:"status_counts"`
	EpisodesWatched int64                          `json:"episodes_watched"`
	TotalWatchTime  int64                          `json:"total_watch_time"` // seconds
	AverageRating   float64                        `json:"average_rating"`
	CompletionRate  float64                        `json:"completion_rate"` // percent
}

// AddToLibrary validates and inserts a new entry together with its initial
// status-collection membership. Returns the generated id.
func (r *Repository) AddToLibrary(entry *entities.LibraryEntry) (uint, error) {
	if entry.AnimeID == "" || entry.Title == "" {
		return 0, database.ErrMissingFields
	}
	if entry.Status == "" {
		entry.Status = entities.StatusPlanToWatch
	}
	if !entry.Status.Valid() {
		return 0, fmt.Errorf("%w: %q", database.ErrInvalidStatus, entry.Status)
	}
	if entry.Progress < 0 || (entry.TotalEpisodes > 0 && entry.Progress > entry.TotalEpisodes) {
		return 0, fmt.Errorf("%w: %d", database.ErrInvalidProgress, entry.Progress)
	}
	if entry.TotalEpisodes < 0 {
		return 0, database.ErrNegativeTotalEpisodes
	}
	if entry.Rating != nil && (*entry.Rating < 1 || *entry.Rating > 10) {
		return 0, database.ErrInvalidRating
	}

	if entry.Status == entities.StatusWatching && entry.StartDate == nil && entry.Progress > 0 {
		now := time.Now()
		entry.StartDate = &now
	}

	err := r.db.RunInTransaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.LibraryEntry{}).Where("anime_id = ?", entry.AnimeID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return database.ErrDuplicateEntry
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return collections.SetStatusMembership(tx, entry.ID, entry.Status)
	})
	if err != nil {
		return 0, database.WrapOp("add to library", err)
	}
	return entry.ID, nil
}

// UpdateLibraryEntry applies a typed patch to an entry. An empty patch is
// rejected before the database is touched. When the patch changes the
// status, the default-collection membership moves in the same transaction,
// and first transitions into watching/completed stamp StartDate and
// CompletedDate unless the patch sets them explicitly.
func (r *Repository) UpdateLibraryEntry(id uint, patch EntryPatch) error {
	if patch.IsEmpty() {
		return database.ErrEmptyUpdate
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: %q", database.ErrInvalidStatus, *patch.Status)
	}
	if patch.Rating != nil && (*patch.Rating < 1 || *patch.Rating > 10) {
		return database.ErrInvalidRating
	}
	if patch.TotalEpisodes != nil && *patch.TotalEpisodes < 0 {
		return database.ErrNegativeTotalEpisodes
	}

	err := r.db.RunInTransaction(func(tx *gorm.DB) error {
		var entry entities.LibraryEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrEntryNotFound
			}
			return err
		}

		now := time.Now()
		updates := map[string]any{"updated_at": now}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Image != nil {
			updates["image"] = *patch.Image
		}
		if patch.Progress != nil {
			total := entry.TotalEpisodes
			if patch.TotalEpisodes != nil {
				total = *patch.TotalEpisodes
			}
			if *patch.Progress < 0 || (total > 0 && *patch.Progress > total) {
				return fmt.Errorf("%w: %d", database.ErrInvalidProgress, *patch.Progress)
			}
			updates["progress"] = *patch.Progress
		}
		if patch.TotalEpisodes != nil {
			updates["total_episodes"] = *patch.TotalEpisodes
		}
		if patch.Rating != nil {
			updates["rating"] = *patch.Rating
		} else if patch.ClearRating {
			updates["rating"] = nil
		}
		if patch.Notes != nil {
			updates["notes"] = *patch.Notes
		}
		if patch.LastWatched != nil {
			updates["last_watched"] = *patch.LastWatched
		}
		if patch.StartDate != nil {
			updates["start_date"] = *patch.StartDate
		}
		if patch.CompletedDate != nil {
			updates["completed_date"] = *patch.CompletedDate
		}

		statusChanged := patch.Status != nil && *patch.Status != entry.Status
		if statusChanged {
			updates["status"] = *patch.Status
			if *patch.Status == entities.StatusCompleted && entry.CompletedDate == nil && patch.CompletedDate == nil {
				updates["completed_date"] = now
			}
			if *patch.Status == entities.StatusWatching && entry.StartDate == nil && patch.StartDate == nil {
				updates["start_date"] = now
			}
		}

		if err := tx.Model(&entities.LibraryEntry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if statusChanged {
			return collections.SetStatusMembership(tx, id, *patch.Status)
		}
		return nil
	})
	return database.WrapOp("update library entry", err)
}

// RemoveFromLibrary deletes an entry together with its watch history and
// collection memberships, in that order, so nothing is orphaned.
func (r *Repository) RemoveFromLibrary(id uint) error {
	err := r.db.RunInTransaction(func(tx *gorm.DB) error {
		var entry entities.LibraryEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrEntryNotFound
			}
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&entities.WatchHistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&entities.EntryCollection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.LibraryEntry{}, id).Error
	})
	return database.WrapOp("remove from library", err)
}

// GetCollectionEntries returns one page of entries for the named collection.
// The "all" sentinel lists the entire library.
func (r *Repository) GetCollectionEntries(collection string, opts ListOptions) (*CollectionPage, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset := (page - 1) * pageSize

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "updated_at"
	}
	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}

	query := r.db.DB.Model(&entities.LibraryEntry{})
	if collection != CollectionAll {
		var target entities.Collection
		err := r.db.DB.Where("name = ?", collection).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrCollectionNotFound
		}
		if err != nil {
			return nil, database.WrapOp("get collection entries", err)
		}
		query = query.
			Joins("JOIN entry_collections ec ON ec.entry_id = library_entries.id").
			Where("ec.collection_id = ?", target.ID)
	}
	if opts.Search != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+opts.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, database.WrapOp("count collection entries", err)
	}

	var entries []entities.LibraryEntry
	err := query.
		Order(fmt.Sprintf("library_entries.%s %s", column, order)).
		Limit(pageSize).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, database.WrapOp("get collection entries", err)
	}

	return &CollectionPage{
		Entries:     entries,
		Total:       total,
		HasNextPage: total > int64(offset+pageSize),
	}, nil
}

// GetLibraryStatistics aggregates per-status counts, watch time, distinct
// episodes watched and average rating. Entries without history still count.
func (r *Repository) GetLibraryStatistics() (*LibraryStatistics, error) {
	stats := &LibraryStatistics{
		StatusCounts: make(map[entities.WatchStatus]int64, len(entities.DefaultStatuses)),
	}
	for _, status := range entities.DefaultStatuses {
		stats.StatusCounts[status] = 0
	}

	type statusCount struct {
		Name  string
		Count int64
	}
	var counts []statusCount
	err := r.db.DB.Raw(`
		SELECT c.name AS name, COUNT(ec.entry_id) AS count
		FROM collections c
		LEFT JOIN entry_collections ec ON ec.collection_id = c.id
		WHERE c.is_default = ?
		GROUP BY c.name`, true).Scan(&counts).Error
	if err != nil {
		return nil, database.WrapOp("get library statistics", err)
	}
	for _, sc := range counts {
		stats.StatusCounts[entities.WatchStatus(sc.Name)] = sc.Count
		stats.TotalAnime += sc.Count
	}

	err = r.db.DB.Raw(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT entry_id, episode_number FROM watch_history
		)`).Scan(&stats.EpisodesWatched).Error
	if err != nil {
		return nil, database.WrapOp("get library statistics", err)
	}

	err = r.db.DB.Raw(`SELECT COALESCE(SUM(duration), 0) FROM watch_history`).
		Scan(&stats.TotalWatchTime).Error
	if err != nil {
		return nil, database.WrapOp("get library statistics", err)
	}

	err = r.db.DB.Raw(`SELECT COALESCE(AVG(rating), 0) FROM library_entries WHERE rating IS NOT NULL`).
		Scan(&stats.AverageRating).Error
	if err != nil {
		return nil, database.WrapOp("get library statistics", err)
	}

	if stats.TotalAnime > 0 {
		completed := stats.StatusCounts[entities.StatusCompleted]
		stats.CompletionRate = float64(completed) / float64(stats.TotalAnime) * 100
	}

	return stats, nil
}

// GetLibraryEntry returns the reduced UI projection for an anime, or
// (nil, nil) when the anime is not in the library.
func (r *Repository) GetLibraryEntry(animeID string) (*EntryView, error) {
	entry, err := r.GetLibraryEntryByAnimeID(animeID)
	if err != nil || entry == nil {
		return nil, err
	}

	view := &EntryView{
		ID:            entry.ID,
		AnimeID:       entry.AnimeID,
		Title:         entry.Title,
		Image:         entry.Image,
		Status:        entry.Status,
		Progress:      entry.Progress,
		TotalEpisodes: entry.TotalEpisodes,
		Notes:         entry.Notes,
		LastWatched:   entry.LastWatched,
		StartDate:     entry.StartDate,
		CompletedDate: entry.CompletedDate,
		UpdatedAt:     entry.UpdatedAt,
	}
	if entry.Rating != nil {
		view.Rating = *entry.Rating
	}
	return view, nil
}

// GetLibraryEntryByAnimeID returns the full row, or (nil, nil) when absent.
func (r *Repository) GetLibraryEntryByAnimeID(animeID string) (*entities.LibraryEntry, error) {
	var entry entities.LibraryEntry
	err := r.db.DB.Where("anime_id = ?", animeID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapOp("get library entry", err)
	}
	return &entry, nil
}

// GetLibraryEntryByID returns the full row by primary key.
func (r *Repository) GetLibraryEntryByID(id uint) (*entities.LibraryEntry, error) {
	var entry entities.LibraryEntry
	err := r.db.DB.First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrEntryNotFound
	}
	if err != nil {
		return nil, database.WrapOp("get library entry", err)
	}
	return &entry, nil
}
