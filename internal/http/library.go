package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"anilibrary/internal/cache"
	"anilibrary/internal/database/library"
	"anilibrary/internal/database/progress"
	"anilibrary/internal/entities"
)

// LibraryStore defines database operations for library management.
type LibraryStore interface {
	AddToLibrary(entry *entities.LibraryEntry) (uint, error)
	UpdateLibraryEntry(id uint, patch library.EntryPatch) error
	RemoveFromLibrary(id uint) error
	GetCollectionEntries(collection string, opts library.ListOptions) (*library.CollectionPage, error)
	GetLibraryStatistics() (*library.LibraryStatistics, error)
	GetLibraryEntry(animeID string) (*library.EntryView, error)
	GetLibraryEntryByID(id uint) (*entities.LibraryEntry, error)
}

// ProgressUpdater defines the progress engine operations.
type ProgressUpdater interface {
	UpdateProgress(req progress.UpdateRequest) error
	BatchUpdateProgress(updates []progress.UpdateRequest) (int, error)
	UpdateTotalEpisodes(id uint, totalEpisodes int) error
}

// LibraryController serves library CRUD, listing, statistics and progress
// endpoints. Reads are memoized in the query cache; mutations run through
// the speculative apply/compensate protocol and invalidate the affected
// groups on success.
type LibraryController struct {
	store    LibraryStore
	progress ProgressUpdater
	queries  *cache.Store
	views    *cache.ViewCache[library.EntryView]
}

func NewLibraryController(store LibraryStore, updater ProgressUpdater, queries *cache.Store, views *cache.ViewCache[library.EntryView]) *LibraryController {
	return &LibraryController{store: store, progress: updater, queries: queries, views: views}
}

// addEntryRequest is the POST /api/library payload.
type addEntryRequest struct {
	AnimeID       string               `json:"anime_id" binding:"required"`
	Title         string               `json:"title" binding:"required"`
	Image         string               `json:"image"`
	Status        entities.WatchStatus `json:"status"`
	Progress      int                  `json:"progress"`
	TotalEpisodes int                  `json:"total_episodes"`
	Rating        *int                 `json:"rating"`
	Notes         string               `json:"notes"`
}

// updateEntryRequest is the PATCH /api/library/entries/:id payload. Absent
// fields are left untouched.
type updateEntryRequest struct {
	Title         *string               `json:"title"`
	Image         *string               `json:"image"`
	Status        *entities.WatchStatus `json:"status"`
	Progress      *int                  `json:"progress"`
	TotalEpisodes *int                  `json:"total_episodes"`
	Rating        *int                  `json:"rating"`
	ClearRating   bool                  `json:"clear_rating"`
	Notes         *string               `json:"notes"`
}

// AddEntry adds an anime to the library.
// POST /api/library
func (lc *LibraryController) AddEntry(c *gin.Context) {
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	entry := &entities.LibraryEntry{
		AnimeID:       req.AnimeID,
		Title:         req.Title,
		Image:         req.Image,
		Status:        req.Status,
		Progress:      req.Progress,
		TotalEpisodes: req.TotalEpisodes,
		Rating:        req.Rating,
		Notes:         req.Notes,
	}

	id, err := lc.store.AddToLibrary(entry)
	if err != nil {
		respondStoreError(c, err, "add to library")
		return
	}

	lc.queries.InvalidateGroups(cache.GroupLibrary, cache.GroupStats)
	respondCreated(c, gin.H{"id": id, "entry": entry})
}

// ListEntries returns a page of a collection's entries.
// GET /api/library?collection=watching&page=1&page_size=20&sort_by=title&sort_order=asc&search=
func (lc *LibraryController) ListEntries(c *gin.Context) {
	collection := c.DefaultQuery("collection", library.CollectionAll)
	opts := library.ListOptions{
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", library.DefaultPageSize),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Search:    c.Query("search"),
	}

	key := fmt.Sprintf("library:%s:p%d:n%d:%s:%s:q=%s",
		collection, opts.Page, opts.PageSize, opts.SortBy, opts.SortOrder, opts.Search)
	value, err := lc.queries.GetOrLoad(key, func() (any, error) {
		return lc.store.GetCollectionEntries(collection, opts)
	}, cache.GroupLibrary)
	if err != nil {
		respondStoreError(c, err, "list library entries")
		return
	}

	c.JSON(http.StatusOK, value.(*library.CollectionPage))
}

// GetStatistics returns the aggregate library statistics.
// GET /api/statistics
func (lc *LibraryController) GetStatistics(c *gin.Context) {
	value, err := lc.queries.GetOrLoad("statistics", func() (any, error) {
		return lc.store.GetLibraryStatistics()
	}, cache.GroupStats)
	if err != nil {
		respondStoreError(c, err, "get library statistics")
		return
	}
	c.JSON(http.StatusOK, value.(*library.LibraryStatistics))
}

// GetEntry returns the reduced entry view for an anime.
// GET /api/library/anime/:animeId
func (lc *LibraryController) GetEntry(c *gin.Context) {
	animeID := c.Param("animeId")

	if view, ok := lc.views.Get(animeID); ok {
		c.JSON(http.StatusOK, view)
		return
	}

	view, err := lc.store.GetLibraryEntry(animeID)
	if err != nil {
		respondStoreError(c, err, "get library entry")
		return
	}
	if view == nil {
		respondNotFound(c, "library entry")
		return
	}

	lc.views.Set(animeID, *view)
	c.JSON(http.StatusOK, view)
}

// UpdateEntry applies a partial update to an entry.
// PATCH /api/library/entries/:id
func (lc *LibraryController) UpdateEntry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	patch := library.EntryPatch{
		Title:         req.Title,
		Image:         req.Image,
		Status:        req.Status,
		Progress:      req.Progress,
		TotalEpisodes: req.TotalEpisodes,
		Rating:        req.Rating,
		ClearRating:   req.ClearRating,
		Notes:         req.Notes,
	}

	entry, err := lc.store.GetLibraryEntryByID(id)
	if err != nil {
		respondStoreError(c, err, "update library entry")
		return
	}

	if err := lc.store.UpdateLibraryEntry(id, patch); err != nil {
		respondStoreError(c, err, "update library entry")
		return
	}

	lc.queries.InvalidateGroups(cache.GroupLibrary, cache.GroupStats, cache.EntryGroup(id))
	lc.views.Delete(entry.AnimeID)
	respondSuccess(c, "library entry updated")
}

// RemoveEntry removes an anime from the library along with its history and
// collection memberships.
// DELETE /api/library/entries/:id
func (lc *LibraryController) RemoveEntry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := lc.store.GetLibraryEntryByID(id)
	if err != nil {
		respondStoreError(c, err, "remove from library")
		return
	}

	if err := lc.store.RemoveFromLibrary(id); err != nil {
		respondStoreError(c, err, "remove from library")
		return
	}

	lc.queries.InvalidateGroups(cache.GroupLibrary, cache.GroupStats,
		cache.EntryGroup(id), cache.HistoryGroup(id))
	lc.views.Delete(entry.AnimeID)
	respondSuccess(c, "library entry removed")
}

// UpdateProgress sets an entry's progress, optionally deriving the status.
// PUT /api/library/entries/:id/progress
func (lc *LibraryController) UpdateProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req progress.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req.ID = id

	entry, err := lc.store.GetLibraryEntryByID(id)
	if err != nil {
		respondStoreError(c, err, "update progress")
		return
	}

	// Speculative view update: the UI sees the new progress immediately and
	// gets the previous view back verbatim if the write fails.
	prev, hadPrev := lc.views.Get(entry.AnimeID)
	spec := cache.MutationSpec{
		Apply: func() {
			if !hadPrev {
				return
			}
			next := prev
			next.Progress = req.NewProgress
			if req.UpdateLastWatched {
				now := time.Now()
				next.LastWatched = &now
			}
			lc.views.Set(entry.AnimeID, next)
		},
		Compensate: func() {
			if hadPrev {
				lc.views.Set(entry.AnimeID, prev)
			} else {
				lc.views.Delete(entry.AnimeID)
			}
		},
		Invalidates: []string{cache.GroupLibrary, cache.GroupStats, cache.EntryGroup(id)},
	}

	err = lc.queries.Mutate(spec, func() error {
		return lc.progress.UpdateProgress(req)
	})
	if err != nil {
		respondStoreError(c, err, "update progress")
		return
	}

	// The speculative view was only a guess; recompute on next read.
	lc.views.Delete(entry.AnimeID)
	respondSuccess(c, "progress updated")
}

// BatchUpdateProgress applies several progress updates at once. Invalid
// items are skipped, not fatal.
// POST /api/library/progress/batch
func (lc *LibraryController) BatchUpdateProgress(c *gin.Context) {
	var updates []progress.UpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	applied, err := lc.progress.BatchUpdateProgress(updates)
	if err != nil {
		respondStoreError(c, err, "batch update progress")
		return
	}

	groups := []string{cache.GroupLibrary, cache.GroupStats}
	for _, u := range updates {
		groups = append(groups, cache.EntryGroup(u.ID))
	}
	lc.queries.InvalidateGroups(groups...)
	lc.views.Purge()

	c.JSON(http.StatusOK, gin.H{"applied": applied, "requested": len(updates)})
}

// updateEpisodesRequest is the PUT /api/library/entries/:id/episodes payload.
type updateEpisodesRequest struct {
	TotalEpisodes int `json:"total_episodes"`
}

// UpdateTotalEpisodes corrects an entry's episode cap, letting the status
// machine catch up when progress already meets it.
// PUT /api/library/entries/:id/episodes
func (lc *LibraryController) UpdateTotalEpisodes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateEpisodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	entry, err := lc.store.GetLibraryEntryByID(id)
	if err != nil {
		respondStoreError(c, err, "update total episodes")
		return
	}

	if err := lc.progress.UpdateTotalEpisodes(id, req.TotalEpisodes); err != nil {
		respondStoreError(c, err, "update total episodes")
		return
	}

	lc.queries.InvalidateGroups(cache.GroupLibrary, cache.GroupStats, cache.EntryGroup(id))
	lc.views.Delete(entry.AnimeID)
	respondSuccess(c, "total episodes updated")
}
