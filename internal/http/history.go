package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"anilibrary/internal/cache"
	"anilibrary/internal/database/history"
	"anilibrary/internal/entities"
)

// HistoryStore defines database operations for watch history management.
type HistoryStore interface {
	AddWatchHistoryEntry(h *entities.WatchHistoryEntry) (uint, error)
	GetWatchHistory(entryID uint, limit, offset int) ([]entities.WatchHistoryEntry, int64, error)
	GetWatchHistoryEntry(id uint) (*entities.WatchHistoryEntry, error)
	UpdateWatchHistoryEntry(id uint, duration *int, timestamp *time.Time) error
	DeleteWatchHistoryEntry(id uint) error
	GetWatchHistoryStats(entryID uint) (*history.HistoryStats, error)
	PruneWatchHistory(entryID uint, opts history.PruneOptions) (int64, error)
}

// HistoryController serves the watch history endpoints.
type HistoryController struct {
	store   HistoryStore
	queries *cache.Store
}

func NewHistoryController(store HistoryStore, queries *cache.Store) *HistoryController {
	return &HistoryController{store: store, queries: queries}
}

// addHistoryRequest is the POST /api/history payload.
type addHistoryRequest struct {
	EntryID       uint       `json:"entry_id" binding:"required"`
	EpisodeNumber int        `json:"episode_number" binding:"required"`
	Duration      int        `json:"duration"`
	Timestamp     *time.Time `json:"timestamp"`
}

// AddEntry records an episode-watching event.
// POST /api/history
func (hc *HistoryController) AddEntry(c *gin.Context) {
	var req addHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	row := &entities.WatchHistoryEntry{
		EntryID:       req.EntryID,
		EpisodeNumber: req.EpisodeNumber,
		Duration:      req.Duration,
	}
	if req.Timestamp != nil {
		row.Timestamp = *req.Timestamp
	}

	id, err := hc.store.AddWatchHistoryEntry(row)
	if err != nil {
		respondStoreError(c, err, "add watch history entry")
		return
	}

	// The write also bumps the owning entry's progress and last-watched.
	hc.queries.InvalidateGroups(cache.GroupLibrary, cache.GroupStats,
		cache.EntryGroup(req.EntryID), cache.HistoryGroup(req.EntryID))
	respondCreated(c, gin.H{"id": id})
}

// ListEntries returns a newest-first page of an entry's history.
// GET /api/history/entry/:entryId?limit=50&offset=0
func (hc *HistoryController) ListEntries(c *gin.Context) {
	entryID, ok := parseIDParam(c, "entryId")
	if !ok {
		return
	}

	limit := parseQueryInt(c, "limit", history.DefaultPageSize)
	offset := parseQueryInt(c, "offset", 0)

	rows, total, err := hc.store.GetWatchHistory(entryID, limit, offset)
	if err != nil {
		respondStoreError(c, err, "get watch history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": rows,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetStats returns aggregate history statistics for one entry.
// GET /api/history/entry/:entryId/stats
func (hc *HistoryController) GetStats(c *gin.Context) {
	entryID, ok := parseIDParam(c, "entryId")
	if !ok {
		return
	}

	key := "history-stats:" + c.Param("entryId")
	value, err := hc.queries.GetOrLoad(key, func() (any, error) {
		return hc.store.GetWatchHistoryStats(entryID)
	}, cache.HistoryGroup(entryID))
	if err != nil {
		respondStoreError(c, err, "get watch history stats")
		return
	}

	c.JSON(http.StatusOK, value.(*history.HistoryStats))
}

// updateHistoryRequest is the PATCH /api/history/rows/:id payload. Only the
// correction fields of the log are mutable.
type updateHistoryRequest struct {
	Duration  *int       `json:"duration"`
	Timestamp *time.Time `json:"timestamp"`
}

// UpdateEntry corrects a history row's duration or timestamp.
// PATCH /api/history/rows/:id
func (hc *HistoryController) UpdateEntry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// Resolve the owning entry first so its cached views can be dropped.
	row, err := hc.store.GetWatchHistoryEntry(id)
	if err != nil {
		respondStoreError(c, err, "update watch history entry")
		return
	}

	if err := hc.store.UpdateWatchHistoryEntry(id, req.Duration, req.Timestamp); err != nil {
		respondStoreError(c, err, "update watch history entry")
		return
	}

	hc.queries.InvalidateGroups(cache.GroupStats,
		cache.EntryGroup(row.EntryID), cache.HistoryGroup(row.EntryID))
	respondSuccess(c, "watch history entry updated")
}

// DeleteEntry removes a single history row.
// DELETE /api/history/rows/:id
func (hc *HistoryController) DeleteEntry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	row, err := hc.store.GetWatchHistoryEntry(id)
	if err != nil {
		respondStoreError(c, err, "delete watch history entry")
		return
	}

	if err := hc.store.DeleteWatchHistoryEntry(id); err != nil {
		respondStoreError(c, err, "delete watch history entry")
		return
	}

	hc.queries.InvalidateGroups(cache.GroupStats,
		cache.EntryGroup(row.EntryID), cache.HistoryGroup(row.EntryID))
	respondSuccess(c, "watch history entry deleted")
}

// pruneRequest is the POST /api/history/entry/:entryId/prune payload.
type pruneRequest struct {
	KeepLastN int        `json:"keep_last_n"`
	OlderThan *time.Time `json:"older_than"`
}

// Prune deletes old history rows for one entry.
// POST /api/history/entry/:entryId/prune
func (hc *HistoryController) Prune(c *gin.Context) {
	entryID, ok := parseIDParam(c, "entryId")
	if !ok {
		return
	}

	var req pruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	deleted, err := hc.store.PruneWatchHistory(entryID, history.PruneOptions{
		KeepLastN: req.KeepLastN,
		OlderThan: req.OlderThan,
	})
	if err != nil {
		respondStoreError(c, err, "prune watch history")
		return
	}

	hc.queries.InvalidateGroups(cache.GroupStats, cache.HistoryGroup(entryID))
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
