package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addHistoryRowViaAPI(t *testing.T, router *gin.Engine, entryID uint, episode, duration int) uint {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/history", gin.H{
		"entry_id":       entryID,
		"episode_number": episode,
		"duration":       duration,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var response struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.ID
}

type historyStatsResponse struct {
	EpisodesWatched int64 `json:"episodes_watched"`
	TotalDuration   int64 `json:"total_duration"`
}

func getEntryStats(t *testing.T, router *gin.Engine, entryID uint) historyStatsResponse {
	t.Helper()

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/history/entry/%d/stats", entryID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats historyStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	return stats
}

func TestHistoryController_UpdateRefreshesCachedStats(t *testing.T) {
	router, _ := setupTestRouter(t)
	entryID := addEntryViaAPI(t, router, "bebop-1", "Cowboy Bebop")
	rowID := addHistoryRowViaAPI(t, router, entryID, 1, 1440)

	// Prime the per-entry stats cache.
	assert.Equal(t, int64(1440), getEntryStats(t, router, entryID).TotalDuration)

	w := doJSON(t, router, "PATCH", fmt.Sprintf("/api/history/rows/%d", rowID), gin.H{"duration": 900})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The correction must reach subsequent reads, not a stale cached value.
	assert.Equal(t, int64(900), getEntryStats(t, router, entryID).TotalDuration)
}

func TestHistoryController_DeleteRefreshesCachedStats(t *testing.T) {
	router, _ := setupTestRouter(t)
	entryID := addEntryViaAPI(t, router, "bebop-1", "Cowboy Bebop")
	rowID := addHistoryRowViaAPI(t, router, entryID, 1, 1440)

	assert.Equal(t, int64(1), getEntryStats(t, router, entryID).EpisodesWatched)

	w := doJSON(t, router, "DELETE", fmt.Sprintf("/api/history/rows/%d", rowID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stats := getEntryStats(t, router, entryID)
	assert.Zero(t, stats.EpisodesWatched)
	assert.Zero(t, stats.TotalDuration)
}

func TestHistoryController_UpdateMissingRow(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, "PATCH", "/api/history/rows/999", gin.H{"duration": 900})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "DELETE", "/api/history/rows/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
