package progress

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anilibrary/internal/database"
	"anilibrary/internal/database/library"
	"anilibrary/internal/entities"
)

func setupTestDB(t *testing.T) (*database.Database, *library.Repository, *Engine) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db, library.NewRepository(db), NewEngine(db)
}

func addTestEntry(t *testing.T, repo *library.Repository, entry entities.LibraryEntry) uint {
	id, err := repo.AddToLibrary(&entry)
	require.NoError(t, err)
	return id
}

func statusMembership(t *testing.T, db *database.Database, entryID uint) string {
	var names []string
	err := db.DB.Model(&entities.EntryCollection{}).
		Joins("JOIN collections c ON c.id = entry_collections.collection_id").
		Where("entry_collections.entry_id = ? AND c.is_default = ?", entryID, true).
		Pluck("c.name", &names).Error
	require.NoError(t, err)
	require.Len(t, names, 1, "entry must belong to exactly one status collection")
	return names[0]
}

func TestDetermineStatus(t *testing.T) {
	tests := []struct {
		name     string
		progress int
		current  entities.WatchStatus
		total    int
		want     entities.WatchStatus
	}{
		{"completed is sticky", 3, entities.StatusCompleted, 12, entities.StatusCompleted},
		{"completed sticky even at zero", 0, entities.StatusCompleted, 12, entities.StatusCompleted},
		{"dropped is sticky", 5, entities.StatusDropped, 12, entities.StatusDropped},
		{"reaching the cap completes", 12, entities.StatusWatching, 12, entities.StatusCompleted},
		{"exceeding the cap completes", 13, entities.StatusWatching, 12, entities.StatusCompleted},
		{"cap ignored when unknown", 12, entities.StatusWatching, 0, entities.StatusWatching},
		{"positive progress means watching", 1, entities.StatusPlanToWatch, 12, entities.StatusWatching},
		{"positive progress from on hold", 6, entities.StatusOnHold, 12, entities.StatusWatching},
		{"zero progress keeps current", 0, entities.StatusOnHold, 12, entities.StatusOnHold},
		{"zero progress keeps plan to watch", 0, entities.StatusPlanToWatch, 12, entities.StatusPlanToWatch},
		{"final episode of unknown-length show stays watching", 500, entities.StatusWatching, 0, entities.StatusWatching},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineStatus(tt.progress, tt.current, tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateProgress_CompletesOnFinalEpisode(t *testing.T) {
	db, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, Progress: 11, TotalEpisodes: 12,
	})

	err := engine.UpdateProgress(UpdateRequest{
		ID: id, NewProgress: 12, AutoUpdateStatus: true, UpdateLastWatched: true,
	})
	require.NoError(t, err)

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 12, entry.Progress)
	assert.Equal(t, entities.StatusCompleted, entry.Status)
	assert.NotNil(t, entry.CompletedDate)
	assert.NotNil(t, entry.LastWatched)
	assert.Equal(t, string(entities.StatusCompleted), statusMembership(t, db, id))
}

func TestUpdateProgress_DroppedStaysDropped(t *testing.T) {
	db, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusDropped, Progress: 4, TotalEpisodes: 12,
	})

	require.NoError(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: 7, AutoUpdateStatus: true}))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Progress, "progress still moves on dropped entries")
	assert.Equal(t, entities.StatusDropped, entry.Status)
	assert.Equal(t, string(entities.StatusDropped), statusMembership(t, db, id))
}

func TestUpdateProgress_WithoutAutoStatus(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusPlanToWatch, TotalEpisodes: 12,
	})

	require.NoError(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: 3}))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Progress)
	assert.Equal(t, entities.StatusPlanToWatch, entry.Status, "status untouched without auto update")
	assert.Nil(t, entry.LastWatched)
}

func TestUpdateProgress_StampsStartDateWithoutTransition(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, TotalEpisodes: 12,
	})

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	require.Nil(t, entry.StartDate)

	// The entry is already watching, so no status transition fires. The
	// stamp must still land when progress first turns positive.
	require.NoError(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: 3, AutoUpdateStatus: true}))

	entry, err = repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusWatching, entry.Status)
	require.NotNil(t, entry.StartDate)
	assert.WithinDuration(t, time.Now(), *entry.StartDate, time.Second)

	firstStart := entry.StartDate
	require.NoError(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: 4, AutoUpdateStatus: true}))

	entry, err = repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.True(t, entry.StartDate.Equal(*firstStart), "start date is stamped once")
}

func TestUpdateProgress_IsIdempotent(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, TotalEpisodes: 12,
	})

	req := UpdateRequest{ID: id, NewProgress: 12, AutoUpdateStatus: true}
	require.NoError(t, engine.UpdateProgress(req))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	firstCompleted := entry.CompletedDate
	require.NotNil(t, firstCompleted)

	// Replaying the same update changes nothing, including the stamp.
	require.NoError(t, engine.UpdateProgress(req))

	entry, err = repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, entry.Status)
	assert.True(t, entry.CompletedDate.Equal(*firstCompleted))
}

func TestUpdateProgress_Validation(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan", TotalEpisodes: 12,
	})

	assert.ErrorIs(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: -1}), database.ErrInvalidProgress)
	assert.ErrorIs(t, engine.UpdateProgress(UpdateRequest{ID: id, NewProgress: 13}), database.ErrInvalidProgress)
	assert.ErrorIs(t, engine.UpdateProgress(UpdateRequest{ID: 9999, NewProgress: 1}), database.ErrEntryNotFound)
}

func TestBatchUpdateProgress_SkipsInvalidItems(t *testing.T) {
	_, repo, engine := setupTestDB(t)

	first := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "b-1", Title: "First", Status: entities.StatusWatching, TotalEpisodes: 12,
	})
	second := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "b-2", Title: "Second", Status: entities.StatusWatching, TotalEpisodes: 12,
	})

	applied, err := engine.BatchUpdateProgress([]UpdateRequest{
		{ID: first, NewProgress: 5, AutoUpdateStatus: true},
		{ID: 9999, NewProgress: 1},                // missing entry: skipped
		{ID: second, NewProgress: 99},             // out of bounds: skipped
		{ID: second, NewProgress: 3, AutoUpdateStatus: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	entry, err := repo.GetLibraryEntryByID(first)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.Progress)

	entry, err = repo.GetLibraryEntryByID(second)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Progress)
}

func TestBatchUpdateProgress_Empty(t *testing.T) {
	_, _, engine := setupTestDB(t)

	applied, err := engine.BatchUpdateProgress(nil)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestUpdateTotalEpisodes_RetroactiveCompletion(t *testing.T) {
	db, repo, engine := setupTestDB(t)

	// A show of unknown length the user has watched 12 episodes of. Once the
	// cap becomes known the entry completes without another progress update.
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, Progress: 12, TotalEpisodes: 0,
	})

	require.NoError(t, engine.UpdateTotalEpisodes(id, 12))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 12, entry.TotalEpisodes)
	assert.Equal(t, 12, entry.Progress)
	assert.Equal(t, entities.StatusCompleted, entry.Status)
	assert.NotNil(t, entry.CompletedDate)
	assert.Equal(t, string(entities.StatusCompleted), statusMembership(t, db, id))
}

func TestUpdateTotalEpisodes_ClampsProgressToNewCap(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, Progress: 24, TotalEpisodes: 0,
	})

	require.NoError(t, engine.UpdateTotalEpisodes(id, 12))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 12, entry.Progress)
	assert.Equal(t, entities.StatusCompleted, entry.Status)
}

func TestUpdateTotalEpisodes_RaisingCapLeavesStatusAlone(t *testing.T) {
	_, repo, engine := setupTestDB(t)
	id := addTestEntry(t, repo, entities.LibraryEntry{
		AnimeID: "aot-1", Title: "Attack on Titan",
		Status: entities.StatusWatching, Progress: 5, TotalEpisodes: 12,
	})

	require.NoError(t, engine.UpdateTotalEpisodes(id, 25))

	entry, err := repo.GetLibraryEntryByID(id)
	require.NoError(t, err)
	assert.Equal(t, 25, entry.TotalEpisodes)
	assert.Equal(t, 5, entry.Progress)
	assert.Equal(t, entities.StatusWatching, entry.Status)
}

func TestUpdateTotalEpisodes_Validation(t *testing.T) {
	_, _, engine := setupTestDB(t)

	assert.ErrorIs(t, engine.UpdateTotalEpisodes(1, -1), database.ErrNegativeTotalEpisodes)
	assert.ErrorIs(t, engine.UpdateTotalEpisodes(9999, 12), database.ErrEntryNotFound)
}
