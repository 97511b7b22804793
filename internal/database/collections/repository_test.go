package collections

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"anilibrary/internal/database"
	"anilibrary/internal/entities"
)

func setupTestDB(t *testing.T) (*database.Database, *Repository) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db, NewRepository(db)
}

func createTestEntry(t *testing.T, db *database.Database, animeID string) *entities.LibraryEntry {
	entry := &entities.LibraryEntry{
		AnimeID: animeID,
		Title:   "Test Anime " + animeID,
		Status:  entities.StatusPlanToWatch,
	}
	require.NoError(t, db.DB.Create(entry).Error)
	return entry
}

func statusMemberships(t *testing.T, db *database.Database, entryID uint) []string {
	var names []string
	err := db.DB.Model(&entities.EntryCollection{}).
		Joins("JOIN collections c ON c.id = entry_collections.collection_id").
		Where("entry_collections.entry_id = ? AND c.is_default = ?", entryID, true).
		Pluck("c.name", &names).Error
	require.NoError(t, err)
	return names
}

func TestListCollections_DefaultsFirstInOrder(t *testing.T) {
	_, repo := setupTestDB(t)

	require.NoError(t, repo.CreateCollection(&entities.Collection{Name: "aaa-custom"}))

	collections, err := repo.ListCollections()
	require.NoError(t, err)
	require.Len(t, collections, len(entities.DefaultStatuses)+1)

	// Defaults come first in seeded order despite the custom name sorting lower.
	for i, status := range entities.DefaultStatuses {
		assert.Equal(t, string(status), collections[i].Name)
	}
	assert.Equal(t, "aaa-custom", collections[len(collections)-1].Name)
}

func TestGetByName(t *testing.T) {
	_, repo := setupTestDB(t)

	collection, err := repo.GetByName(string(entities.StatusWatching))
	require.NoError(t, err)
	assert.True(t, collection.IsDefault)

	_, err = repo.GetByName("does-not-exist")
	assert.ErrorIs(t, err, database.ErrCollectionNotFound)
}

func TestCreateCollection_ForcesUserDefined(t *testing.T) {
	_, repo := setupTestDB(t)

	collection := &entities.Collection{Name: "favourites", IsDefault: true}
	require.NoError(t, repo.CreateCollection(collection))

	assert.False(t, collection.IsDefault, "repo-created collections are never defaults")
	assert.Equal(t, entities.VisibilityPrivate, collection.Visibility)
	assert.Equal(t, len(entities.DefaultStatuses), collection.Ordinal)
}

func TestCreateCollection_RequiresName(t *testing.T) {
	_, repo := setupTestDB(t)

	err := repo.CreateCollection(&entities.Collection{})
	assert.ErrorIs(t, err, database.ErrMissingFields)
}

func TestDefaultCollectionsAreProtected(t *testing.T) {
	db, repo := setupTestDB(t)

	watching, err := repo.GetByName(string(entities.StatusWatching))
	require.NoError(t, err)
	entry := createTestEntry(t, db, "protected-1")

	assert.ErrorIs(t, repo.DeleteCollection(watching.ID), database.ErrDefaultCollection)
	assert.ErrorIs(t, repo.UpdateCollection(watching.ID, "desc", "", "", ""), database.ErrDefaultCollection)
	assert.ErrorIs(t, repo.AddEntry(watching.ID, entry.ID), database.ErrDefaultCollection)
	assert.ErrorIs(t, repo.RemoveEntry(watching.ID, entry.ID), database.ErrDefaultCollection)
}

func TestUserCollectionMembership(t *testing.T) {
	db, repo := setupTestDB(t)

	collection := &entities.Collection{Name: "favourites"}
	require.NoError(t, repo.CreateCollection(collection))
	entry := createTestEntry(t, db, "member-1")

	require.NoError(t, repo.AddEntry(collection.ID, entry.ID))

	count, err := repo.CountEntries(collection.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.RemoveEntry(collection.ID, entry.ID))

	count, err = repo.CountEntries(collection.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteCollection_RemovesMemberships(t *testing.T) {
	db, repo := setupTestDB(t)

	collection := &entities.Collection{Name: "favourites"}
	require.NoError(t, repo.CreateCollection(collection))
	entry := createTestEntry(t, db, "member-2")
	require.NoError(t, repo.AddEntry(collection.ID, entry.ID))

	require.NoError(t, repo.DeleteCollection(collection.ID))

	_, err := repo.GetByName("favourites")
	assert.ErrorIs(t, err, database.ErrCollectionNotFound)

	var count int64
	require.NoError(t, db.DB.Model(&entities.EntryCollection{}).
		Where("collection_id = ?", collection.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSetStatusMembership_ExactlyOneDefault(t *testing.T) {
	db, _ := setupTestDB(t)
	entry := createTestEntry(t, db, "status-1")

	err := db.RunInTransaction(func(tx *gorm.DB) error {
		return SetStatusMembership(tx, entry.ID, entities.StatusPlanToWatch)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{string(entities.StatusPlanToWatch)}, statusMemberships(t, db, entry.ID))

	// Moving to another status replaces the membership, never adds a second.
	err = db.RunInTransaction(func(tx *gorm.DB) error {
		return SetStatusMembership(tx, entry.ID, entities.StatusWatching)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{string(entities.StatusWatching)}, statusMemberships(t, db, entry.ID))
}

func TestSetStatusMembership_LeavesUserCollectionsAlone(t *testing.T) {
	db, repo := setupTestDB(t)

	collection := &entities.Collection{Name: "favourites"}
	require.NoError(t, repo.CreateCollection(collection))
	entry := createTestEntry(t, db, "status-2")
	require.NoError(t, repo.AddEntry(collection.ID, entry.ID))

	err := db.RunInTransaction(func(tx *gorm.DB) error {
		return SetStatusMembership(tx, entry.ID, entities.StatusWatching)
	})
	require.NoError(t, err)

	count, err := repo.CountEntries(collection.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "status moves must not touch user collections")
}
