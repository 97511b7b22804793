package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"anilibrary/internal/cache"
	"anilibrary/internal/entities"
)

// CollectionStore defines database operations for collection management.
type CollectionStore interface {
	ListCollections() ([]entities.Collection, error)
	CountEntries(collectionID uint) (int64, error)
	CreateCollection(collection *entities.Collection) error
	DeleteCollection(id uint) error
}

// CollectionsController serves the collection endpoints. The five default
// status collections are read-only here; user-defined ones can be created
// and deleted.
type CollectionsController struct {
	store   CollectionStore
	queries *cache.Store
}

func NewCollectionsController(store CollectionStore, queries *cache.Store) *CollectionsController {
	return &CollectionsController{store: store, queries: queries}
}

// ListCollections returns all collections with their entry counts.
// GET /api/collections
func (cc *CollectionsController) ListCollections(c *gin.Context) {
	collections, err := cc.store.ListCollections()
	if err != nil {
		respondStoreError(c, err, "list collections")
		return
	}

	type collectionWithCount struct {
		entities.Collection
		EntryCount int64 `json:"entry_count"`
	}

	result := make([]collectionWithCount, 0, len(collections))
	for _, collection := range collections {
		count, err := cc.store.CountEntries(collection.ID)
		if err != nil {
			respondStoreError(c, err, "count collection entries")
			return
		}
		result = append(result, collectionWithCount{Collection: collection, EntryCount: count})
	}

	c.JSON(http.StatusOK, gin.H{"collections": result})
}

// createCollectionRequest is the POST /api/collections payload.
type createCollectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

// CreateCollection creates a user-defined collection.
// POST /api/collections
func (cc *CollectionsController) CreateCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	collection := &entities.Collection{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
	}
	if err := cc.store.CreateCollection(collection); err != nil {
		respondStoreError(c, err, "create collection")
		return
	}

	respondCreated(c, collection)
}

// DeleteCollection removes a user-defined collection.
// DELETE /api/collections/:id
func (cc *CollectionsController) DeleteCollection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := cc.store.DeleteCollection(id); err != nil {
		respondStoreError(c, err, "delete collection")
		return
	}

	cc.queries.InvalidateGroups(cache.GroupLibrary)
	respondSuccess(c, "collection deleted")
}
