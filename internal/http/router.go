package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Create controllers with appropriate interfaces
	health := NewHealthController(cfg.Version)
	libraryController := NewLibraryController(cfg.LibraryStore, cfg.ProgressUpdater, cfg.QueryCache, cfg.ViewCache)
	historyController := NewHistoryController(cfg.HistoryStore, cfg.QueryCache)

	// Health endpoints
	router.GET("/health", health.Health)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Library endpoints
	router.POST("/api/library", libraryController.AddEntry)
	router.GET("/api/library", libraryController.ListEntries)
	router.GET("/api/library/anime/:animeId", libraryController.GetEntry)
	router.PATCH("/api/library/entries/:id", libraryController.UpdateEntry)
	router.DELETE("/api/library/entries/:id", libraryController.RemoveEntry)
	router.GET("/api/statistics", libraryController.GetStatistics)

	// Progress endpoints
	router.PUT("/api/library/entries/:id/progress", libraryController.UpdateProgress)
	router.PUT("/api/library/entries/:id/episodes", libraryController.UpdateTotalEpisodes)
	router.POST("/api/library/progress/batch", libraryController.BatchUpdateProgress)

	// Watch history endpoints
	router.POST("/api/history", historyController.AddEntry)
	router.GET("/api/history/entry/:entryId", historyController.ListEntries)
	router.GET("/api/history/entry/:entryId/stats", historyController.GetStats)
	router.POST("/api/history/entry/:entryId/prune", historyController.Prune)
	router.PATCH("/api/history/rows/:id", historyController.UpdateEntry)
	router.DELETE("/api/history/rows/:id", historyController.DeleteEntry)

	// Collection endpoints
	if cfg.CollectionStore != nil {
		collectionsController := NewCollectionsController(cfg.CollectionStore, cfg.QueryCache)
		router.GET("/api/collections", collectionsController.ListCollections)
		router.POST("/api/collections", collectionsController.CreateCollection)
		router.DELETE("/api/collections/:id", collectionsController.DeleteCollection)
	}

	return router
}
