package http

import (
	"anilibrary/internal/cache"
	"anilibrary/internal/database/collections"
	"anilibrary/internal/database/history"
	"anilibrary/internal/database/library"
	"anilibrary/internal/database/progress"
)

// Compile-time interface checks for the repositories wired in by the
// entrypoint.
var (
	_ LibraryStore    = (*library.Repository)(nil)
	_ HistoryStore    = (*history.Repository)(nil)
	_ CollectionStore = (*collections.Repository)(nil)
	_ ProgressUpdater = (*progress.Engine)(nil)
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core stores
	LibraryStore    LibraryStore
	HistoryStore    HistoryStore
	CollectionStore CollectionStore

	// Progress engine
	ProgressUpdater ProgressUpdater

	// Caches
	QueryCache *cache.Store
	ViewCache  *cache.ViewCache[library.EntryView]

	// Application info
	Version string
}
