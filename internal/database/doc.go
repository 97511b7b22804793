// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, collection seeding
//	├── manager.go       # Lazy init + teardown of the shared handle
//	├── errors.go        # DatabaseError and validation sentinels
//	├── library/         # Library entry CRUD, listing, statistics
//	├── progress/        # Status derivation and progress updates
//	├── history/         # Watch history log operations
//	└── collections/     # Default and user-defined collections
//
// # Using Sub-packages
//
// Each sub-package provides a Repository (or Engine) built on the shared
// Database handle:
//
//	// Initialize database connection
//	manager := database.NewManager("./anilibrary.db")
//	db, err := manager.Ensure()
//
//	// Create domain-specific repositories
//	libraryRepo := library.NewRepository(db)
//	historyRepo := history.NewRepository(db)
//	engine := progress.NewEngine(db)
//
// # Transactions
//
// Every multi-statement mutation goes through Database.RunInTransaction,
// which queues scopes and guarantees rollback on any failure path. The
// wrapper must not be re-entered from inside a running scope; helpers that
// need to compose (for example the progress engine inside a total-episodes
// update) take the live *gorm.DB transaction instead.
//
// # Errors
//
// Operations either succeed, fail with a validation sentinel (raised before
// any write), or fail with a *DatabaseError wrapping the storage-level
// cause. WrapOp applies that policy mechanically.
package database
