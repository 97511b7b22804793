package database

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"anilibrary/internal/entities"
)

const (
	// connectAttempts bounds startup retries before the error is fatal.
	connectAttempts = 3
	connectBackoff  = 1 * time.Second

	// dsnParams enables WAL journaling, a 5s busy wait and relaxed-but-safe
	// sync. The busy timeout is the only backstop against lock contention.
	dsnParams = "?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on"
)

// Database owns the single shared SQLite handle. All repositories receive it
// by injection; there is no package-level handle.
type Database struct {
	DB *gorm.DB

	// txMu queues transaction scopes. SQLite allows one writer, and gorm
	// transactions must not nest on the same connection, so every
	// RunInTransaction caller waits its turn. Callers must not re-enter
	// RunInTransaction from inside fn.
	txMu sync.Mutex
}

// Open opens (or creates) the database file, verifies the connection with a
// round-trip query, migrates the schema and seeds the default collections.
// The whole sequence is retried with a fixed backoff before giving up.
func Open(dbPath string) (*Database, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := open(dbPath)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Printf("Database open attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	return nil, &DatabaseError{Op: "open " + dbPath, Err: lastErr}
}

func open(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+dsnParams), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Trivial round trip to verify the file is actually usable.
	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		return nil, fmt.Errorf("connection verification failed: %w", err)
	}

	err = db.AutoMigrate(
		&entities.LibraryEntry{},
		&entities.WatchHistoryEntry{},
		&entities.Collection{},
		&entities.EntryCollection{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.seedDefaultCollections(); err != nil {
		return nil, fmt.Errorf("failed to seed default collections: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return database, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTransaction executes fn inside a single commit-or-rollback scope.
// A nil return from fn commits; any error (or panic) rolls back and the
// original failure is propagated unchanged. Scopes are queued: a second
// caller waits until the first scope has fully committed or rolled back.
func (d *Database) RunInTransaction(fn func(tx *gorm.DB) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.DB.Transaction(fn)
}

// seedDefaultCollections creates the five status collections if missing.
// Idempotent; runs on every startup.
func (d *Database) seedDefaultCollections() error {
	for ordinal, status := range entities.DefaultStatuses {
		var existing entities.Collection
		result := d.DB.Where("name = ?", string(status)).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			collection := entities.Collection{
				Name:       string(status),
				Visibility: entities.VisibilityPrivate,
				IsDefault:  true,
				Ordinal:    ordinal,
			}
			if err := d.DB.Create(&collection).Error; err != nil {
				return fmt.Errorf("failed to create collection %s: %w", status, err)
			}
			log.Printf("Created default collection: %s", status)
		} else if result.Error != nil {
			return result.Error
		}
	}
	return nil
}
