// Package collections provides database operations for entry collections.
//
// The five default collections mirror the watch statuses and are seeded at
// startup; they cannot be renamed or deleted. User-defined collections are
// supported as an extension point for custom lists.
//
// # Usage
//
//	repo := collections.NewRepository(db)
//	all, err := repo.ListCollections()
package collections

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"anilibrary/internal/database"
	"anilibrary/internal/entities"
)

// Repository handles all collection database operations.
type Repository struct {
	db *database.Database
}

// NewRepository creates a new collections repository.
func NewRepository(db *database.Database) *Repository {
	return &Repository{db: db}
}

// GetByName retrieves a collection by its unique name.
func (r *Repository) GetByName(name string) (*entities.Collection, error) {
	var collection entities.Collection
	err := r.db.DB.Where("name = ?", name).First(&collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrCollectionNotFound
	}
	if err != nil {
		return nil, database.WrapOp("get collection", err)
	}
	return &collection, nil
}

// ListCollections returns all collections in display order, defaults first.
func (r *Repository) ListCollections() ([]entities.Collection, error) {
	var collections []entities.Collection
	err := r.db.DB.Order("is_default DESC, ordinal ASC, name ASC").Find(&collections).Error
	if err != nil {
		return nil, database.WrapOp("list collections", err)
	}
	return collections, nil
}

// CountEntries returns the number of entries in a collection.
func (r *Repository) CountEntries(collectionID uint) (int64, error) {
	var count int64
	err := r.db.DB.Model(&entities.EntryCollection{}).
		Where("collection_id = ?", collectionID).
		Count(&count).Error
	if err != nil {
		return 0, database.WrapOp("count collection entries", err)
	}
	return count, nil
}

// CreateCollection creates a user-defined collection. The default flag is
// forced off; only startup seeding creates default collections.
func (r *Repository) CreateCollection(collection *entities.Collection) error {
	if collection.Name == "" {
		return database.ErrMissingFields
	}
	collection.IsDefault = false
	if collection.Visibility == "" {
		collection.Visibility = entities.VisibilityPrivate
	}
	if collection.Ordinal == 0 {
		// Place after the defaults by default.
		collection.Ordinal = len(entities.DefaultStatuses)
	}
	if err := r.db.DB.Create(collection).Error; err != nil {
		return database.WrapOp("create collection", err)
	}
	return nil
}

// UpdateCollection updates a user-defined collection's display fields.
func (r *Repository) UpdateCollection(id uint, description, color, icon string, visibility entities.CollectionVisibility) error {
	collection, err := r.getByID(id)
	if err != nil {
		return err
	}
	if collection.IsDefault {
		return database.ErrDefaultCollection
	}

	updates := map[string]any{
		"description": description,
		"color":       color,
		"icon":        icon,
		"updated_at":  time.Now(),
	}
	if visibility != "" {
		updates["visibility"] = visibility
	}
	err = r.db.DB.Model(&entities.Collection{}).Where("id = ?", id).Updates(updates).Error
	return database.WrapOp("update collection", err)
}

// DeleteCollection removes a user-defined collection and its memberships.
// Default collections are protected.
func (r *Repository) DeleteCollection(id uint) error {
	collection, err := r.getByID(id)
	if err != nil {
		return err
	}
	if collection.IsDefault {
		return database.ErrDefaultCollection
	}

	err = r.db.RunInTransaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&entities.EntryCollection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Collection{}, id).Error
	})
	return database.WrapOp("delete collection", err)
}

// AddEntry adds an entry to a user-defined collection. Memberships in the
// default collections are owned by the status machine; use the library or
// progress operations to move those.
func (r *Repository) AddEntry(collectionID, entryID uint) error {
	collection, err := r.getByID(collectionID)
	if err != nil {
		return err
	}
	if collection.IsDefault {
		return database.ErrDefaultCollection
	}

	membership := entities.EntryCollection{
		EntryID:      entryID,
		CollectionID: collectionID,
		UpdatedAt:    time.Now(),
	}
	return database.WrapOp("add collection entry", r.db.DB.Create(&membership).Error)
}

// RemoveEntry removes an entry from a user-defined collection.
func (r *Repository) RemoveEntry(collectionID, entryID uint) error {
	collection, err := r.getByID(collectionID)
	if err != nil {
		return err
	}
	if collection.IsDefault {
		return database.ErrDefaultCollection
	}

	err = r.db.DB.Where("collection_id = ? AND entry_id = ?", collectionID, entryID).
		Delete(&entities.EntryCollection{}).Error
	return database.WrapOp("remove collection entry", err)
}

func (r *Repository) getByID(id uint) (*entities.Collection, error) {
	var collection entities.Collection
	err := r.db.DB.First(&collection, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrCollectionNotFound
	}
	if err != nil {
		return nil, database.WrapOp("get collection", err)
	}
	return &collection, nil
}

// SetStatusMembership moves an entry's default-collection membership to the
// collection named after status, inside the caller's transaction. The delete
// and insert always travel together so an entry is never left without (or
// with two) status memberships.
func SetStatusMembership(tx *gorm.DB, entryID uint, status entities.WatchStatus) error {
	var target entities.Collection
	err := tx.Where("name = ? AND is_default = ?", string(status), true).First(&target).Error
	if err != nil {
		return fmt.Errorf("lookup status collection %q: %w", status, err)
	}

	defaultIDs := tx.Model(&entities.Collection{}).Select("id").Where("is_default = ?", true)
	err = tx.Where("entry_id = ? AND collection_id IN (?)", entryID, defaultIDs).
		Delete(&entities.EntryCollection{}).Error
	if err != nil {
		return fmt.Errorf("clear status membership: %w", err)
	}

	membership := entities.EntryCollection{
		EntryID:      entryID,
		CollectionID: target.ID,
		UpdatedAt:    time.Now(),
	}
	if err := tx.Create(&membership).Error; err != nil {
		return fmt.Errorf("insert status membership: %w", err)
	}
	return nil
}
