package entities

import (
	"time"
)

// WatchStatus is the lifecycle state of a library entry.
type WatchStatus string

const (
	StatusWatching    WatchStatus = "watching"
	StatusCompleted   WatchStatus = "completed"
	StatusOnHold      WatchStatus = "on_hold"
	StatusDropped     WatchStatus = "dropped"
	StatusPlanToWatch WatchStatus = "plan_to_watch"
)

// DefaultStatuses lists the five system statuses in display order. Each has a
// matching default collection seeded at startup.
var DefaultStatuses = []WatchStatus{
	StatusWatching,
	StatusCompleted,
	StatusOnHold,
	StatusDropped,
	StatusPlanToWatch,
}

// Valid reports whether s is one of the five known statuses.
func (s WatchStatus) Valid() bool {
	switch s {
	case StatusWatching, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToWatch:
		return true
	}
	return false
}

type CollectionVisibility string

const (
	VisibilityPrivate CollectionVisibility = "private"
	VisibilityPublic  CollectionVisibility = "public"
)

// LibraryEntry is one tracked anime in the user's library.
//
// Invariants maintained by the repositories:
//   - Progress is never negative and never exceeds TotalEpisodes when the
//     entry is capped (TotalEpisodes > 0; 0 means the episode count is
//     unknown).
//   - Exactly one entry_collections row binds the entry to a default
//     collection, and that collection's name matches Status.
//   - CompletedDate is set when Status first becomes completed, StartDate
//     when watching begins.
type LibraryEntry struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	AnimeID       string      `gorm:"uniqueIndex;size:64" json:"anime_id"`
	Title         string      `gorm:"index;size:512" json:"title"`
	Image         string      `gorm:"size:2048" json:"image,omitempty"`
	Status        WatchStatus `gorm:"size:20;default:'plan_to_watch'" json:"status"`
	Progress      int         `gorm:"default:0" json:"progress"`
	TotalEpisodes int         `gorm:"default:0" json:"total_episodes"`
	Rating        *int        `json:"rating,omitempty"` // 1-10, nil when unrated
	Notes         string      `gorm:"type:text" json:"notes,omitempty"`

	LastWatched   *time.Time `json:"last_watched,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"` // reserved for remote sync

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	History []WatchHistoryEntry `gorm:"foreignKey:EntryID" json:"history,omitempty"`
}

// Collection is a named grouping of library entries. The five default
// collections mirror the watch statuses and are system owned; user-defined
// collections are supported as an extension point.
type Collection struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	Name        string               `gorm:"uniqueIndex;size:100" json:"name"`
	Description string               `gorm:"size:512" json:"description,omitempty"`
	Color       string               `gorm:"size:10" json:"color,omitempty"` // hex color code
	Icon        string               `gorm:"size:50" json:"icon,omitempty"`
	Visibility  CollectionVisibility `gorm:"size:20;default:'private'" json:"visibility"`
	IsDefault   bool                 `gorm:"default:false" json:"is_default"`
	Ordinal     int                  `gorm:"default:0" json:"ordinal"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	SyncedAt    *time.Time           `json:"synced_at,omitempty"`
}

// EntryCollection binds a library entry to a collection. Memberships are
// managed explicitly (no gorm association) so that moves between the default
// status collections stay a single atomic delete+insert.
type EntryCollection struct {
	EntryID      uint      `gorm:"primaryKey" json:"entry_id"`
	CollectionID uint      `gorm:"primaryKey" json:"collection_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (LibraryEntry) TableName() string {
	return "library_entries"
}

func (Collection) TableName() string {
	return "collections"
}

func (EntryCollection) TableName() string {
	return "entry_collections"
}
