package entities

import "time"

// WatchHistoryEntry is one episode-watching event. Rows are append-only:
// after insertion only Duration and Timestamp may be corrected. History never
// lowers a library entry's progress; progress is a ceiling maintained on the
// entry itself.
type WatchHistoryEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EntryID       uint       `gorm:"index" json:"entry_id"`
	EpisodeNumber int        `json:"episode_number"`
	Timestamp     time.Time  `gorm:"index" json:"timestamp"`
	Duration      int        `json:"duration"` // seconds watched
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
}

func (WatchHistoryEntry) TableName() string {
	return "watch_history"
}
