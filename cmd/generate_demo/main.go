// Command generate_demo creates a demo database with a sample anime library.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"anilibrary/internal/database"
	"anilibrary/internal/database/history"
	"anilibrary/internal/database/library"
	"anilibrary/internal/entities"
)

const defaultDemoDatabasePath = "./demo/demo.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	libraryRepo := library.NewRepository(db)
	historyRepo := history.NewRepository(db)

	for _, cfg := range demoEntries() {
		id, err := libraryRepo.AddToLibrary(&cfg.Entry)
		if err != nil {
			log.Printf("Failed to save entry %s: %v", cfg.Entry.Title, err)
			continue
		}
		log.Printf("Saved: %s (%s, %d/%d episodes)",
			cfg.Entry.Title, cfg.Entry.Status, cfg.Entry.Progress, cfg.Entry.TotalEpisodes)

		// Replay watched episodes as history events so the progress and
		// last-watched fields line up with the log.
		for i, episode := range cfg.WatchedEpisodes {
			ts := time.Now().AddDate(0, 0, -(len(cfg.WatchedEpisodes) - i))
			_, err := historyRepo.AddWatchHistoryEntry(&entities.WatchHistoryEntry{
				EntryID:       id,
				EpisodeNumber: episode,
				Timestamp:     ts,
				Duration:      24 * 60,
			})
			if err != nil {
				log.Printf("Failed to record episode %d of %s: %v", episode, cfg.Entry.Title, err)
			}
		}
	}

	log.Println("Demo database generated successfully!")
}

// EntryConfig holds a library entry and the episodes to replay into history.
type EntryConfig struct {
	Entry           entities.LibraryEntry
	WatchedEpisodes []int
}

func rating(v int) *int { return &v }

func demoEntries() []EntryConfig {
	return []EntryConfig{
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-cowboy-bebop",
				Title:         "Cowboy Bebop",
				Status:        entities.StatusCompleted,
				Progress:      26,
				TotalEpisodes: 26,
				Rating:        rating(10),
				Notes:         "See you space cowboy.",
			},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-mushishi",
				Title:         "Mushishi",
				Status:        entities.StatusWatching,
				TotalEpisodes: 26,
				Rating:        rating(9),
			},
			WatchedEpisodes: []int{1, 2, 3, 4, 5, 6, 7},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-ping-pong",
				Title:         "Ping Pong the Animation",
				Status:        entities.StatusWatching,
				TotalEpisodes: 11,
			},
			WatchedEpisodes: []int{1, 2, 3},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-monster",
				Title:         "Monster",
				Status:        entities.StatusOnHold,
				Progress:      31,
				TotalEpisodes: 74,
				Rating:        rating(8),
				Notes:         "Paused at the Munich arc.",
			},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-big-o",
				Title:         "The Big O",
				Status:        entities.StatusDropped,
				Progress:      9,
				TotalEpisodes: 26,
				Rating:        rating(5),
			},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-hyouka",
				Title:         "Hyouka",
				Status:        entities.StatusPlanToWatch,
				TotalEpisodes: 22,
			},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-kaiba",
				Title:         "Kaiba",
				Status:        entities.StatusPlanToWatch,
				TotalEpisodes: 12,
			},
		},
		{
			Entry: entities.LibraryEntry{
				AnimeID:       "demo-planetes",
				Title:         "Planetes",
				Status:        entities.StatusCompleted,
				Progress:      26,
				TotalEpisodes: 26,
				Rating:        rating(9),
			},
		},
	}
}
