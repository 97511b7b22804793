package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Cache
		HistoryPrune
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Cache struct {
		TTL             time.Duration
		CleanupInterval time.Duration
		ViewCacheSize   int
	}

	HistoryPrune struct {
		Enabled    bool
		Schedule   string // Cron format: "0 4 * * *" = daily at 04:00
		KeepLastN  int    // Keep the N most recent rows per entry (0 = unlimited)
		MaxAgeDays int    // Drop rows older than this many days (0 = unlimited)
	}

	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8178)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Cache defaults
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("cache_cleanup_interval", "10m")
	v.SetDefault("view_cache_size", 512)

	// History pruning defaults
	v.SetDefault("history_prune_enabled", false)
	v.SetDefault("history_prune_schedule", "0 4 * * *") // Daily at 04:00
	v.SetDefault("history_keep_last_n", 0)
	v.SetDefault("history_max_age_days", 0)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Cache: Cache{
			TTL:             v.GetDuration("CACHE_TTL"),
			CleanupInterval: v.GetDuration("CACHE_CLEANUP_INTERVAL"),
			ViewCacheSize:   v.GetInt("VIEW_CACHE_SIZE"),
		},
		HistoryPrune: HistoryPrune{
			Enabled:    v.GetBool("HISTORY_PRUNE_ENABLED"),
			Schedule:   v.GetString("HISTORY_PRUNE_SCHEDULE"),
			KeepLastN:  v.GetInt("HISTORY_KEEP_LAST_N"),
			MaxAgeDays: v.GetInt("HISTORY_MAX_AGE_DAYS"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
