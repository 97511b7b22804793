package main

import (
	"log"

	"github.com/joho/godotenv"

	"anilibrary/internal/config"
	"anilibrary/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// A local .env is optional; environment variables win either way.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := config.NewConfig()
	entrypoint.Run(cfg, Version)
}
