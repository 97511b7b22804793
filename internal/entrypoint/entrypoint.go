package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"anilibrary/internal/cache"
	"anilibrary/internal/config"
	"anilibrary/internal/database"
	"anilibrary/internal/database/collections"
	"anilibrary/internal/database/history"
	"anilibrary/internal/database/library"
	"anilibrary/internal/database/progress"
	http_controllers "anilibrary/internal/http"
	"anilibrary/internal/scheduler"
	"anilibrary/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop scheduler and task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting AniLibrary v%s", version)

	// Initialize database through the manager so every component shares
	// a single lazily opened connection.
	manager := database.NewManager(cfg.Database.Path)
	db, err := manager.Ensure()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := manager.Cleanup(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Repositories and progress engine
	libraryRepo := library.NewRepository(db)
	historyRepo := history.NewRepository(db)
	collectionsRepo := collections.NewRepository(db)
	progressEngine := progress.NewEngine(db)

	// Caches
	queryCache := cache.NewStore(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	viewCache := cache.NewViewCache[library.EntryView](cfg.Cache.ViewCacheSize, cfg.Cache.TTL)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var pruneScheduler *scheduler.HistoryPruneScheduler
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewPruneWatchHistoryQueue(historyRepo),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Periodic history pruning rides on the task queue
		pruneScheduler = scheduler.NewHistoryPruneScheduler(cfg.HistoryPrune, taskClient)
		if err := pruneScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start history prune scheduler: %v", err)
		}
	}

	routerCfg := http_controllers.RouterConfig{
		LibraryStore:    libraryRepo,
		HistoryStore:    historyRepo,
		CollectionStore: collectionsRepo,
		ProgressUpdater: progressEngine,
		QueryCache:      queryCache,
		ViewCache:       viewCache,
		Version:         version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if pruneScheduler != nil {
			pruneScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
