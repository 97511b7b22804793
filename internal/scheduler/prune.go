package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"anilibrary/internal/config"
	"anilibrary/internal/tasks"
)

// HistoryPruneScheduler enqueues a watch history pruning task on a cron
// schedule. The heavy lifting happens on the task queue workers, the
// scheduler itself only fires the trigger.
type HistoryPruneScheduler struct {
	cfg        config.HistoryPrune
	taskClient *tasks.Client

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewHistoryPruneScheduler creates a new scheduler instance.
func NewHistoryPruneScheduler(cfg config.HistoryPrune, taskClient *tasks.Client) *HistoryPruneScheduler {
	return &HistoryPruneScheduler{
		cfg:        cfg,
		taskClient: taskClient,
		cron:       cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if pruning is enabled.
func (s *HistoryPruneScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		log.Printf("History prune scheduler: disabled")
		return nil
	}

	if s.cfg.KeepLastN <= 0 && s.cfg.MaxAgeDays <= 0 {
		log.Printf("History prune scheduler: no retention limits configured, skipping")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.enqueuePrune()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule prune job with '%s': %w", s.cfg.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("History prune scheduler: started with schedule '%s'", s.cfg.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler.
func (s *HistoryPruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("History prune scheduler: stopped")
}

// RunNow triggers an immediate prune.
func (s *HistoryPruneScheduler) RunNow() {
	go s.enqueuePrune()
}

// IsRunning returns whether the scheduler is active.
func (s *HistoryPruneScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next prune will be enqueued.
func (s *HistoryPruneScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// enqueuePrune puts a pruning task on the queue.
func (s *HistoryPruneScheduler) enqueuePrune() {
	task := tasks.PruneWatchHistoryTask{
		KeepLastN:  s.cfg.KeepLastN,
		MaxAgeDays: s.cfg.MaxAgeDays,
	}
	if _, err := s.taskClient.Add(task).Save(); err != nil {
		log.Printf("History prune scheduler: failed to enqueue task: %v", err)
		return
	}
	log.Printf("History prune scheduler: prune task enqueued")
}
