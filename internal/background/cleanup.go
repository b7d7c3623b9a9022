package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const taskTimeout = 30 * time.Second

// Task is one sweep run on every tick. Run returns how many items it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// InMemory adapts an in-process cleanup such as RateLimitService.Cleanup
func InMemory(name string, cleanup func() int) Task {
	return Task{
		Name: name,
		Run: func(context.Context) (int64, error) {
			return int64(cleanup()), nil
		},
	}
}

// CleanupManager periodically drops expired admission state and audit rows
type CleanupManager struct {
	tasks    []Task
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, tasks ...Task) *CleanupManager {
	return &CleanupManager{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the tasks immediately and then on every tick until ctx is
// cancelled or Stop is called. It blocks.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup runs every task. A failing task does not stop the others.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	for _, task := range cm.tasks {
		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		removed, err := task.Run(taskCtx)
		cancel()

		if err != nil {
			cm.logger.Error("cleanup task failed", slog.String("task", task.Name), slog.Any("error", err))
			continue
		}
		if removed > 0 {
			cm.logger.Info("cleanup task completed", slog.String("task", task.Name), slog.Int64("removed", removed))
		}
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
