// Package scheduler runs recurring scrape and enrichment cycles.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default intervals per task kind
const (
	RSSInterval        = 15 * time.Minute
	EnrichmentInterval = 10 * time.Minute
)

// Task is one recurring job
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each task on its own goroutine. A task never overlaps
// with itself: the next tick is taken only after the previous run returns.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	logger  *slog.Logger
	running bool
}

// New creates a Scheduler
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Add registers a task. Tasks cannot be added once Start has been called.
func (s *Scheduler) Add(task Task) error {
	if task.Name == "" || task.Run == nil {
		return errors.New("task needs a name and a run function")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("task %s: scheduler already started", task.Name)
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Tasks returns the registered task names
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Start runs every task once immediately and then on its interval until
// ctx is cancelled. It blocks until all task goroutines have returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.running = true
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.loop(ctx, task)
		}(task)
	}

	s.logger.Info("scheduler started", "tasks", len(tasks))
	wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	s.runOnce(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

// runOnce runs task, recovering panics so one bad cycle cannot stop the loop
func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", task.Name, "panic", r)
		}
	}()

	if err := task.Run(ctx); err != nil {
		s.logger.Error("task failed", "task", task.Name, "duration", time.Since(start), "err", err)
		return
	}
	s.logger.Info("task completed", "task", task.Name, "duration", time.Since(start))
}
