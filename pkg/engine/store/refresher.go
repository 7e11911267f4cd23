package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Reloader is implemented by stores that can re-read their source.
type Reloader interface {
	Reload() error
}

// Purger is implemented by caches that can drop their entries.
type Purger interface {
	Purge(ctx context.Context) error
}

type refreshJob struct {
	name string
	run  func(ctx context.Context) error
}

// Refresher runs store maintenance (file reloads, cache purges) on a cron
// schedule. Jobs run in registration order so a reload is followed by the
// purge of the caches above it.
type Refresher struct {
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    []refreshJob
	running bool
	entry   cron.EntryID
}

// NewRefresher creates a refresher for a standard five-field cron schedule.
func NewRefresher(schedule string, logger *slog.Logger) (*Refresher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "store.refresher"),
	}, nil
}

// AddReload registers a store reload.
func (r *Refresher) AddReload(name string, s Reloader) {
	r.add(name, func(context.Context) error { return s.Reload() })
}

// AddPurge registers a cache purge.
func (r *Refresher) AddPurge(name string, p Purger) {
	r.add(name, p.Purge)
}

func (r *Refresher) add(name string, fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, refreshJob{name: name, run: fn})
}

// Start schedules the registered jobs until Stop is called. Jobs receive
// ctx.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("refresher already running")
	}
	entry, err := r.cron.AddFunc(r.schedule, func() { r.RunNow(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	r.entry = entry
	r.cron.Start()
	r.running = true

	r.logger.Info("store refresher started", "schedule", r.schedule, "jobs", len(r.jobs))
	return nil
}

// RunNow runs every job once, logging failures. A failing job does not stop
// the ones after it.
func (r *Refresher) RunNow(ctx context.Context) {
	r.mu.Lock()
	jobs := make([]refreshJob, len(r.jobs))
	copy(jobs, r.jobs)
	r.mu.Unlock()

	for _, job := range jobs {
		start := time.Now()
		if err := job.run(ctx); err != nil {
			r.logger.Error("refresh job failed", "job", job.name, "error", err)
			continue
		}
		r.logger.Debug("refresh job completed", "job", job.name, "duration_ms", time.Since(start).Milliseconds())
	}
}

// Stop stops the schedule and waits for a running refresh to finish. The
// refresher can be started again afterwards.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	entry := r.entry
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.cron.Remove(entry)
	r.logger.Info("store refresher stopped")
}

// NextRun returns the next scheduled refresh, or the zero time when not
// running.
func (r *Refresher) NextRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return time.Time{}
	}
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
