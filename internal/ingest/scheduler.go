package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs the daily pipeline once a day at a fixed local time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	daily     *DailyJobs
	loc       *time.Location
	at        string
	timeout   time.Duration

	mu  sync.Mutex
	job *gocron.Job
}

// NewScheduler schedules daily at the "HH:MM" time at in loc.
func NewScheduler(daily *DailyJobs, loc *time.Location, at string) *Scheduler {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		daily:     daily,
		loc:       loc,
		at:        at,
		timeout:   30 * time.Minute,
	}
}

// Run starts the schedule and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	job, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule daily pipeline at %s: %w", s.at, err)
	}

	s.scheduler.StartAsync()
	s.mu.Lock()
	s.job = job
	s.mu.Unlock()
	log.Printf("scheduler: daily pipeline scheduled at %s, next run %s", s.at, s.NextRun().Format(time.RFC3339))

	<-ctx.Done()
	log.Println("scheduler: shutting down")
	s.scheduler.Stop()
	return nil
}

// NextRun returns when the pipeline fires next, or the zero time before the
// scheduler has started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun().In(s.loc)
}

func (s *Scheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	log.Println("scheduler: running daily pipeline")
	start := time.Now().In(s.loc)
	run, err := s.daily.RunAll(ctx, start)
	switch {
	case err != nil && IsHistoryError(err):
		log.Printf("scheduler: skipped forecast, history incomplete: %v", err)
	case err != nil:
		log.Printf("scheduler: daily pipeline failed: %v", err)
	default:
		log.Printf("scheduler: daily pipeline completed in %s (run %s)", time.Since(start).Round(time.Millisecond), run.ID)
	}
}
