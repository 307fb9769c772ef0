package backup

import (
	"context"
	"sync"
	"time"

	"github.com/kamiai/kamiai/internal/logger"
)

// Interval is the auto-backup cadence.
type Interval string

const (
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
	IntervalManual Interval = "manual"
)

// ParseInterval validates s as an interval.
func ParseInterval(s string) (Interval, error) {
	switch i := Interval(s); i {
	case IntervalDaily, IntervalWeekly, IntervalManual:
		return i, nil
	}
	return "", NewError(ErrValidation, "unknown backup interval "+s, nil)
}

// Period returns the time between runs, zero for manual.
func (i Interval) Period() time.Duration {
	switch i {
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Scheduler runs DownloadToLocal on a fixed period. A run missed while the
// process was down happens right after Start.
type Scheduler struct {
	manager *Manager
	period  time.Duration
	log     logger.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler for interval. Manual schedules never run.
func NewScheduler(manager *Manager, interval Interval) *Scheduler {
	return &Scheduler{
		manager: manager,
		period:  interval.Period(),
		log:     GetLogger().Module("scheduler"),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning || s.period <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	go s.run(ctx, s.done)
	s.log.Info("backup scheduler started", logger.Duration("period", s.period))
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("backup scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// nextRun is one period after the last attempt, or now when there was none.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	last := s.manager.State().Schedule().LastAttempted
	if last.IsZero() {
		return now
	}
	next := last.Add(s.period)
	if next.Before(now) {
		return now
	}
	return next
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		now := s.manager.opts.Now()
		next := s.nextRun(now)
		if err := s.manager.State().UpdateSchedule(func(st *ScheduleState) { st.NextScheduled = next }); err != nil {
			s.log.Warn("failed to save schedule state", logError(err))
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	attempted := s.manager.opts.Now()
	rec, err := s.manager.DownloadToLocal(ctx)

	update := func(st *ScheduleState) {
		st.LastAttempted = attempted
		if err != nil {
			st.FailureCount++
			return
		}
		st.LastSuccessful = attempted
		st.FailureCount = 0
	}
	if serr := s.manager.State().UpdateSchedule(update); serr != nil {
		s.log.Warn("failed to save schedule state", logError(serr))
	}

	if err != nil {
		s.log.Error("scheduled backup failed", logError(err))
		return
	}
	s.log.Info("scheduled backup complete", logString("filename", rec.Filename))
}
