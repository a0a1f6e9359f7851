package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

const (
	defaultOrganizerInterval     = 60 * time.Minute
	defaultOrganizerFaultBackoff = 60 * time.Second
	defaultOrganizerStopTimeout  = 5 * time.Second
)

type passRunner interface {
	ReconcileAll(ctx context.Context) (domain.ReconcileSummary, error)
}

type OrganizerOptions struct {
	Interval     time.Duration
	FaultBackoff time.Duration
	StopTimeout  time.Duration
	Logger       *slog.Logger
}

// OrganizerScheduler drives reconciliation passes in the background: one pass
// on start, then one per interval until Stop.
type OrganizerScheduler struct {
	reconciler   passRunner
	interval     time.Duration
	faultBackoff time.Duration
	stopTimeout  time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	state   domain.SchedulerState
	started bool
	stopCh  chan struct{}
	done    chan struct{}

	lastMu      sync.Mutex
	lastRunAt   time.Time
	lastSummary *domain.ReconcileSummary
}

func NewOrganizerScheduler(reconciler passRunner, options OrganizerOptions) *OrganizerScheduler {
	if options.Interval <= 0 {
		options.Interval = defaultOrganizerInterval
	}
	if options.FaultBackoff <= 0 {
		options.FaultBackoff = defaultOrganizerFaultBackoff
	}
	if options.StopTimeout <= 0 {
		options.StopTimeout = defaultOrganizerStopTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrganizerScheduler{
		reconciler:   reconciler,
		interval:     options.Interval,
		faultBackoff: options.FaultBackoff,
		stopTimeout:  options.StopTimeout,
		logger:       logger.With("component", "organizer"),
		now:          time.Now,
		state:        domain.SchedulerStopped,
	}
}

// Start launches the background loop. Passes run detached from ctx cancellation;
// use Stop to end the loop.
func (s *OrganizerScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SchedulerStopped {
		s.logger.Warn("organizer_already_running", "state", string(s.state))
		return
	}
	s.state = domain.SchedulerRunning
	s.started = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(context.WithoutCancel(ctx), s.stopCh, s.done)
	s.logger.Info("organizer_started", "interval", s.interval.String())
}

// Stop signals the loop and waits up to the stop timeout for the current pass
// to finish. A pass is never interrupted mid-record.
func (s *OrganizerScheduler) Stop() error {
	s.mu.Lock()
	if s.state != domain.SchedulerRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SchedulerStopping
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		s.logger.Info("organizer_stopped")
		return nil
	case <-timer.C:
		s.logger.Warn("organizer_stop_timeout", "timeout", s.stopTimeout.String())
		return domain.WrapError(domain.ErrSchedulerFault, "stop organizer",
			fmt.Errorf("pass still running after %s", s.stopTimeout))
	}
}

// TriggerNow runs one pass on the caller's goroutine. It may overlap a
// background pass; the record store serializes work on the same trip.
func (s *OrganizerScheduler) TriggerNow(ctx context.Context) (domain.ReconcileSummary, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return domain.ReconcileSummary{}, domain.WrapError(domain.ErrNotStarted, "trigger organizer", fmt.Errorf("organizer was never started"))
	}
	s.logger.Info("organizer_triggered")
	return s.runPass(ctx)
}

func (s *OrganizerScheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	status := domain.SchedulerStatus{
		IsRunning:       state == domain.SchedulerRunning,
		IntervalMinutes: int(s.interval / time.Minute),
		State:           state,
	}
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if !s.lastRunAt.IsZero() {
		lastRunAt := s.lastRunAt
		status.LastRunAt = &lastRunAt
	}
	if s.lastSummary != nil {
		summary := *s.lastSummary
		status.LastSummary = &summary
	}
	return status
}

func (s *OrganizerScheduler) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.state = domain.SchedulerStopped
		s.mu.Unlock()
	}()

	for {
		wait := s.interval
		if _, err := s.runPass(ctx); err != nil {
			s.logger.Error("organizer_pass_fault", "error", err, "backoff", s.faultBackoff.String())
			wait = s.faultBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *OrganizerScheduler) runPass(ctx context.Context) (summary domain.ReconcileSummary, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
		if err != nil {
			err = domain.WrapError(domain.ErrSchedulerFault, "organizer pass", err)
		}
		s.lastMu.Lock()
		s.lastRunAt = s.now().UTC()
		recorded := summary
		s.lastSummary = &recorded
		s.lastMu.Unlock()
	}()
	return s.reconciler.ReconcileAll(ctx)
}
