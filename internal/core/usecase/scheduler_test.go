package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

type passRunnerFake struct {
	calls   atomic.Int32
	mu      sync.Mutex
	results []error
	panics  int
	started chan struct{}
	release chan struct{}
}

func (f *passRunnerFake) ReconcileAll(context.Context) (domain.ReconcileSummary, error) {
	call := int(f.calls.Add(1))
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if call <= f.panics {
		panic("pass exploded")
	}
	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		return domain.ReconcileSummary{}, err
	}
	return domain.ReconcileSummary{Moved: 1, Total: 1}, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestOrganizerRunsImmediatelyOnStart(t *testing.T) {
	runner := &passRunnerFake{}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.calls.Load() == 1 })
	status := scheduler.Status()
	if !status.IsRunning || status.IntervalMinutes != 60 || status.State != domain.SchedulerRunning {
		t.Fatalf("unexpected status %+v", status)
	}
	waitFor(t, time.Second, func() bool { return scheduler.Status().LastSummary != nil })
	if scheduler.Status().LastSummary.Moved != 1 {
		t.Fatalf("expected last summary to be recorded")
	}
}

func TestOrganizerStartTwiceIsNoop(t *testing.T) {
	runner := &passRunnerFake{}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour})
	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.calls.Load() >= 1 })
	time.Sleep(30 * time.Millisecond)
	if calls := runner.calls.Load(); calls != 1 {
		t.Fatalf("expected a single loop, got %d passes", calls)
	}
}

func TestOrganizerRepeatsEveryInterval(t *testing.T) {
	runner := &passRunnerFake{}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: 10 * time.Millisecond})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.calls.Load() >= 3 })
}

func TestOrganizerTriggerNowRequiresStart(t *testing.T) {
	runner := &passRunnerFake{}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour})

	if _, err := scheduler.TriggerNow(context.Background()); !domain.IsKind(err, domain.ErrNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}

	scheduler.Start(context.Background())
	waitFor(t, time.Second, func() bool { return runner.calls.Load() == 1 })
	summary, err := scheduler.TriggerNow(context.Background())
	if err != nil || summary.Moved != 1 {
		t.Fatalf("TriggerNow() = %+v, %v", summary, err)
	}
	if err := scheduler.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// A stopped organizer still serves on-demand passes.
	if _, err := scheduler.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow() after stop error = %v", err)
	}
}

func TestOrganizerStopWaitsForInFlightPass(t *testing.T) {
	runner := &passRunnerFake{started: make(chan struct{}, 1), release: make(chan struct{})}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour, StopTimeout: 2 * time.Second})
	scheduler.Start(context.Background())
	<-runner.started

	stopped := make(chan error, 1)
	go func() { stopped <- scheduler.Stop() }()

	waitFor(t, time.Second, func() bool { return scheduler.Status().State == domain.SchedulerStopping })
	if scheduler.Status().IsRunning {
		t.Fatalf("stopping organizer must not report running")
	}
	close(runner.release)

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop() did not return")
	}
	if state := scheduler.Status().State; state != domain.SchedulerStopped {
		t.Fatalf("expected stopped, got %s", state)
	}
	if scheduler.Status().LastSummary == nil {
		t.Fatalf("in-flight pass must complete")
	}
	if calls := runner.calls.Load(); calls != 1 {
		t.Fatalf("expected exactly one pass, got %d", calls)
	}
}

func TestOrganizerStopTimeout(t *testing.T) {
	runner := &passRunnerFake{started: make(chan struct{}, 1), release: make(chan struct{})}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour, StopTimeout: 20 * time.Millisecond})
	scheduler.Start(context.Background())
	<-runner.started

	if err := scheduler.Stop(); !domain.IsKind(err, domain.ErrSchedulerFault) {
		t.Fatalf("expected stop timeout, got %v", err)
	}
	if state := scheduler.Status().State; state != domain.SchedulerStopping {
		t.Fatalf("expected stopping while pass is in flight, got %s", state)
	}
	close(runner.release)
	waitFor(t, time.Second, func() bool { return scheduler.Status().State == domain.SchedulerStopped })
}

func TestOrganizerBacksOffAfterFault(t *testing.T) {
	runner := &passRunnerFake{results: []error{errors.New("disk unavailable")}}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour, FaultBackoff: 10 * time.Millisecond})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.calls.Load() >= 2 })
	if !scheduler.Status().IsRunning {
		t.Fatalf("loop must survive a failed pass")
	}
}

func TestOrganizerSurvivesPanickingPass(t *testing.T) {
	runner := &passRunnerFake{panics: 1}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour, FaultBackoff: 10 * time.Millisecond})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.calls.Load() >= 2 })
	if !scheduler.Status().IsRunning {
		t.Fatalf("loop must survive a panicking pass")
	}
}

func TestOrganizerCanRestartAfterStop(t *testing.T) {
	runner := &passRunnerFake{}
	scheduler := NewOrganizerScheduler(runner, OrganizerOptions{Interval: time.Hour})
	scheduler.Start(context.Background())
	waitFor(t, time.Second, func() bool { return runner.calls.Load() == 1 })
	if err := scheduler.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	scheduler.Start(context.Background())
	defer scheduler.Stop()
	waitFor(t, time.Second, func() bool { return runner.calls.Load() == 2 })
}
