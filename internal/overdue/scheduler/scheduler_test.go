package scheduler

import (
	"context"
	"errors"
	"smartdorm/internal/overdue/service"
	"smartdorm/internal/testutil"
	"testing"
	"time"
)

type runnerFunc func(ctx context.Context, now time.Time) (service.Summary, error)

func (f runnerFunc) RunPass(ctx context.Context, now time.Time) (service.Summary, error) {
	return f(ctx, now)
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := testutil.NewConfig(testutil.NewClock(time.Now()))
	cfg.OverdueSchedule = "every morning"

	_, err := New(runnerFunc(func(context.Context, time.Time) (service.Summary, error) {
		return service.Summary{}, nil
	}), cfg)
	if err == nil {
		t.Fatal("expected an error for an unparseable schedule")
	}
}

func TestScheduler_RunsPassWithConfiguredClock(t *testing.T) {
	fixed := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	cfg := testutil.NewConfig(testutil.NewClock(fixed))
	cfg.OverdueSchedule = "@every 1s"

	calls := make(chan time.Time, 4)
	s, err := New(runnerFunc(func(_ context.Context, now time.Time) (service.Summary, error) {
		calls <- now
		return service.Summary{}, errors.New("database unavailable")
	}), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Start()
	select {
	case now := <-calls:
		if !now.Equal(fixed) {
			t.Errorf("pass ran at %v, want %v", now, fixed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("overdue pass was not triggered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestStop_WaitsForRunningPass(t *testing.T) {
	cfg := testutil.NewConfig(testutil.NewClock(time.Now()))
	cfg.OverdueSchedule = "@every 1s"

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s, err := New(runnerFunc(func(context.Context, time.Time) (service.Summary, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return service.Summary{}, nil
	}), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("overdue pass was not triggered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want deadline exceeded while the pass runs", err)
	}
	close(release)
}
