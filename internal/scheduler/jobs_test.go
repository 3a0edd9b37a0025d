package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Olamability/SmartAjo-sub002/internal/config"
)

type orchestratorStub struct {
	called  bool
	gotNow  time.Time
	tickErr error
}

func (s *orchestratorStub) OnSchedulerTick(ctx context.Context, now time.Time) error {
	s.called = true
	s.gotNow = now
	return s.tickErr
}

func newTestJobs(stub *orchestratorStub, cfg config.Config) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(stub, logger, cfg)
}

func TestRunCycleSweep_InvokesOrchestrator(t *testing.T) {
	stub := &orchestratorStub{}
	jobs := newTestJobs(stub, config.Config{TickTimeoutSeconds: 60})

	jobs.RunCycleSweep()

	if !stub.called {
		t.Fatal("expected orchestrator tick to be invoked")
	}
	if stub.gotNow.Location() != time.UTC {
		t.Fatalf("expected UTC tick time, got %v", stub.gotNow.Location())
	}
}

func TestRunCycleSweep_SurvivesTickErrors(t *testing.T) {
	stub := &orchestratorStub{tickErr: errors.New("2 group errors")}
	jobs := newTestJobs(stub, config.Config{TickTimeoutSeconds: 60})

	// Must not panic; the error is logged and the next run proceeds.
	jobs.RunCycleSweep()
	jobs.RunCycleSweep()

	if !stub.called {
		t.Fatal("expected orchestrator tick to be invoked")
	}
}

func TestRunCycleSweep_DefaultsTimeoutWhenUnset(t *testing.T) {
	stub := &orchestratorStub{}
	jobs := newTestJobs(stub, config.Config{})

	jobs.RunCycleSweep()

	if !stub.called {
		t.Fatal("expected orchestrator tick to be invoked despite unset timeout")
	}
}
