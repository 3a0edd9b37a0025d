/**
 * @description
 * Scheduled job implementations for the cycle engine.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Olamability/SmartAjo-sub002/internal/config"
)

// Orchestrator defines the cycle engine operations the jobs drive.
type Orchestrator interface {
	OnSchedulerTick(ctx context.Context, now time.Time) error
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	orchestrator Orchestrator
	logger       *slog.Logger
	config       config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(orchestrator Orchestrator, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		orchestrator: orchestrator,
		logger:       logger,
		config:       cfg,
	}
}

// RunCycleSweep is the job that re-evaluates every group: activating full
// forming groups, assessing late penalties, and settling complete cycles.
func (j *Jobs) RunCycleSweep() {
	j.logger.Info("starting cycle sweep job")

	timeout := time.Duration(j.config.TickTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := j.orchestrator.OnSchedulerTick(ctx, time.Now().UTC()); err != nil {
		j.logger.Error("cycle sweep job finished with errors", "error", err)
		return
	}

	j.logger.Info("cycle sweep job finished")
}
