package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Stage is one step of the offline analysis run. Check verifies the stage's
// preconditions against the current graph state; Run does the work.
type Stage interface {
	Name() string
	Check(ctx context.Context) error
	Run(ctx context.Context) error
}

// StageResult records the outcome of one executed stage
type StageResult struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Pipeline drives stages sequentially. At most one run is in flight at a
// time; a second caller gets an error instead of a queued run, since a
// concurrent analysis would race on the community partition.
type Pipeline struct {
	stages []Stage
	mu     sync.Mutex
	logger *zap.Logger
}

// New creates a pipeline over the given stages, run in order
func New(stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: stages,
		logger: logger.Named("pipeline"),
	}
}

// Run executes the stages in order, aborting on the first failed check or
// stage error. Partial progress up to the failure is returned.
func (p *Pipeline) Run(ctx context.Context) ([]StageResult, error) {
	if !p.mu.TryLock() {
		return nil, fmt.Errorf("an analysis run is already in progress")
	}
	defer p.mu.Unlock()

	start := time.Now()
	var results []StageResult

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("analysis cancelled before stage %s: %w", stage.Name(), err)
		}

		if err := stage.Check(ctx); err != nil {
			p.logger.Error("Stage precondition failed",
				zap.String("stage", stage.Name()),
				zap.Error(err),
			)
			return results, err
		}

		stageStart := time.Now()
		p.logger.Info("Running stage", zap.String("stage", stage.Name()))

		if err := stage.Run(ctx); err != nil {
			p.logger.Error("Stage failed",
				zap.String("stage", stage.Name()),
				zap.Duration("duration", time.Since(stageStart)),
				zap.Bool("retryable", apperrors.IsRetryable(err)),
				zap.Error(err),
			)
			return results, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		results = append(results, StageResult{Stage: stage.Name(), Duration: time.Since(stageStart)})
		p.logger.Info("Stage completed",
			zap.String("stage", stage.Name()),
			zap.Duration("duration", time.Since(stageStart)),
		)
	}

	p.logger.Info("Analysis run completed",
		zap.Int("stages", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}
