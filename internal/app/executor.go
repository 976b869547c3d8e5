package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// ExecutionStep names a stage of a mutating use case. Stages run in the
// order validate, perform, verify, archive: nothing is persisted until
// verify has accepted the performed result.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
)

// ExecutionError reports the stage at which a use case stopped.
type ExecutionError struct {
	Step  ExecutionStep
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Step is one stage of a use case. Stages share state through closures.
type Step struct {
	Name ExecutionStep
	Run  func(ctx context.Context) error
}

// Executor runs use cases as a fixed sequence of stages and logs where
// they stop.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor falls back to slog.Default when logger is nil.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Run executes steps in order and stops at the first failure, which is
// returned as an *ExecutionError. A nil Run is skipped.
func (e *Executor) Run(ctx context.Context, operation string, steps ...Step) error {
	logger, ok := logging.Lookup(ctx)
	if !ok {
		logger = e.logger
	}

	logger = logger.With(slog.String("operation", operation))
	start := time.Now()

	for _, step := range steps {
		if step.Run == nil {
			continue
		}

		if err := step.Run(ctx); err != nil {
			level := slog.LevelError
			if domain.IsValidation(err) || domain.IsInvalidFormat(err) {
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "operation stopped",
				slog.String("step", string(step.Name)),
				slog.Any("error", err),
			)

			return &ExecutionError{Step: step.Name, Cause: err}
		}

		logger.Log(ctx, logging.LevelTrace, "step done", slog.String("step", string(step.Name)))
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return nil
}

// IsExecutionError reports whether err came out of Executor.Run.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

// GetExecutionStep returns the stage at which err stopped a use case.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
