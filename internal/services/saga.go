package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// sagaStep is one forward action and the action that undoes it.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga runs steps in order. When a step fails, the compensations of the steps that
// already succeeded run in reverse order. A failed compensation is logged and not retried.
type saga struct {
	steps               []sagaStep
	logger              *slog.Logger
	compensationTimeout time.Duration
}

type sagaStepError struct {
	step int
	name string
	err  error
}

func (e *sagaStepError) Error() string { return fmt.Sprintf("%s: %v", e.name, e.err) }

func (e *sagaStepError) Unwrap() error { return e.err }

func (sg *saga) run(ctx context.Context) error {
	for i, step := range sg.steps {
		if err := step.run(ctx); err != nil {
			sg.compensate(ctx, i)
			return &sagaStepError{step: i, name: step.name, err: err}
		}
	}
	return nil
}

func (sg *saga) compensate(ctx context.Context, failed int) {
	// Compensation must run even when the request context is already done.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sg.compensationTimeout)
	defer cancel()
	for i := failed - 1; i >= 0; i-- {
		step := sg.steps[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			sg.logger.ErrorContext(ctx, "compensation failed", "step", step.name, "err", err)
		}
	}
}
