package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// compensator collects undo actions as forward steps of a multi-write
// operation succeed. There is no cross-entity transaction underneath, so a
// failure mid-way is unwound by running the collected actions in reverse.
// A failed undo is logged and the remaining ones still run; partially failed
// compensation is surfaced to operations, never to the shopper.
type compensator struct {
	steps []undoStep
	log   *zap.Logger
}

type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

func newCompensator(log *zap.Logger) *compensator {
	return &compensator{log: log}
}

func (c *compensator) push(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, undo: undo})
}

// rollback runs the undo actions LIFO. It uses a fresh deadline so that
// compensation still happens when the triggering failure was the caller's
// context expiring.
func (c *compensator) rollback(ctx context.Context) {
	if len(c.steps) == 0 {
		return
	}
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(undoCtx); err != nil {
			c.log.Error("compensation step failed",
				zap.String("step", step.name),
				zap.Error(err))
		}
	}
	c.steps = nil
}
