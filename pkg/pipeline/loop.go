package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/mockup/pkg/source"
)

// Loop pulls payloads from src one at a time and processes each to
// completion before pulling the next. A failed or rejected job never stops
// the loop.
//
// Cancellation of ctx is checked between jobs: a job already in flight runs
// to completion under a context that ignores the loop's cancellation, and
// Loop then returns. Loop returns a nil error when src reports
// [source.ErrEndOfStream] or ctx is cancelled, and a non-nil error only when
// src fails in a way it could not recover from.
func Loop(ctx context.Context, src source.Source, r *Runner) (Summary, error) {
	var sum Summary
	jobCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			r.logger().Info("job loop stopped", "reason", context.Cause(ctx))
			return sum, nil
		}

		p, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, source.ErrEndOfStream):
				r.logger().Debug("job source exhausted")
				return sum, nil
			case ctx.Err() != nil:
				r.logger().Info("job loop stopped", "reason", context.Cause(ctx))
				return sum, nil
			default:
				return sum, fmt.Errorf("next job: %w", err)
			}
		}

		sum.Received++
		sum.add(r.Process(jobCtx, p))
	}
}
