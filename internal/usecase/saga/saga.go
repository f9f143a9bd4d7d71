// Package saga runs an ordered list of steps where each step may carry a
// compensating action.
package saga

import (
	"context"
	"errors"
	"log/slog"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
)

// Step is one unit of a saga. A failing Critical step stops the run and
// compensates the steps already done, newest first. Failures of other steps
// are recorded and the run continues. Compensate may be nil.
//
// Cancellation is only observed before Critical steps. Other steps run on a
// context detached from cancellation, so work already committed is finished.
type Step struct {
	Name       string
	Critical   bool
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

type Outcome struct {
	Name        string
	Err         error
	Skipped     bool
	Compensated bool
}

func (o Outcome) Succeeded() bool { return o.Err == nil && !o.Skipped }

type Result struct {
	Outcomes []Outcome
	Aborted  bool
}

// Failed lists outcomes whose action returned an error.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every step error, or nil.
func (r Result) Err() error {
	var joined []error
	for _, o := range r.Failed() {
		joined = append(joined, errs.Wrapf(o.Err, "step %s", o.Name))
	}
	return errors.Join(joined...)
}

// Run executes steps in order. Steps after an abort are reported as skipped.
func Run(ctx context.Context, steps []Step) Result {
	result := Result{Outcomes: make([]Outcome, 0, len(steps))}
	done := make([]int, 0, len(steps))

	for i, step := range steps {
		if result.Aborted {
			result.Outcomes = append(result.Outcomes, Outcome{Name: step.Name, Skipped: true})
			continue
		}
		stepCtx := ctx
		if step.Critical {
			if err := ctx.Err(); err != nil {
				result.Outcomes = append(result.Outcomes, Outcome{Name: step.Name, Err: errs.Wrap(err, "check context")})
				result.Aborted = true
				compensate(ctx, steps, done, &result)
				continue
			}
		} else {
			stepCtx = context.WithoutCancel(ctx)
		}

		err := step.Action(stepCtx)
		result.Outcomes = append(result.Outcomes, Outcome{Name: step.Name, Err: err})
		if err == nil {
			done = append(done, i)
			continue
		}

		logging.Warn(ctx, "saga step failed",
			slog.String("step", step.Name),
			slog.Bool("critical", step.Critical),
			slog.Any("err", errs.Loggable(err)),
		)
		if step.Critical {
			result.Aborted = true
			compensate(ctx, steps, done, &result)
		}
	}
	return result
}

func compensate(ctx context.Context, steps []Step, done []int, result *Result) {
	for i := len(done) - 1; i >= 0; i-- {
		idx := done[i]
		if steps[idx].Compensate == nil {
			continue
		}
		if err := steps[idx].Compensate(context.WithoutCancel(ctx)); err != nil {
			logging.Error(ctx, "saga compensation failed",
				slog.String("step", steps[idx].Name),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		result.Outcomes[idx].Compensated = true
	}
}
