// Package steps runs multi-record flows as ordered, individually
// idempotent sub-steps.
//
// The store offers no cross-document atomicity, so an operation like
// "accept a join request" is a sequence of independent writes. Each step
// carries an optional Applied probe so a retried operation skips work a
// previous attempt already committed, and failures are collected rather
// than aborting the sequence: the caller gets a PartialFailure naming
// exactly which effects still need reconciliation.
package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Step is one independent write in a multi-record flow.
type Step struct {
	Name string

	// Applied reports whether the step's effect is already present.
	// Optional; when nil the step always runs. Run must still be safe to
	// re-execute, since the probe and the write are not atomic.
	Applied func(ctx context.Context) (bool, error)

	Run func(ctx context.Context) error
}

// StepError records one failed step.
type StepError struct {
	Step string
	Err  error
}

// PartialFailure reports a flow whose primary effect may have committed
// while some sub-steps failed. Callers surface success for the primary
// effect and log the failed steps for reconciliation.
type PartialFailure struct {
	Op     string
	Failed []StepError
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d step(s) failed: %s", p.Op, len(p.Failed), strings.Join(p.StepNames(), ", "))
}

// StepNames lists the names of the failed steps.
func (p *PartialFailure) StepNames() []string {
	names := make([]string, len(p.Failed))
	for i, f := range p.Failed {
		names[i] = f.Step
	}
	return names
}

// Run executes the steps in order, continuing past failures. It returns
// nil when everything succeeded, otherwise a *PartialFailure listing the
// failed steps. A context cancellation stops the sequence and marks the
// remaining steps failed with the context error.
func Run(ctx context.Context, log *zap.Logger, op string, ss []Step) error {
	var failed []StepError

	for i, st := range ss {
		if err := ctx.Err(); err != nil {
			for _, rest := range ss[i:] {
				failed = append(failed, StepError{Step: rest.Name, Err: err})
			}
			break
		}

		if st.Applied != nil {
			done, err := st.Applied(ctx)
			if err != nil {
				log.Warn("step probe failed, running step anyway",
					zap.String("op", op), zap.String("step", st.Name), zap.Error(err))
			} else if done {
				continue
			}
		}

		if err := st.Run(ctx); err != nil {
			log.Error("step failed",
				zap.String("op", op), zap.String("step", st.Name), zap.Error(err))
			failed = append(failed, StepError{Step: st.Name, Err: err})
		}
	}

	if len(failed) > 0 {
		return &PartialFailure{Op: op, Failed: failed}
	}
	return nil
}
