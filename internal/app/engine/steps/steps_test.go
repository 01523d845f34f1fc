package steps

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestRun_AllSucceed(t *testing.T) {
	var order []string
	ss := []Step{
		{Name: "first", Run: func(ctx context.Context) error {
			order = append(order, "first")
			return nil
		}},
		{Name: "second", Run: func(ctx context.Context) error {
			order = append(order, "second")
			return nil
		}},
	}

	if err := Run(context.Background(), zap.NewNop(), "test_op", ss); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("steps ran out of order: %v", order)
	}
}

func TestRun_ContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	ss := []Step{
		{Name: "fails", Run: func(ctx context.Context) error { return boom }},
		{Name: "still runs", Run: func(ctx context.Context) error {
			ran = true
			return nil
		}},
	}

	err := Run(context.Background(), zap.NewNop(), "test_op", ss)
	if !ran {
		t.Error("later step did not run after earlier failure")
	}

	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailure, got %v", err)
	}
	if len(pf.Failed) != 1 || pf.Failed[0].Step != "fails" {
		t.Errorf("failed steps: %+v", pf.Failed)
	}
	if !errors.Is(pf.Failed[0].Err, boom) {
		t.Errorf("step error not preserved: %v", pf.Failed[0].Err)
	}
}

func TestRun_AppliedSkipsStep(t *testing.T) {
	ran := false
	ss := []Step{
		{
			Name:    "already done",
			Applied: func(ctx context.Context) (bool, error) { return true, nil },
			Run: func(ctx context.Context) error {
				ran = true
				return nil
			},
		},
	}

	if err := Run(context.Background(), zap.NewNop(), "test_op", ss); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if ran {
		t.Error("step ran despite Applied reporting true")
	}
}

func TestRun_ProbeErrorRunsStepAnyway(t *testing.T) {
	ran := false
	ss := []Step{
		{
			Name:    "probe fails",
			Applied: func(ctx context.Context) (bool, error) { return false, errors.New("probe down") },
			Run: func(ctx context.Context) error {
				ran = true
				return nil
			},
		},
	}

	if err := Run(context.Background(), zap.NewNop(), "test_op", ss); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !ran {
		t.Error("step skipped after probe error")
	}
}

func TestRun_CancelledContextMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ss := []Step{
		{Name: "cancels", Run: func(ctx context.Context) error {
			cancel()
			return nil
		}},
		{Name: "never runs", Run: func(ctx context.Context) error {
			t.Error("step ran after cancellation")
			return nil
		}},
	}

	err := Run(ctx, zap.NewNop(), "test_op", ss)
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailure, got %v", err)
	}
	if len(pf.Failed) != 1 || pf.Failed[0].Step != "never runs" {
		t.Errorf("failed steps: %+v", pf.Failed)
	}
	if !errors.Is(pf.Failed[0].Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", pf.Failed[0].Err)
	}
}
