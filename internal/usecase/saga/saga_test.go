package saga

import (
	"context"
	"errors"
	"testing"
)

func TestRunContinuesPastNonCriticalFailure(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	step := func(name string, critical bool, err error) Step {
		return Step{Name: name, Critical: critical, Action: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}

	result := Run(context.Background(), []Step{
		step("create", true, nil),
		step("link", false, boom),
		step("plan-1", false, nil),
	})

	if result.Aborted {
		t.Fatalf("Run() aborted on non-critical failure")
	}
	if len(order) != 3 || order[2] != "plan-1" {
		t.Fatalf("execution order = %v", order)
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Name != "link" {
		t.Fatalf("Failed() = %+v", failed)
	}
	if !errors.Is(result.Err(), boom) {
		t.Fatalf("Err() = %v, want boom", result.Err())
	}
}

func TestRunAbortsAndCompensatesInReverse(t *testing.T) {
	var compensated []string
	comp := func(name string) func(context.Context) error {
		return func(context.Context) error {
			compensated = append(compensated, name)
			return nil
		}
	}
	ok := func(context.Context) error { return nil }

	result := Run(context.Background(), []Step{
		{Name: "a", Critical: true, Action: ok, Compensate: comp("a")},
		{Name: "b", Critical: true, Action: ok},
		{Name: "c", Critical: true, Action: ok, Compensate: comp("c")},
		{Name: "d", Critical: true, Action: func(context.Context) error { return errors.New("fail") }},
		{Name: "e", Action: ok},
	})

	if !result.Aborted {
		t.Fatalf("Run() Aborted = false")
	}
	if len(compensated) != 2 || compensated[0] != "c" || compensated[1] != "a" {
		t.Fatalf("compensated = %v, want [c a]", compensated)
	}
	if !result.Outcomes[4].Skipped {
		t.Fatalf("step after abort not skipped: %+v", result.Outcomes[4])
	}
	if result.Outcomes[1].Compensated {
		t.Fatalf("step without compensation marked compensated")
	}
}

func TestRunWithNilCompensationsLeavesWorkInPlace(t *testing.T) {
	result := Run(context.Background(), []Step{
		{Name: "upload", Critical: true, Action: func(context.Context) error { return nil }},
		{Name: "create", Critical: true, Action: func(context.Context) error { return errors.New("db down") }},
	})

	if !result.Aborted || result.Outcomes[0].Compensated {
		t.Fatalf("Run() = %+v", result)
	}
	if !result.Outcomes[0].Succeeded() {
		t.Fatalf("upload outcome = %+v, want succeeded", result.Outcomes[0])
	}
}

func TestRunFinishesNonCriticalStepsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	result := Run(ctx, []Step{
		{Name: "create", Critical: true, Action: func(context.Context) error {
			cancel()
			return nil
		}},
		{Name: "link", Action: func(stepCtx context.Context) error {
			ran = append(ran, "link")
			return stepCtx.Err()
		}},
		{Name: "plan-1", Action: func(stepCtx context.Context) error {
			ran = append(ran, "plan-1")
			return stepCtx.Err()
		}},
	})

	if result.Aborted {
		t.Fatalf("Run() aborted after cancel: %+v", result)
	}
	if len(ran) != 2 {
		t.Fatalf("ran = %v, want [link plan-1]", ran)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}

func TestRunStopsBeforeCriticalStepWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result := Run(ctx, []Step{
		{Name: "create", Critical: true, Action: func(context.Context) error {
			called = true
			return nil
		}},
		{Name: "link", Action: func(context.Context) error { return nil }},
	})

	if called || !result.Aborted {
		t.Fatalf("Run() called=%v result=%+v", called, result)
	}
	if !errors.Is(result.Err(), context.Canceled) {
		t.Fatalf("Err() = %v, want context.Canceled", result.Err())
	}
	if !result.Outcomes[1].Skipped {
		t.Fatalf("step after abort not skipped: %+v", result.Outcomes[1])
	}
}
