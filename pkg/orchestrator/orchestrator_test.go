package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evoagent/core/pkg/planner"
)

func testConfig() Config {
	return Config{StepTimeout: time.Second, MaxRetries: 2, BaseBackoff: time.Millisecond}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{
		{ID: "write", Description: "Write the implementation"},
		{ID: "review", Description: "Review the implementation", Dependencies: []string{"write"}},
	}}
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		return StepOutput{Output: "ok"}, nil
	}, testConfig(), nil)

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.CompletedSteps != 2 {
		t.Fatalf("result = %+v, want success with 2 completed steps", result)
	}
}

func TestExecute_SkipsStepWithUnmetDependency(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{
		{ID: "a", Description: "first"},
		{ID: "b", Description: "second", Dependencies: []string{"missing"}},
	}}
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		if s.ID == "b" {
			t.Fatal("step b should never be dispatched")
		}
		return StepOutput{}, nil
	}, testConfig(), nil)

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.StepResults[1].Skipped {
		t.Fatalf("step b should be skipped, got %+v", result.StepResults[1])
	}
}

func TestExecute_CriticalStepFailureAbortsPlan(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{
		{ID: "setup", Description: "setup the environment"},
		{ID: "build", Description: "build the app", Dependencies: []string{"setup"}},
	}}
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		if s.ID == "setup" {
			return StepOutput{}, errors.New("unauthorized: bad credentials")
		}
		t.Fatal("build should never run after critical setup failure")
		return StepOutput{}, nil
	}, testConfig(), nil)

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatal("result.Success should be false when a critical step fails")
	}
	if !result.StepResults[1].Skipped {
		t.Fatalf("build should be skipped after abort, got %+v", result.StepResults[1])
	}
}

func TestExecute_RetriesRetryableErrorThenSucceeds(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{{ID: "fetch", Description: "fetch data"}}}
	calls := 0
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		calls++
		if calls < 2 {
			return StepOutput{}, errors.New("network connection refused")
		}
		return StepOutput{Output: "done"}, nil
	}, testConfig(), nil)

	result, err := o.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result should succeed after retry, got %+v", result)
	}
	if result.StepResults[0].Retries != 1 {
		t.Fatalf("Retries = %d, want 1", result.StepResults[0].Retries)
	}
}

func TestExecute_NonRetryableErrorFailsImmediately(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{{ID: "a", Description: "generic step"}}}
	calls := 0
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		calls++
		return StepOutput{}, errors.New("syntax error in generated code")
	}, testConfig(), nil)

	result, _ := o.Execute(context.Background(), plan)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on non-retryable error)", calls)
	}
	if result.StepResults[0].Success {
		t.Fatal("step should have failed")
	}
}

func TestExecute_AccumulatesArtifacts(t *testing.T) {
	plan := &planner.Plan{Steps: []planner.Step{{ID: "write", Description: "write code"}}}
	o := New(func(ctx context.Context, s planner.Step) (StepOutput, error) {
		return StepOutput{Artifacts: []string{"main.go"}}, nil
	}, testConfig(), nil)

	result, _ := o.Execute(context.Background(), plan)
	if len(result.Artifacts) != 1 || result.Artifacts[0] != "main.go" {
		t.Fatalf("Artifacts = %v, want [main.go]", result.Artifacts)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg           string
		retryable     bool
		backoffFactor int
	}{
		{"request timed out", true, 2},
		{"network connection refused", true, 1},
		{"rate limit exceeded, too many requests", true, 5},
		{"unauthorized access", false, 0},
		{"syntax error: unexpected token", false, 0},
		{"some unknown failure", true, 1},
	}
	for _, c := range cases {
		retryable, factor := classify(c.msg)
		if retryable != c.retryable || factor != c.backoffFactor {
			t.Errorf("classify(%q) = (%v, %d), want (%v, %d)", c.msg, retryable, factor, c.retryable, c.backoffFactor)
		}
	}
}

func TestIsCritical(t *testing.T) {
	if !isCritical(0, "anything") {
		t.Error("first step should always be critical")
	}
	if !isCritical(2, "bootstrap the database") {
		t.Error("step mentioning bootstrap should be critical")
	}
	if isCritical(2, "write the frontend component") {
		t.Error("unrelated step should not be critical")
	}
}
