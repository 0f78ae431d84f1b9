package planner

import (
	"context"
	"testing"

	"github.com/evoagent/core/pkg/vector"
)

func TestEstimateComplexity(t *testing.T) {
	cases := []struct {
		requirement string
		want        Complexity
	}{
		{"Fix a typo in the README", ComplexitySimple},
		{"Add a button to the header", ComplexityMedium},
		{"Integrate payment authentication into checkout", ComplexityComplex},
		{"Migrate the monolith to a distributed architecture", ComplexityVeryComplex},
	}
	for _, c := range cases {
		if got := EstimateComplexity(c.requirement); got != c.want {
			t.Errorf("EstimateComplexity(%q) = %v, want %v", c.requirement, got, c.want)
		}
	}
}

func TestIdentifyCapabilities(t *testing.T) {
	caps := IdentifyCapabilities("Add a login page with a new database table")
	want := map[Capability]bool{CapabilityFrontend: true, CapabilityAuth: true, CapabilityDatabase: true}
	if len(caps) != len(want) {
		t.Fatalf("IdentifyCapabilities() = %v, want 3 capabilities", caps)
	}
	for _, c := range caps {
		if !want[c] {
			t.Errorf("unexpected capability %v", c)
		}
	}
}

func TestIdentifyCapabilities_DefaultsToGeneral(t *testing.T) {
	caps := IdentifyCapabilities("Do the thing")
	if len(caps) != 1 || caps[0] != CapabilityGeneral {
		t.Fatalf("IdentifyCapabilities() = %v, want [general]", caps)
	}
}

func TestSelectMode_TableM(t *testing.T) {
	cases := []struct {
		c    Complexity
		caps []Capability
		want Mode
	}{
		{ComplexitySimple, []Capability{CapabilityFrontend}, ModeA},
		{ComplexityMedium, []Capability{CapabilityBackend, CapabilityDatabase}, ModeB},
		{ComplexityComplex, []Capability{CapabilityBackend, CapabilityDatabase}, ModeB},
		{ComplexityComplex, []Capability{CapabilityFrontend, CapabilityBackend, CapabilityDatabase}, ModeC},
		{ComplexityVeryComplex, []Capability{CapabilityBackend}, ModeD},
	}
	for _, c := range cases {
		if got := SelectMode(c.c, c.caps); got != c.want {
			t.Errorf("SelectMode(%v, %v) = %v, want %v", c.c, c.caps, got, c.want)
		}
	}
}

func TestPlan_ValidateDetectsUnknownDependency(t *testing.T) {
	p := &Plan{Steps: []Step{newStep("a", "x", "d", "missing")}}
	if err := p.Validate(); err == nil {
		t.Fatal("Validate() should fail on unknown dependency")
	}
}

func TestPlan_ValidateDetectsCycle(t *testing.T) {
	p := &Plan{Steps: []Step{
		newStep("a", "x", "d1", "b"),
		newStep("b", "x", "d2", "a"),
	}}
	if err := p.Validate(); err == nil {
		t.Fatal("Validate() should fail on a dependency cycle")
	}
}

func TestPlan_ValidateAcceptsValidDAG(t *testing.T) {
	p := &Plan{Steps: expandSkeleton(ModeB, []Capability{CapabilityBackend})}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestPlanner_Plan_ModeASingleSpecialist(t *testing.T) {
	p := New(nil, nil, nil)
	plan, err := p.Plan(context.Background(), "Fix a typo in the header")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Mode != ModeA {
		t.Fatalf("Mode = %v, want A", plan.Mode)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("Steps = %d, want 1 for mode A", len(plan.Steps))
	}
}

func TestPlanner_Plan_RejectsEmptyRequirement(t *testing.T) {
	p := New(nil, nil, nil)
	if _, err := p.Plan(context.Background(), "   "); err == nil {
		t.Fatal("Plan() should reject an empty requirement")
	}
}

func TestPlanner_Plan_FoldsHistoricalHints(t *testing.T) {
	searchers := map[string]vector.Searcher{
		"knowledge": func(ctx context.Context, query string, limit int) ([]vector.RankedDoc, error) {
			return []vector.RankedDoc{{ID: "pit-1", Body: "known pitfall text", Source: "knowledge"}}, nil
		},
		"plans": func(ctx context.Context, query string, limit int) ([]vector.RankedDoc, error) {
			return []vector.RankedDoc{{ID: "plan-old", Body: "a prior plan body", Source: "plans"}}, nil
		},
	}
	hybrid := vector.NewHybridSearch(searchers)
	p := New(hybrid, nil, nil)

	plan, err := p.Plan(context.Background(), "Add a button to the header")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Steps[0].Risks) == 0 {
		t.Error("expected a risk folded in from the knowledge source")
	}
	if len(plan.Steps[0].ToolHints) == 0 {
		t.Error("expected a tool hint folded in from the plans source")
	}
}

func TestPlanner_Plan_PersistsAsVectorEntry(t *testing.T) {
	store := vector.NewVectorStore(nil, nil)
	p := New(nil, store, nil)

	plan, err := p.Plan(context.Background(), "Add a button to the header")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	entry, ok := store.Get(plan.ID)
	if !ok {
		t.Fatal("expected plan to be persisted as a vector entry")
	}
	if entry.Collection != plansCollection {
		t.Fatalf("Collection = %q, want %q", entry.Collection, plansCollection)
	}
}
