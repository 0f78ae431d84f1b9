package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evoagent/core/pkg/errs"
)

// Step is one unit of work in a Plan's DAG.
type Step struct {
	ID           string   `json:"id"`
	Agent        string   `json:"agent"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	ToolHints    []string `json:"tool_hints,omitempty"`
	Risks        []string `json:"risks,omitempty"`
}

// Plan is the validated output of the Planner.
type Plan struct {
	ID           string        `json:"id"`
	Requirement  string        `json:"requirement"`
	Complexity   Complexity    `json:"complexity"`
	Capabilities []Capability  `json:"capabilities"`
	Mode         Mode          `json:"mode"`
	Duration     DurationRange `json:"duration"`
	Steps        []Step        `json:"steps"`
	CreatedAt    time.Time     `json:"created_at"`
}

func newStep(id, agent, description string, deps ...string) Step {
	return Step{ID: id, Agent: agent, Description: description, Dependencies: deps}
}

// expandSkeleton builds the canonical step list for mode.
func expandSkeleton(mode Mode, capabilities []Capability) []Step {
	switch mode {
	case ModeA:
		agent := string(capabilities[0]) + "-specialist"
		return []Step{newStep("step-1", agent, "Implement the requirement end-to-end")}

	case ModeB:
		return []Step{
			newStep("write", "codewriter", "Write the implementation"),
			newStep("review", "reviewer", "Review the implementation", "write"),
			newStep("test", "tester", "Test the implementation", "review"),
		}

	case ModeC:
		steps := make([]Step, 0, len(capabilities)+1)
		writerIDs := make([]string, 0, len(capabilities))
		for _, cap := range capabilities {
			id := "write-" + string(cap)
			steps = append(steps, newStep(id, string(cap)+"-writer", fmt.Sprintf("Implement the %s portion", cap)))
			writerIDs = append(writerIDs, id)
		}
		steps = append(steps, newStep("integrate", "integrator", "Integrate parallel work streams", writerIDs...))
		return steps

	case ModeD:
		return []Step{
			newStep("plan-1", "planner", "Produce an initial sub-plan"),
			newStep("execute-1", "codewriter", "Execute the initial sub-plan", "plan-1"),
			newStep("plan-2", "planner", "Re-plan based on execution results", "execute-1"),
			newStep("execute-2", "codewriter", "Execute the refined sub-plan", "plan-2"),
		}

	default:
		return []Step{newStep("step-1", "codewriter", "Implement the requirement")}
	}
}

// Validate checks every dependency resolves to a known step id and that
// the dependency graph is acyclic.
func (p *Plan) Validate() error {
	ids := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		ids[s.ID] = true
	}
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			if !ids[dep] {
				return errs.NewValidation("step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}
	if cycle := findCycle(p.Steps); cycle != "" {
		return errs.NewValidation("plan has a dependency cycle involving step %q", cycle)
	}
	return nil
}

// findCycle runs a DFS over the dependency graph, returning the id of a
// step involved in a cycle, or "" if the graph is acyclic.
func findCycle(steps []Step) string {
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.ID] = s.Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(steps))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, dep := range deps[id] {
			if cyc := visit(dep); cyc != "" {
				return cyc
			}
		}
		state[id] = done
		return ""
	}

	for _, s := range steps {
		if cyc := visit(s.ID); cyc != "" {
			return cyc
		}
	}
	return ""
}

func newPlanID() string {
	return uuid.New().String()
}
