package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/evoagent/core/pkg/errs"
	"github.com/evoagent/core/pkg/vector"
)

// plansCollection is the vector collection plans are persisted to, so
// future runs can learn from similar past ones.
const plansCollection = "plans"

// Planner turns a user requirement into a validated Plan.
type Planner struct {
	hybrid *vector.HybridSearch
	store  *vector.VectorStore
	logger *slog.Logger
}

// New creates a Planner. hybrid and store may be nil, in which case step
// (f) (historical-plan retrieval) and plan persistence are skipped.
func New(hybrid *vector.HybridSearch, store *vector.VectorStore, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{hybrid: hybrid, store: store, logger: logger}
}

// Plan runs the full planning pipeline: complexity, capabilities,
// duration, mode selection, skeleton expansion, historical-context
// refinement, validation, and persistence.
func (p *Planner) Plan(ctx context.Context, requirement string) (*Plan, error) {
	if strings.TrimSpace(requirement) == "" {
		return nil, errs.NewValidation("requirement must not be empty")
	}

	complexity := EstimateComplexity(requirement)
	capabilities := IdentifyCapabilities(requirement)
	mode := SelectMode(complexity, capabilities)
	duration := EstimateDuration(complexity)
	steps := expandSkeleton(mode, capabilities)

	plan := &Plan{
		ID:           newPlanID(),
		Requirement:  requirement,
		Complexity:   complexity,
		Capabilities: capabilities,
		Mode:         mode,
		Duration:     duration,
		Steps:        steps,
		CreatedAt:    time.Now(),
	}

	p.refineWithHistory(ctx, plan)

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	p.persist(ctx, plan)
	return plan, nil
}

// refineWithHistory retrieves similar historical plans and knowledge via
// HybridSearch and folds tool hints / risks into the first step.
// Retrieval failures are logged and otherwise
// ignored — planning must still succeed without history.
func (p *Planner) refineWithHistory(ctx context.Context, plan *Plan) {
	if p.hybrid == nil || len(plan.Steps) == 0 {
		return
	}
	results, err := p.hybrid.Search(ctx, plan.Requirement, vector.HybridOptions{Limit: 5})
	if err != nil {
		p.logger.Warn("historical plan retrieval failed, planning without it", "error", err)
		return
	}

	var hints, risks []string
	for _, r := range results {
		for _, source := range r.Sources {
			if source == "knowledge" {
				risks = append(risks, "review related knowledge item: "+r.Doc.ID)
			}
		}
		if r.Doc.Source == plansCollection {
			hints = append(hints, "consider prior plan "+r.Doc.ID)
		}
	}
	if len(hints) > 0 {
		plan.Steps[0].ToolHints = append(plan.Steps[0].ToolHints, hints...)
	}
	if len(risks) > 0 {
		plan.Steps[0].Risks = append(plan.Steps[0].Risks, risks...)
	}
}

// persist inserts plan as a vector entry in the "plans" collection.
// Persistence failures are logged, never fatal to planning.
func (p *Planner) persist(ctx context.Context, plan *Plan) {
	if p.store == nil {
		return
	}
	body, err := json.Marshal(plan)
	if err != nil {
		p.logger.Warn("failed to marshal plan for persistence", "plan_id", plan.ID, "error", err)
		return
	}
	_, err = p.store.Add(ctx, vector.VectorEntry{
		ID:         plan.ID,
		Collection: plansCollection,
		Content:    string(body),
		Metadata: map[string]any{
			"requirement": plan.Requirement,
			"complexity":  string(plan.Complexity),
			"mode":        string(plan.Mode),
		},
	})
	if err != nil {
		p.logger.Warn("failed to persist plan", "plan_id", plan.ID, "error", err)
	}
}
