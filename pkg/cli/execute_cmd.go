package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evoagent/core/pkg/logger"
	"github.com/evoagent/core/pkg/orchestrator"
	"github.com/evoagent/core/pkg/planner"
	"github.com/evoagent/core/pkg/sessionlog"
	"github.com/evoagent/core/pkg/vector"
)

// ExecuteCmd plans and runs a single requirement end to end: it builds a
// Plan with the planner, then drives it through the orchestrator.
//
// Step execution itself (calling an LLM, running a tool) is an external
// collaborator's job; this command plugs in a pass-through Executor that
// records each step without performing real work, so the command is
// useful for exercising planning/orchestration wiring and CI smoke
// checks even when no LLM/tool adapter is configured.
type ExecuteCmd struct {
	Input     string `arg:"" help:"The requirement to plan and execute."`
	Type      string `help:"Input type hint (freeform label, not interpreted)." default:"task"`
	Session   string `help:"Session ID to log this run under. A new one is created if omitted."`
	Workspace string `help:"Working directory steps should treat as their root." default:"."`
	Model     string `help:"Override the configured LLM model for this run."`
}

func (cmd *ExecuteCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if cmd.Model != "" && cfg.LLM != nil {
		cfg.LLM.Model = cmd.Model
	}

	sessions, err := openSessionLog(cfg)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	sessionID := cmd.Session
	if sessionID == "" {
		sessionID = fmt.Sprintf("exec-%d", time.Now().UnixNano())
	}
	if err := sessions.Create(sessionID, "cli"); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	sink, closeSink, err := openEventSink(cfg, sessions)
	if err != nil {
		return err
	}
	defer closeSink()

	vs, provider, err := openVectorStore(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	hybrid := vector.NewHybridSearch(map[string]vector.Searcher{
		"vector": func(ctx context.Context, query string, limit int) ([]vector.RankedDoc, error) {
			hits, err := vs.Search(ctx, query, vector.SearchOptions{Collection: "plans", Limit: limit})
			if err != nil {
				return nil, err
			}
			docs := make([]vector.RankedDoc, 0, len(hits))
			for _, h := range hits {
				docs = append(docs, vector.RankedDoc{ID: h.Entry.ID, Body: h.Entry.Content, Source: "vector", Metadata: h.Entry.Metadata})
			}
			return docs, nil
		},
	})

	p := planner.New(hybrid, vs, logger.GetLogger())
	ctx := context.Background()
	plan, err := p.Plan(ctx, cmd.Input)
	if err != nil {
		return err
	}

	_ = sink.Append(sessionID, sessionlog.Event{
		Type: "plan_created", SessionID: sessionID, Timestamp: time.Now(),
		Data: map[string]any{"plan_id": plan.ID, "steps": len(plan.Steps)},
	})

	executor := func(ctx context.Context, step planner.Step) (orchestrator.StepOutput, error) {
		_ = sink.Append(sessionID, sessionlog.Event{
			Type: "step_dispatched", SessionID: sessionID, Timestamp: time.Now(),
			Data: map[string]any{"step_id": step.ID, "agent": step.Agent, "workspace": cmd.Workspace},
		})
		return orchestrator.StepOutput{Output: fmt.Sprintf("step %s queued for %s", step.ID, step.Agent)}, nil
	}

	orch := orchestrator.New(executor, orchestrator.Config{}, logger.GetLogger())
	result, err := orch.Execute(ctx, plan)
	if err != nil {
		return err
	}

	_ = sink.Append(sessionID, sessionlog.Event{
		Type: "run_completed", SessionID: sessionID, Timestamp: time.Now(),
		Data: map[string]any{"success": result.Success, "completed_steps": result.CompletedSteps},
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Success {
		return fmt.Errorf("run did not complete successfully: %v", result.Errors)
	}
	return nil
}
