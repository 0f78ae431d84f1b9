package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/evoagent/core/pkg/logger"
	"github.com/evoagent/core/pkg/observability"
	"github.com/evoagent/core/pkg/sessionlog"
	"github.com/evoagent/core/pkg/task"
)

// AgentCmd groups agent-kind inspection and one-shot execution.
//
// This process has no persistent daemon or IPC layer: list reads the
// configured lane topology, run submits a task to a fresh in-process
// LaneQueue and blocks for the result, and status/cancel/history read or
// annotate the durable session log since that is the only state that
// survives past a single invocation.
type AgentCmd struct {
	List    AgentListCmd    `cmd:"" help:"List configured agent kinds (lanes)."`
	Run     AgentRunCmd     `cmd:"" help:"Submit one task to an agent kind and wait for its result."`
	Status  AgentStatusCmd  `cmd:"" help:"Print the last known status of a session's run."`
	Cancel  AgentCancelCmd  `cmd:"" help:"Mark a session's run cancelled."`
	History AgentHistoryCmd `cmd:"" help:"Print a session's recorded agent events."`
}

type AgentListCmd struct{}

func (cmd *AgentListCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	for _, l := range cfg.Lanes {
		fmt.Printf("%-10s max_concurrent=%-3d priority=%d\n", l.Kind, l.MaxConcurrent, l.Priority)
	}
	return nil
}

type AgentRunCmd struct {
	Kind    string        `arg:"" help:"Agent kind (lane) to run on."`
	Input   string        `arg:"" help:"Payload to hand the agent."`
	Session string        `help:"Session ID to log this run under."`
	Timeout time.Duration `help:"How long to wait for the task to finish." default:"5m"`
}

func (cmd *AgentRunCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	sessionID := cmd.Session
	if sessionID == "" {
		sessionID = fmt.Sprintf("agent-%d", time.Now().UnixNano())
	}
	if err := sessions.Create(sessionID, "cli"); err != nil {
		return err
	}

	sink, closeSink, err := openEventSink(cfg, sessions)
	if err != nil {
		return err
	}
	defer closeSink()

	ctx := context.Background()
	obsMgr, err := observability.NewManager(ctx, cfg.Server.Observability)
	if err != nil {
		return fmt.Errorf("build observability manager: %w", err)
	}
	defer obsMgr.Shutdown(context.Background())
	tracer := obsMgr.Tracer()

	log := logger.GetLogger()
	queue := openLaneQueue(cfg, func(ctx context.Context, t *task.Task) (any, error) {
		_, span := tracer.StartLaneTask(ctx, cmd.Kind, t.ID, t.Priority)
		defer span.End()
		_ = sink.Append(sessionID, sessionlog.Event{
			Type: "agent_started", SessionID: sessionID, Timestamp: time.Now(),
			Data: map[string]any{"task_id": t.ID, "kind": cmd.Kind},
		})
		return fmt.Sprintf("agent %s processed %q", cmd.Kind, cmd.Input), nil
	})
	queue.SetRecorder(obsMgr.Metrics())
	defer queue.Stop()

	t := task.New(fmt.Sprintf("run-%d", time.Now().UnixNano()), cmd.Kind, 0, nil, cmd.Input, 0)
	if err := queue.Submit(t); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()
	result, err := queue.WaitFor(ctx, t.ID, cmd.Timeout)
	if err != nil {
		_ = sink.Append(sessionID, sessionlog.Event{Type: "agent_failed", SessionID: sessionID, Timestamp: time.Now(), Data: map[string]any{"error": err.Error()}})
		return err
	}

	_ = sink.Append(sessionID, sessionlog.Event{Type: "agent_completed", SessionID: sessionID, Timestamp: time.Now(), Data: map[string]any{"result": result}})
	log.Info("agent run complete", "session", sessionID, "result", result)
	fmt.Println(result)
	return nil
}

type AgentStatusCmd struct {
	Session string `arg:"" help:"Session ID."`
}

func (cmd *AgentStatusCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	result, err := sessions.Load(cmd.Session)
	if err != nil {
		return err
	}
	fmt.Printf("status=%s updated=%s runs=%d\n", result.Metadata.Status, result.Metadata.UpdatedAt.Format(time.RFC3339), result.Metadata.AgentRunCount)
	return nil
}

type AgentCancelCmd struct {
	Session string `arg:"" help:"Session ID."`
}

func (cmd *AgentCancelCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	if err := sessions.Append(cmd.Session, sessionlog.Event{
		Type: "agent_cancel_requested", SessionID: cmd.Session, Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	return sessions.Archive(cmd.Session)
}

type AgentHistoryCmd struct {
	Session string `arg:"" help:"Session ID."`
}

func (cmd *AgentHistoryCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	sessions, err := openSessionLog(cfg)
	if err != nil {
		return err
	}
	result, err := sessions.Load(cmd.Session)
	if err != nil {
		return err
	}
	for _, e := range result.Events {
		fmt.Printf("[%s] %s %v\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Data)
	}
	return nil
}
