package runtime

import (
	"context"
	"time"

	"github.com/evoagent/core/pkg/errs"
)

// Tool is an externally supplied capability invoked by name. Concrete
// implementations (terminal, git, skill execution) are injected by the
// caller and out of scope for this package.
type Tool interface {
	Name() string
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// PreCheckHook is consulted before a tool call executes. Returning a
// non-nil error denies the call; the denial reason is surfaced as the
// tool_result event's error.
type PreCheckHook func(ctx context.Context, runID, toolName string, params map[string]any) error

// ToolRegistry holds the tools available to a Run.
type ToolRegistry struct {
	tools    map[string]Tool
	preCheck PreCheckHook
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// SetPreCheck installs the policy hook consulted before every call.
func (r *ToolRegistry) SetPreCheck(hook PreCheckHook) {
	r.preCheck = hook
}

func (r *ToolRegistry) lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, errs.NewNotFound("tool %q not registered", name)
	}
	return t, nil
}

// executeToolCall runs a named tool, emitting tool_call and tool_result
// lifecycle events around the call.
func (run *Run) executeToolCall(ctx context.Context, name string, params map[string]any) (any, error) {
	run.events.emit(Event{
		Type: EventToolCall, RunID: run.ID, Timestamp: time.Now(),
		Data: map[string]any{"tool": name, "params": params},
	})

	result, err := run.callTool(ctx, name, params)

	evt := Event{
		Type: EventToolResult, RunID: run.ID, Timestamp: time.Now(),
		Data: map[string]any{"tool": name, "result": result},
		Err:  err,
	}
	run.events.emit(evt)
	return result, err
}

func (run *Run) callTool(ctx context.Context, name string, params map[string]any) (any, error) {
	t, err := run.tools.lookup(name)
	if err != nil {
		return nil, err
	}
	if run.tools.preCheck != nil {
		if err := run.tools.preCheck(ctx, run.ID, name, params); err != nil {
			return nil, errs.Wrap(errs.Unauthorized, "tool call denied by policy", err)
		}
	}
	return t.Execute(ctx, params)
}
