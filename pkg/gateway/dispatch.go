package gateway

import "context"

// TaskResult is the terminal outcome of a dispatched task.
type TaskResult struct {
	Status    TaskStatus
	Result    any
	Error     string
	Artifacts []string
}

// LifecycleEvent is a single streamed progress/tool event, shaped to map
// directly onto an Envelope of the matching MessageType.
type LifecycleEvent struct {
	Type MessageType
	Data map[string]any
}

// Dispatcher executes a task asynchronously: it must run to completion or
// failure, invoking emit for every intermediate lifecycle event
// (progress, tool_call, tool_result), and must itself honor
// ctx cancellation. The Gateway owns no direct reference to the
// Planner/Orchestrator/LaneQueue chain; wiring that chain into a
// Dispatcher is the caller's responsibility, the same injected-
// collaborator boundary used by runtime.Executor and checkpoint.TerminalCheck.
type Dispatcher func(ctx context.Context, taskID, sessionID, input string, emit func(LifecycleEvent)) TaskResult
