package gateway

import "time"

// MessageType is the envelope discriminator for every frame exchanged
// over the /ws connection.
type MessageType string

const (
	MsgRequest    MessageType = "request"
	MsgResponse   MessageType = "response"
	MsgError      MessageType = "error"
	MsgProgress   MessageType = "progress"
	MsgToolCall   MessageType = "tool_call"
	MsgToolResult MessageType = "tool_result"
)

// TaskStatus mirrors the shared pending/running/terminal states used by
// LaneQueue and AgentRuntime, as seen by a Gateway client.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Envelope is the wire format for all client/server frames.
type Envelope struct {
	Type       MessageType    `json:"type"`
	TaskID     string         `json:"task_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Status     TaskStatus     `json:"status,omitempty"`
	Input      string         `json:"input,omitempty"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Artifacts  []string       `json:"artifacts,omitempty"`
	RetryAfter *time.Duration `json:"retry_after,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
