// Package agent drives the conversation between the language model and
// the tool layer: tool registry, tool executor and the orchestration loop.
package agent

// ToolCallRecord is one executed tool call attached to an assistant turn.
// Records are append-only: created when the model requests the call,
// completed with the result, never mutated afterwards.
type ToolCallRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result"`
}

// Message is one conversation turn. User turns carry no tool calls.
type Message struct {
	Role      string           `json:"role"` // "user" | "assistant"
	Content   string           `json:"content"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// Status is the terminal state of one orchestration run.
type Status string

const (
	// StatusDone: the model returned a plain answer.
	StatusDone Status = "done"
	// StatusAborted: iteration cap exceeded or the model query failed;
	// the result carries whatever partial answer exists.
	StatusAborted Status = "aborted"
)

// Result is the outcome of one chat request: the answer text plus every
// tool call made across all iterations, for observability.
type Result struct {
	Text      string
	Status    Status
	ToolCalls []ToolCallRecord
}
