package tools

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
)

// Result is the structured answer of a tool. It is serialized into the tool
// message the model reads on the next generation.
type Result struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	ShouldTransfer bool   `json:"shouldTransfer,omitempty"`
	Data           any    `json:"data,omitempty"`
}

// Outcome pairs a dispatched call with its result. Payload is the exact text
// stored as the tool message content.
type Outcome struct {
	Call    schema.ToolCall
	Result  Result
	Payload string
}

// Name of the dispatched tool.
func (o Outcome) Name() string {
	return o.Call.Function.Name
}

// Messages returns the (tool call, tool result) pair to append to the history.
func (o Outcome) Messages() []*schema.Message {
	return []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{o.Call}),
		schema.ToolMessage(o.Payload, o.Call.ID, schema.WithToolName(o.Name())),
	}
}

func failure(call schema.ToolCall, msg string) Outcome {
	res := Result{Success: false, Error: msg}
	b, err := json.Marshal(res)
	if err != nil {
		b = []byte(`{"success":false}`)
	}
	return Outcome{Call: call, Result: res, Payload: string(b)}
}
