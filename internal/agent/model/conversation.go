package model

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// SessionStore keeps the per-call dialogue state: the ordered history, the tool
// calls waiting for the resume phase and small caller attributes.
// Sessions are created lazily by any write.
type SessionStore interface {
	// Init creates an empty session if none exists.
	Init(ctx context.Context, callID string) error

	// AppendTurns appends messages to the history in one step.
	AppendTurns(ctx context.Context, callID string, msgs ...*schema.Message) error

	// History returns a copy of the stored history; unknown calls yield an empty slice.
	History(ctx context.Context, callID string) ([]*schema.Message, error)

	// SetPendingToolCalls replaces the pending tool calls of a call.
	SetPendingToolCalls(ctx context.Context, callID string, calls []schema.ToolCall) error

	// TakePendingToolCalls reads and clears the pending tool calls atomically.
	// ok is false when nothing was pending.
	TakePendingToolCalls(ctx context.Context, callID string) (calls []schema.ToolCall, ok bool, err error)

	SetCallerAttribute(ctx context.Context, callID, key, value string) error
	CallerAttribute(ctx context.Context, callID, key string) (value string, ok bool, err error)
}

// Caller attribute keys.
const (
	AttrGender     = "gender"
	AttrToolRounds = "tool_rounds"
)

// Gender is the grammatical gender used to address the caller.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// ParseGender accepts "male" or "female" in any case.
func ParseGender(s string) (Gender, bool) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMale:
		return GenderMale, true
	case GenderFemale:
		return GenderFemale, true
	}
	return GenderUnknown, false
}

