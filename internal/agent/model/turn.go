package model

import (
	"github.com/cloudwego/eino/schema"
)

// Utterance is one recognized caller phrase delivered by the telephony webhook.
type Utterance struct {
	CallID string
	From   string
	Text   string
}

// Continuation tells the protocol layer what the call should do after the reply is spoken.
type Continuation int

const (
	// Listen reopens a speech window.
	Listen Continuation = iota
	// Resume redirects the call back to the tool execution phase.
	Resume
	// Transfer dials the human operator.
	Transfer
	// Hangup ends the call.
	Hangup
)

func (c Continuation) String() string {
	switch c {
	case Listen:
		return "listen"
	case Resume:
		return "resume"
	case Transfer:
		return "transfer"
	case Hangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Reply is what a dialogue phase hands to the response renderer.
type Reply struct {
	CallID string
	Text   string
	Next   Continuation
}

// OutcomeKind discriminates a TurnOutcome.
type OutcomeKind int

const (
	FinalText OutcomeKind = iota
	ToolCallRequested
)

// TurnOutcome is the classified result of one model invocation. Exactly one of
// Text or ToolCalls is meaningful, selected by Kind.
type TurnOutcome struct {
	Kind      OutcomeKind
	Text      string
	ToolCalls []schema.ToolCall
}

// ClassifyOutcome maps a model message to a TurnOutcome. Any tool call wins
// over text carried in the same message.
func ClassifyOutcome(msg *schema.Message) TurnOutcome {
	if msg == nil {
		return TurnOutcome{Kind: FinalText}
	}
	if len(msg.ToolCalls) > 0 {
		calls := make([]schema.ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		return TurnOutcome{Kind: ToolCallRequested, ToolCalls: calls}
	}
	return TurnOutcome{Kind: FinalText, Text: msg.Content}
}
