package dialogue

import (
	"context"
	"strconv"

	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

const phaseResume = "resume"

// Resume executes the tool calls parked by HandleUtterance, records every
// (call, result) pair and asks the model to narrate the results. A transfer
// request ends the phase immediately with Next=Transfer.
func (c *Controller) Resume(ctx context.Context, callID string) model.Reply {
	p := c.cfg.Phrases
	if callID == "" {
		logx.Ctx(ctx).Warn().Msg("resume without call id")
		metrics.Turns.WithLabelValues(phaseResume, "invalid").Inc()
		return model.Reply{Text: p.Apology, Next: model.Hangup}
	}
	ctx = logx.WithCall(ctx, callID).WithContext(ctx)

	reply, outcome := c.resume(ctx, callID)
	metrics.Turns.WithLabelValues(phaseResume, outcome).Inc()
	return reply
}

func (c *Controller) resume(ctx context.Context, callID string) (model.Reply, string) {
	p := c.cfg.Phrases
	log := logx.Ctx(ctx)

	calls, ok, err := c.cfg.Store.TakePendingToolCalls(ctx, callID)
	if err != nil {
		log.Error().Err(err).Msg("failed to take pending tool calls")
		return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "error"
	}
	if !ok {
		log.Warn().Msg("resume without pending tool calls")
		return model.Reply{CallID: callID, Text: p.NoPending, Next: model.Listen}, "no_pending"
	}
	rounds := c.nextToolRound(ctx, callID)

	// The calls are already taken, so they run and are recorded even when the
	// history cannot be read; only the narration needs it.
	history, historyErr := c.cfg.Store.History(ctx, callID)
	if historyErr != nil {
		log.Error().Err(historyErr).Msg("failed to load call history")
	}

	for i, call := range calls {
		out := c.cfg.Tools.Dispatch(ctx, call)
		pair := out.Messages()
		if err := c.cfg.Store.AppendTurns(ctx, callID, pair...); err != nil {
			log.Error().Err(err).Str("tool", out.Name()).Msg("failed to persist tool result")
		}
		history = append(history, pair...)

		if out.Result.ShouldTransfer {
			if rest := calls[i+1:]; len(rest) > 0 {
				log.Warn().Strs("tools", toolNames(rest)).Msg("dropping tool calls after transfer")
			}
			c.appendAssistant(ctx, callID, p.Transferring)
			log.Info().Msg("transferring call to operator")
			return model.Reply{CallID: callID, Text: p.Transferring, Next: model.Transfer}, "transfer"
		}
	}

	if historyErr != nil {
		c.appendAssistant(ctx, callID, p.Apology)
		return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "error"
	}

	gender, _ := c.callerGender(ctx, callID)
	knowledge, err := c.retrieve(ctx, lastUserText(history))
	if err != nil {
		log.Warn().Err(err).Msg("context retrieval failed; narrating without it")
		knowledge = ""
	}

	system, err := c.renderSystem(ctx, knowledge, gender)
	if err != nil {
		log.Error().Err(err).Msg("failed to render system prompt")
		c.appendAssistant(ctx, callID, p.Apology)
		return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "error"
	}
	input := append([]*schema.Message{system}, history...)

	msg, err := c.generate(ctx, phaseResume, input)
	if err != nil {
		log.Error().Err(err).Msg("narration model call failed")
		c.appendAssistant(ctx, callID, p.Apology)
		return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "error"
	}

	outcome := model.ClassifyOutcome(msg)
	if outcome.Kind == model.ToolCallRequested {
		if rounds >= c.cfg.MaxToolRounds {
			log.Warn().Int("rounds", rounds).Strs("tools", toolNames(outcome.ToolCalls)).Msg("tool round limit reached")
			c.appendAssistant(ctx, callID, p.Apology)
			return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "tool_limit"
		}
		chained := ensureToolCallIDs(outcome.ToolCalls, len(history))
		if err := c.cfg.Store.SetPendingToolCalls(ctx, callID, chained); err != nil {
			log.Error().Err(err).Msg("failed to park chained tool calls")
			c.appendAssistant(ctx, callID, p.Apology)
			return model.Reply{CallID: callID, Text: p.Apology, Next: model.Listen}, "error"
		}
		log.Info().Int("round", rounds).Strs("tools", toolNames(chained)).Msg("chained tool calls requested")
		return model.Reply{CallID: callID, Text: p.Checking, Next: model.Resume}, "tool_call"
	}

	spoken := c.finish(ctx, callID, outcome.Text)
	return model.Reply{CallID: callID, Text: spoken, Next: model.Listen}, "final"
}

// nextToolRound increments and returns the number of resume rounds since the
// last caller utterance.
func (c *Controller) nextToolRound(ctx context.Context, callID string) int {
	n := 0
	if v, ok, err := c.cfg.Store.CallerAttribute(ctx, callID, model.AttrToolRounds); err == nil && ok {
		n, _ = strconv.Atoi(v)
	}
	n++
	if err := c.cfg.Store.SetCallerAttribute(ctx, callID, model.AttrToolRounds, strconv.Itoa(n)); err != nil {
		logx.Ctx(ctx).Warn().Err(err).Msg("failed to store tool round")
	}
	return n
}
