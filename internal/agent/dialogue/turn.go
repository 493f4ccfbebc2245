package dialogue

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

const phaseUtterance = "utterance"

// HandleUtterance answers one caller phrase. The model either answers directly
// (Next=Listen) or asks for tools, in which case the calls are parked as
// pending and the caller hears the checking phrase while the call is
// redirected to Resume (Next=Resume). Failures before the user turn is stored
// leave the history untouched and answer with the apology phrase.
func (c *Controller) HandleUtterance(ctx context.Context, u model.Utterance) model.Reply {
	p := c.cfg.Phrases
	if u.CallID == "" {
		logx.Ctx(ctx).Warn().Msg("utterance without call id")
		metrics.Turns.WithLabelValues(phaseUtterance, "invalid").Inc()
		return model.Reply{Text: p.Apology, Next: model.Hangup}
	}
	log := logx.WithCall(ctx, u.CallID)
	ctx = log.WithContext(ctx)

	text := strings.TrimSpace(u.Text)
	if text == "" {
		metrics.Turns.WithLabelValues(phaseUtterance, "no_speech").Inc()
		return model.Reply{CallID: u.CallID, Text: p.DidNotHear, Next: model.Listen}
	}
	log.Info().Str("from", u.From).Str("speech", text).Msg("utterance received")

	c.discardStalePending(ctx, u.CallID)

	reply, outcome := c.answer(ctx, u, text)
	metrics.Turns.WithLabelValues(phaseUtterance, outcome).Inc()
	return reply
}

// discardStalePending drops tool calls parked by a turn whose redirect never
// arrived. The checking phrase was spoken for them, so it is recorded as the
// assistant turn to keep user and assistant turns alternating.
func (c *Controller) discardStalePending(ctx context.Context, callID string) {
	stale, ok, err := c.cfg.Store.TakePendingToolCalls(ctx, callID)
	if err != nil {
		logx.Ctx(ctx).Warn().Err(err).Msg("failed to check for stale tool calls")
		return
	}
	if !ok {
		return
	}
	logx.Ctx(ctx).Warn().Strs("tools", toolNames(stale)).Msg("discarding stale pending tool calls")
	c.appendAssistant(ctx, callID, c.cfg.Phrases.Checking)
}

func (c *Controller) answer(ctx context.Context, u model.Utterance, text string) (model.Reply, string) {
	p := c.cfg.Phrases
	log := logx.Ctx(ctx)
	apology := model.Reply{CallID: u.CallID, Text: p.Apology, Next: model.Listen}

	gender, known := c.callerGender(ctx, u.CallID)

	var (
		knowledge string
		profile   model.CallerProfile
		found     bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		knowledge, err = c.retrieve(gctx, text)
		return err
	})
	if !known && c.cfg.Profiles != nil && u.From != "" {
		g.Go(func() error {
			var err error
			profile, found, err = c.cfg.Profiles.Lookup(gctx, u.From)
			if err != nil {
				log.Warn().Err(err).Msg("caller profile lookup failed")
				found = false
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to gather turn context")
		return apology, "error"
	}

	if !known && found && profile.Gender != model.GenderUnknown {
		gender = profile.Gender
		if err := c.cfg.Store.SetCallerAttribute(ctx, u.CallID, model.AttrGender, string(gender)); err != nil {
			log.Warn().Err(err).Msg("failed to cache caller gender")
		}
		log.Debug().Str("name", profile.Name).Str("gender", string(gender)).Msg("caller profile found")
	}

	system, err := c.renderSystem(ctx, knowledge, gender)
	if err != nil {
		log.Error().Err(err).Msg("failed to render system prompt")
		return apology, "error"
	}

	history, err := c.cfg.Store.History(ctx, u.CallID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load call history")
		return apology, "error"
	}

	userMsg := schema.UserMessage(text)
	input := make([]*schema.Message, 0, len(history)+2)
	input = append(input, system)
	input = append(input, history...)
	input = append(input, userMsg)

	msg, err := c.generate(ctx, phaseUtterance, input)
	if err != nil {
		log.Error().Err(err).Msg("model call failed")
		return apology, "error"
	}

	if err := c.cfg.Store.AppendTurns(ctx, u.CallID, userMsg); err != nil {
		log.Error().Err(err).Msg("failed to persist user turn")
		return apology, "error"
	}

	outcome := model.ClassifyOutcome(msg)
	if outcome.Kind == model.FinalText {
		spoken := c.finish(ctx, u.CallID, outcome.Text)
		return model.Reply{CallID: u.CallID, Text: spoken, Next: model.Listen}, "final"
	}

	calls := ensureToolCallIDs(outcome.ToolCalls, len(history))
	if err := c.cfg.Store.SetPendingToolCalls(ctx, u.CallID, calls); err != nil {
		log.Error().Err(err).Msg("failed to park tool calls")
		// the user turn is stored; answer it so the history keeps alternating
		c.appendAssistant(ctx, u.CallID, p.Apology)
		return apology, "error"
	}
	if err := c.cfg.Store.SetCallerAttribute(ctx, u.CallID, model.AttrToolRounds, "0"); err != nil {
		log.Warn().Err(err).Msg("failed to reset tool rounds")
	}
	log.Info().Strs("tools", toolNames(calls)).Msg("tool calls requested")
	return model.Reply{CallID: u.CallID, Text: p.Checking, Next: model.Resume}, "tool_call"
}
