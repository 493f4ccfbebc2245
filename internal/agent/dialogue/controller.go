package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/dialogue/prompts"
	"github.com/voicebot-core/server/internal/agent/model"
	"github.com/voicebot-core/server/internal/agent/tools"
	errx "github.com/voicebot-core/server/internal/core/error"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

const defaultMaxToolRounds = 3

// ChatModel is the part of an eino chat model the dialogue needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// Dispatcher executes tool calls. Dispatch never fails; failures are encoded in the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, call schema.ToolCall) tools.Outcome
}

// ProfileLookup resolves a caller phone number to a known profile.
type ProfileLookup interface {
	Lookup(ctx context.Context, phone string) (model.CallerProfile, bool, error)
}

// Config wires a Controller. Retriever and Profiles are optional.
type Config struct {
	Store     model.SessionStore
	Model     ChatModel
	ModelName string
	Tools     Dispatcher
	Retriever retriever.Retriever
	Profiles  ProfileLookup

	Prompt   model.PromptConfig
	Dialogue model.DialogueConfig
	Phrases  model.Phrases

	MaxToolRounds int
	Now           func() time.Time
	Handlers      []callbacks.Handler
}

// Controller runs the two dialogue phases of a call: answering an utterance
// and resuming after the tools the model asked for.
type Controller struct {
	cfg Config
	loc *time.Location
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("dialogue: session store is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("dialogue: chat model is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("dialogue: tool dispatcher is required")
	}
	loc := time.UTC
	if cfg.Dialogue.Timezone != "" {
		l, err := time.LoadLocation(cfg.Dialogue.Timezone)
		if err != nil {
			return nil, fmt.Errorf("dialogue: load timezone %q: %w", cfg.Dialogue.Timezone, err)
		}
		loc = l
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{cfg: cfg, loc: loc}, nil
}

// Phrases returns the fixed phrases the controller speaks.
func (c *Controller) Phrases() model.Phrases {
	return c.cfg.Phrases
}

func (c *Controller) withRunInfo(ctx context.Context, name, typ string, component components.Component) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      typ,
		Component: component,
	}, c.cfg.Handlers...)
}

// callerGender returns the cached gender of the caller, if known.
func (c *Controller) callerGender(ctx context.Context, callID string) (model.Gender, bool) {
	v, ok, err := c.cfg.Store.CallerAttribute(ctx, callID, model.AttrGender)
	if err != nil {
		logx.Ctx(ctx).Warn().Err(err).Msg("failed to read cached gender")
		return model.GenderUnknown, false
	}
	if !ok {
		return model.GenderUnknown, false
	}
	return model.ParseGender(v)
}

// retrieve returns the knowledge context for query joined into one block.
func (c *Controller) retrieve(ctx context.Context, query string) (string, error) {
	if c.cfg.Retriever == nil || strings.TrimSpace(query) == "" {
		return "", nil
	}
	var opts []retriever.Option
	if c.cfg.Dialogue.ContextTopK > 0 {
		opts = append(opts, retriever.WithTopK(c.cfg.Dialogue.ContextTopK))
	}
	docs, err := c.cfg.Retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.Content) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(d.Content))
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func (c *Controller) renderSystem(ctx context.Context, knowledge string, gender model.Gender) (*schema.Message, error) {
	ctx = c.withRunInfo(ctx, "SystemPrompt", "GoTemplate", components.ComponentOfPrompt)
	text, err := prompts.RenderSystem(ctx, c.cfg.Prompt, prompts.SystemInput{
		Context:    knowledge,
		Gender:     gender,
		Now:        c.cfg.Now().In(c.loc),
		PinnedYear: c.cfg.Dialogue.PinnedYear,
	})
	if err != nil {
		return nil, err
	}
	return schema.SystemMessage(text), nil
}

// generate invokes the chat model and records latency and cost.
func (c *Controller) generate(ctx context.Context, phase string, input []*schema.Message) (*schema.Message, error) {
	ctx = c.withRunInfo(ctx, "ResponseModel", "Gemini", components.ComponentOfChatModel)
	start := time.Now()
	msg, err := c.cfg.Model.Generate(ctx, input)
	metrics.ModelLatency.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errx.WrapModel(err)
	}
	if msg == nil {
		return nil, errx.WrapModel(errors.New("empty model response"))
	}
	recordUsage(ctx, c.cfg.ModelName, phase, msg)
	return msg, nil
}

// finish applies the gender signal to a final model text, persists the spoken
// text as an assistant turn and returns it.
func (c *Controller) finish(ctx context.Context, callID, text string) string {
	spoken, gender, found := ExtractGenderSignal(text)
	if found {
		if err := c.cfg.Store.SetCallerAttribute(ctx, callID, model.AttrGender, string(gender)); err != nil {
			logx.Ctx(ctx).Warn().Err(err).Msg("failed to cache gender signal")
		} else {
			logx.Ctx(ctx).Debug().Str("gender", string(gender)).Msg("gender signal applied")
		}
	}
	if spoken == "" {
		spoken = c.cfg.Phrases.EmptyResponse
	}
	c.appendAssistant(ctx, callID, spoken)
	return spoken
}

func (c *Controller) appendAssistant(ctx context.Context, callID, text string) {
	if err := c.cfg.Store.AppendTurns(ctx, callID, schema.AssistantMessage(text, nil)); err != nil {
		logx.Ctx(ctx).Error().Err(err).Msg("failed to persist assistant turn")
	}
}

// ensureToolCallIDs fills in identifiers the provider omitted. seq is the
// history length, so synthesized IDs stay unique within the call.
func ensureToolCallIDs(calls []schema.ToolCall, seq int) []schema.ToolCall {
	out := make([]schema.ToolCall, len(calls))
	for i, tc := range calls {
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_%d", seq+i+1)
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		out[i] = tc
	}
	return out
}

func lastUserText(history []*schema.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

func toolNames(calls []schema.ToolCall) []string {
	names := make([]string, len(calls))
	for i, tc := range calls {
		names[i] = tc.Function.Name
	}
	return names
}
