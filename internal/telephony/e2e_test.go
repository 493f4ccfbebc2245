package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-core/server/internal/agent/dialogue"
	"github.com/voicebot-core/server/internal/agent/model"
	"github.com/voicebot-core/server/internal/agent/repo"
	"github.com/voicebot-core/server/internal/agent/tools"
	"github.com/voicebot-core/server/internal/knowledge"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	calls   int
}

func (m *scriptedModel) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.replies) == 0 {
		return nil, errors.New("unexpected model call")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

type openCalendar struct{}

func (openCalendar) FreeBusy(context.Context, time.Time, time.Time) ([]model.Interval, error) {
	return nil, nil
}

func (openCalendar) CreateEvent(context.Context, model.CalendarEvent) (model.CreatedEvent, error) {
	return model.CreatedEvent{ID: "evt-1"}, nil
}

func toolCall(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{Function: schema.FunctionCall{Name: name, Arguments: args}}})
}

func newE2E(t *testing.T, replies ...*schema.Message) (http.Handler, *repo.MemorySessionStore, *scriptedModel) {
	t.Helper()
	store := repo.NewMemorySessionStore()
	chat := &scriptedModel{replies: replies}
	ctrl, err := dialogue.NewController(dialogue.Config{
		Store:     store,
		Model:     chat,
		ModelName: "gemini-2.0-flash",
		Tools:     tools.NewBookingRegistry(tools.Deps{Calendar: openCalendar{}, PinnedYear: 2026}),
		Retriever: knowledge.NewStore(&schema.Document{ID: "kb", Content: "Demo meetings last one or two hours."}),
		Prompt:    model.PromptConfig{BusinessName: "Leader"},
		Dialogue:  model.DialogueConfig{Timezone: "Asia/Jerusalem", PinnedYear: 2026, ContextTopK: 3},
		Phrases:   testPhrases,
		Now:       func() time.Time { return time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return newTestServer(Config{}, ctrl), store, chat
}

func TestE2E_AvailabilityFlow(t *testing.T) {
	h, store, chat := newE2E(t,
		toolCall(tools.ToolCheckAvailability, `{"date":"2024-06-15","duration":"1"}`),
		schema.AssistantMessage("The whole day is free.", nil),
	)

	rec := post(h, "/respond", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"Is the 15th free?"}})
	doc := parseTwiML(t, rec.Body.String())
	assert.Equal(t, []string{"Say", "Redirect"}, doc.verbs())
	assert.Equal(t, testPhrases.Checking, doc.verb("Say").text())
	assert.Equal(t, "/process_tool?CallSid=CA1", doc.verb("Redirect").text())

	rec = post(h, "/process_tool?CallSid=CA1", nil)
	doc = parseTwiML(t, rec.Body.String())
	assert.Equal(t, []string{"Say", "Gather"}, doc.verbs())
	assert.Equal(t, "The whole day is free.", doc.verb("Say").text())
	assert.Equal(t, 2, chat.calls)

	history, err := store.History(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "call_1", history[1].ToolCalls[0].ID)
	assert.Contains(t, history[1].ToolCalls[0].Function.Arguments, "2026-06-15")
	assert.Equal(t, schema.Tool, history[2].Role)
	assert.Equal(t, schema.Assistant, history[3].Role)
}

func TestE2E_ResumeWithoutPending(t *testing.T) {
	h, _, chat := newE2E(t)

	rec := post(h, "/process_tool?CallSid=CA2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseTwiML(t, rec.Body.String())
	assert.Equal(t, []string{"Say", "Gather"}, doc.verbs())
	assert.Equal(t, testPhrases.NoPending, doc.verb("Say").text())
	assert.Zero(t, chat.calls)
}

func TestE2E_Transfer(t *testing.T) {
	h, store, chat := newE2E(t, toolCall(tools.ToolTransferToSupport, `{}`))

	post(h, "/respond", url.Values{"CallSid": {"CA3"}, "SpeechResult": {"I want a human"}})
	rec := post(h, "/process_tool?CallSid=CA3", nil)
	doc := parseTwiML(t, rec.Body.String())
	assert.Equal(t, []string{"Say", "Dial"}, doc.verbs())
	assert.Equal(t, testPhrases.Transferring, doc.verb("Say").text())
	assert.Equal(t, 1, chat.calls)

	history, err := store.History(context.Background(), "CA3")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 3)
	assert.Equal(t, tools.ToolTransferToSupport, history[1].ToolCalls[0].Function.Name)
	assert.Equal(t, schema.Tool, history[2].Role)
}
