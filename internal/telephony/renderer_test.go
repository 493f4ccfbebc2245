package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-core/server/internal/agent/model"
)

var testPhrases = model.Phrases{
	Greeting:            "שלום, הגעתם לליידר",
	Checking:            "רגע, אני בודק",
	Apology:             "מצטער, הייתה שגיאה",
	EmptyResponse:       "לא הבנתי",
	DidNotHear:          "לא שמעתי",
	NoPending:           "אין בקשה ממתינה",
	Transferring:        "מעביר אותך לנציג",
	OperatorUnavailable: "הנציג אינו זמין",
}

func render(t *testing.T, r *Renderer, reply model.Reply) node {
	t.Helper()
	body, err := r.Render(reply)
	require.NoError(t, err)
	return parseTwiML(t, body)
}

func TestRender_Listen(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{})

	doc := render(t, r, model.Reply{CallID: "CA1", Text: "**יש** שני חלונות פנויים", Next: model.Listen})
	assert.Equal(t, []string{"Say", "Gather"}, doc.verbs())
	say := doc.verb("Say")
	assert.Equal(t, "יש שני חלונות פנויים", say.text())
	assert.Equal(t, "Google.he-IL-Standard-A", say.attr("voice"))
	gather := doc.verb("Gather")
	assert.Equal(t, "speech", gather.attr("input"))
	assert.Equal(t, "/respond", gather.attr("action"))
	assert.Equal(t, "auto", gather.attr("speechTimeout"))
	assert.Equal(t, "iw-IL", gather.attr("language"))

	doc = render(t, r, model.Reply{CallID: "CA1", Text: "We have two free slots", Next: model.Listen})
	assert.Equal(t, "Google.en-US-Standard-C", doc.verb("Say").attr("voice"))
	assert.Equal(t, "en-US", doc.verb("Gather").attr("language"))

	doc = render(t, r, model.Reply{CallID: "CA1", Next: model.Listen})
	assert.Equal(t, []string{"Gather"}, doc.verbs())
}

func TestRender_Resume(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{})
	doc := render(t, r, model.Reply{CallID: "CA 7", Text: testPhrases.Checking, Next: model.Resume})
	assert.Equal(t, []string{"Say", "Redirect"}, doc.verbs())
	redirect := doc.verb("Redirect")
	assert.Equal(t, "/process_tool?CallSid=CA+7", redirect.text())
	assert.Equal(t, "POST", redirect.attr("method"))
}

func TestRender_Transfer(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{Number: "+972500000000"})
	doc := render(t, r, model.Reply{CallID: "CA1", Text: testPhrases.Transferring, Next: model.Transfer})
	assert.Equal(t, []string{"Say", "Dial"}, doc.verbs())
	dial := doc.verb("Dial")
	assert.Equal(t, "+972500000000", dial.text())
	assert.Equal(t, "20", dial.attr("timeout"))
	assert.Equal(t, "/handle-dial-status", dial.attr("action"))

	noOperator := NewRenderer(testPhrases, OperatorConfig{})
	doc = render(t, noOperator, model.Reply{CallID: "CA1", Text: testPhrases.Transferring, Next: model.Transfer})
	assert.Equal(t, []string{"Say", "Say", "Gather"}, doc.verbs())
	assert.Equal(t, testPhrases.OperatorUnavailable, doc.Children[1].text())
}

func TestRender_Hangup(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{})
	doc := render(t, r, model.Reply{Text: testPhrases.Apology, Next: model.Hangup})
	assert.Equal(t, []string{"Say", "Hangup"}, doc.verbs())
}

func TestRender_UnknownContinuation(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{})
	_, err := r.Render(model.Reply{Text: "x", Next: model.Continuation(42)})
	assert.Error(t, err)
}

func TestGreeting(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{})
	body, err := r.Greeting()
	require.NoError(t, err)
	doc := parseTwiML(t, body)
	assert.Equal(t, []string{"Say", "Gather", "Redirect"}, doc.verbs())
	assert.Equal(t, testPhrases.Greeting, doc.verb("Say").text())
	assert.Equal(t, "/voice", doc.verb("Redirect").text())
}

func TestDialStatus(t *testing.T) {
	r := NewRenderer(testPhrases, OperatorConfig{Number: "+972500000000"})
	for _, status := range []string{"busy", "no-answer", "failed", "Failed "} {
		body, err := r.DialStatus(status)
		require.NoError(t, err)
		doc := parseTwiML(t, body)
		assert.Equal(t, []string{"Say", "Gather"}, doc.verbs(), status)
		assert.Equal(t, testPhrases.OperatorUnavailable, doc.verb("Say").text())
	}

	body, err := r.DialStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hangup"}, parseTwiML(t, body).verbs())
}
