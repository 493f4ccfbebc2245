package telephony

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"github.com/voicebot-core/server/internal/agent/model"
)

const (
	RouteVoice      = "/voice"
	RouteRespond    = "/respond"
	RouteProcess    = "/process_tool"
	RouteDialStatus = "/handle-dial-status"
)

type OperatorConfig struct {
	Number      string `envconfig:"OPERATOR_NUMBER"`
	DialTimeout int    `envconfig:"OPERATOR_DIAL_TIMEOUT" default:"20"`
}

// Renderer turns dialogue replies into TwiML documents.
type Renderer struct {
	phrases  model.Phrases
	operator OperatorConfig
	voices   map[Locale]Voice
}

func NewRenderer(phrases model.Phrases, operator OperatorConfig) *Renderer {
	if operator.DialTimeout <= 0 {
		operator.DialTimeout = 20
	}
	return &Renderer{phrases: phrases, operator: operator, voices: DefaultVoices}
}

func (r *Renderer) voice(l Locale) Voice {
	if v, ok := r.voices[l]; ok {
		return v
	}
	return r.voices[DefaultLocale]
}

// Render speaks reply.Text and appends the verb for reply.Next.
func (r *Renderer) Render(reply model.Reply) (string, error) {
	text := CleanForSpeech(reply.Text)
	v := r.voice(DetectLocale(text))

	var els []twiml.Element
	if text != "" {
		els = append(els, r.say(text, v))
	}

	switch reply.Next {
	case model.Listen:
		els = append(els, r.gather(v))
	case model.Resume:
		els = append(els, &twiml.VoiceRedirect{
			Url:    RouteProcess + "?CallSid=" + url.QueryEscape(reply.CallID),
			Method: "POST",
		})
	case model.Transfer:
		if r.operator.Number == "" {
			def := r.voice(DefaultLocale)
			els = append(els, r.say(r.phrases.OperatorUnavailable, def), r.gather(def))
			break
		}
		els = append(els, &twiml.VoiceDial{
			Number:  r.operator.Number,
			Timeout: strconv.Itoa(r.operator.DialTimeout),
			Action:  RouteDialStatus,
			Method:  "POST",
		})
	case model.Hangup:
		els = append(els, &twiml.VoiceHangup{})
	default:
		return "", fmt.Errorf("render: unknown continuation %d", reply.Next)
	}
	return twiml.Voice(els)
}

// Greeting opens a call: greet, listen, and loop back if the caller stays silent.
func (r *Renderer) Greeting() (string, error) {
	v := r.voice(DefaultLocale)
	return twiml.Voice([]twiml.Element{
		r.say(r.phrases.Greeting, v),
		r.gather(v),
		&twiml.VoiceRedirect{Url: RouteVoice, Method: "POST"},
	})
}

// DialStatus answers the operator dial callback. An unreachable operator
// hands the caller back to the bot.
func (r *Renderer) DialStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "busy", "no-answer", "failed":
		v := r.voice(DefaultLocale)
		return twiml.Voice([]twiml.Element{r.say(r.phrases.OperatorUnavailable, v), r.gather(v)})
	default:
		return twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
	}
}

func (r *Renderer) say(text string, v Voice) *twiml.VoiceSay {
	return &twiml.VoiceSay{Message: text, Voice: v.TTS, Language: v.Language}
}

func (r *Renderer) gather(v Voice) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:         "speech",
		Action:        RouteRespond,
		SpeechTimeout: "auto",
		Language:      v.STTLanguage,
	}
}
