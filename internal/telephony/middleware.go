package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go/client"

	"github.com/voicebot-core/server/internal/agent/model"
	errx "github.com/voicebot-core/server/internal/core/error"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

const (
	headerRequestID = "X-Request-Id"
	headerSignature = "X-Twilio-Signature"
)

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogger tags the request context with a request ID and writes one
// access log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		l := logx.Ctx(r.Context()).With().Str("request_id", id).Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.Webhooks.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}

// recoverer answers a panicking handler with the apology TwiML so the caller
// never hears a dead line.
func recoverer(renderer *Renderer) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				logx.Ctx(r.Context()).Error().Str("panic", fmt.Sprint(rec)).Str("path", r.URL.Path).Msg("handler panic")
				body, err := renderer.Render(model.Reply{Text: renderer.phrases.Apology, Next: model.Listen})
				if err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				writeTwiML(w, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// twilioSignature rejects webhooks whose X-Twilio-Signature does not match.
// baseURL is the public origin Twilio calls, e.g. https://bot.example.com.
func twilioSignature(authToken, baseURL string) middleware {
	validator := client.NewRequestValidator(authToken)
	baseURL = strings.TrimRight(baseURL, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			full := baseURL + r.URL.RequestURI()
			if baseURL == "" {
				full = requestURL(r)
			}
			if !validator.Validate(full, formParams(r), r.Header.Get(headerSignature)) {
				logx.Ctx(r.Context()).Warn().Str("url", full).Msg("twilio signature mismatch")
				http.Error(w, errx.ForbiddenMessage, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	return params
}
