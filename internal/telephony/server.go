package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

type Config struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":3000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
	// PublicURL is the origin Twilio is configured with; used to verify signatures behind proxies.
	PublicURL string `envconfig:"SERVER_PUBLIC_URL"`
	// TwilioAuthToken enables X-Twilio-Signature validation when set.
	TwilioAuthToken string `envconfig:"TWILIO_AUTH_TOKEN"`
}

// Dialogue is the two-phase turn controller behind the webhooks.
type Dialogue interface {
	HandleUtterance(ctx context.Context, u model.Utterance) model.Reply
	Resume(ctx context.Context, callID string) model.Reply
}

type Server struct {
	cfg      Config
	dialogue Dialogue
	renderer *Renderer
}

func NewServer(cfg Config, dialogue Dialogue, renderer *Renderer) *Server {
	return &Server{cfg: cfg, dialogue: dialogue, renderer: renderer}
}

// Handler returns the routed webhook surface with middleware applied.
func (s *Server) Handler() http.Handler {
	hooks := []middleware{recoverer(s.renderer)}
	if s.cfg.TwilioAuthToken != "" {
		hooks = append(hooks, twilioSignature(s.cfg.TwilioAuthToken, s.cfg.PublicURL))
	}

	mux := http.NewServeMux()
	mux.Handle("POST "+RouteVoice, chain(http.HandlerFunc(s.voice), hooks...))
	mux.Handle("POST "+RouteRespond, chain(http.HandlerFunc(s.respond), hooks...))
	mux.Handle("POST "+RouteProcess, chain(http.HandlerFunc(s.processTool), hooks...))
	mux.Handle("POST "+RouteDialStatus, chain(http.HandlerFunc(s.dialStatus), hooks...))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return requestLogger(mux)
}

// Run serves until ctx is cancelled, then drains in-flight webhooks.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	logx.Info().Msg("shutting down webhook server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) voice(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	logx.Ctx(r.Context()).Info().Str("call_sid", r.PostForm.Get("CallSid")).Str("from", r.PostForm.Get("From")).Msg("incoming call")
	s.write(w, r, s.renderer.Greeting)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	u := model.Utterance{
		CallID: r.PostForm.Get("CallSid"),
		From:   r.PostForm.Get("From"),
		Text:   strings.TrimSpace(r.PostForm.Get("SpeechResult")),
	}
	reply := s.dialogue.HandleUtterance(r.Context(), u)
	s.write(w, r, func() (string, error) { return s.renderer.Render(reply) })
}

func (s *Server) processTool(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callID := r.URL.Query().Get("CallSid")
	if callID == "" {
		callID = r.PostForm.Get("CallSid")
	}
	reply := s.dialogue.Resume(r.Context(), callID)
	s.write(w, r, func() (string, error) { return s.renderer.Render(reply) })
}

func (s *Server) dialStatus(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	status := r.PostForm.Get("DialCallStatus")
	logx.Ctx(r.Context()).Info().Str("call_sid", r.PostForm.Get("CallSid")).Str("dial_status", status).Msg("operator dial finished")
	s.write(w, r, func() (string, error) { return s.renderer.DialStatus(status) })
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, render func() (string, error)) {
	body, err := render()
	if err != nil {
		logx.Ctx(r.Context()).Error().Err(err).Msg("render twiml")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeTwiML(w, body)
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
