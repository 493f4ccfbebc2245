package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/voicebot-core/server/internal/agent/dialogue"
	"github.com/voicebot-core/server/internal/agent/dialogue/observers"
	"github.com/voicebot-core/server/internal/agent/llm"
	"github.com/voicebot-core/server/internal/agent/model"
	"github.com/voicebot-core/server/internal/agent/repo"
	"github.com/voicebot-core/server/internal/agent/tools"
	"github.com/voicebot-core/server/internal/core"
	"github.com/voicebot-core/server/internal/integrations/calendar"
	"github.com/voicebot-core/server/internal/integrations/crm"
	"github.com/voicebot-core/server/internal/integrations/mailer"
	"github.com/voicebot-core/server/internal/integrations/orders"
	"github.com/voicebot-core/server/internal/knowledge"
	"github.com/voicebot-core/server/internal/telephony"
	logx "github.com/voicebot-core/server/pkg/logger"
	pkgredis "github.com/voicebot-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the voice bot,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Server telephony.Config
	Redis  pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response model.ResponseModelConfig
	Dialogue model.DialogueConfig
	Prompt   model.PromptConfig
	Session  model.SessionConfig
	Phrases  model.Phrases
	Booking  model.BookingConfig
	Storage  model.StorageConfig

	// Integrations
	Operator telephony.OperatorConfig
	Calendar calendar.Config
	Mail     mailer.Config
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Dialogue.Timezone)
	if err != nil {
		logx.Fatal().Err(err).Str("timezone", cfg.Dialogue.Timezone).Msg("Invalid DIALOGUE_TIMEZONE")
	}

	store, closeStore := buildSessionStore(ctx, cfg)
	defer closeStore()

	kb, err := knowledge.Load(ctx, cfg.Storage.KnowledgeDir, cfg.Storage.ChunkSize, cfg.Storage.ChunkOverlap)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load knowledge base")
	}
	logx.Info().Int("chunks", kb.Len()).Str("dir", cfg.Storage.KnowledgeDir).Msg("Knowledge base loaded")

	profiles, err := crm.LoadDirectory(cfg.Storage.ProfilesPath)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load caller profiles")
	}

	observe := []callbacks.Handler{observers.NewAllCallbacks()}
	deps := tools.Deps{
		Orders:     orders.NewFileArchive(cfg.Storage.OrdersDir, loc),
		Notifier:   mailer.New(cfg.Mail),
		Clients:    crm.NewClientLog(cfg.Storage.ClientLogPath, loc),
		Location:   loc,
		OpenHour:   cfg.Booking.OpenHour,
		CloseHour:  cfg.Booking.CloseHour,
		PinnedYear: cfg.Dialogue.PinnedYear,
		Handlers:   observe,
	}
	if cfg.Calendar.Configured() {
		cal, err := calendar.New(ctx, cfg.Calendar, loc)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Google Calendar")
		}
		deps.Calendar = cal
	} else {
		logx.Warn().Msg("GOOGLE_CREDENTIALS_FILE not set, calendar tools are disabled")
	}
	registry := tools.NewBookingRegistry(deps)

	infos, err := registry.Infos(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build tool catalog")
	}
	chatModel, err := llm.NewResponseModel(ctx, llm.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Response: cfg.Response,
	}, infos)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build response model")
	}

	ctrl, err := dialogue.NewController(dialogue.Config{
		Store:         store,
		Model:         chatModel,
		ModelName:     cfg.Response.Model,
		Tools:         registry,
		Retriever:     kb,
		Profiles:      profiles,
		Prompt:        cfg.Prompt,
		Dialogue:      cfg.Dialogue,
		Phrases:       cfg.Phrases,
		MaxToolRounds: cfg.Session.Tools.MaxRounds,
		Handlers:      observe,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build dialogue controller")
	}

	server := telephony.NewServer(cfg.Server, ctrl, telephony.NewRenderer(cfg.Phrases, cfg.Operator))
	if err := server.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("Webhook server stopped")
	}
	logx.Info().Msg("Bye")
}

// buildSessionStore selects the session backend and returns its cleanup.
func buildSessionStore(ctx context.Context, cfg AppConfig) (model.SessionStore, func()) {
	switch cfg.Session.Backend {
	case "redis":
		ttl, err := time.ParseDuration(cfg.Session.TTL)
		if err != nil {
			logx.Fatal().Err(err).Msgf("Invalid SESSION_TTL '%s'", cfg.Session.TTL)
		}
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		logx.Info().Dur("ttl", ttl).Msg("Connected to Redis, sessions stored in Redis")
		return repo.NewRedisSessionStore(rdb, ttl), func() { _ = rdb.Close() }
	case "memory", "":
		store := repo.NewMemorySessionStore()
		idle, err := time.ParseDuration(cfg.Session.IdleTTL)
		if err != nil {
			logx.Fatal().Err(err).Msgf("Invalid SESSION_IDLE_TTL '%s'", cfg.Session.IdleTTL)
		}
		if idle > 0 {
			go sweep(ctx, store, idle)
		}
		return store, func() {}
	default:
		logx.Fatal().Str("backend", cfg.Session.Backend).Msg("Unknown SESSION_BACKEND")
		return nil, nil
	}
}

// sweep evicts idle in-memory sessions until ctx is done.
func sweep(ctx context.Context, store *repo.MemorySessionStore, idle time.Duration) {
	every := idle / 4
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(idle); n > 0 {
				logx.Debug().Int("evicted", n).Int("live", store.Len()).Msg("Swept idle sessions")
			}
		}
	}
}
