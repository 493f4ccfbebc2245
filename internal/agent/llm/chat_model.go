package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

// Config holds the configuration for chat model creation
type Config struct {
	APIKey   string
	BaseURL  string
	Response model.ResponseModelConfig
}

// NewResponseModel creates the Gemini chat model that answers callers and
// binds the tool catalog to it.
func NewResponseModel(ctx context.Context, config Config, tools []*schema.ToolInfo) (*gemini.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	modelCfg := &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
	}
	// voice turns are latency bound; only 2.5 models accept a thinking budget
	if strings.HasPrefix(config.Response.Model, "gemini-2.5-flash") {
		modelCfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, modelCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	if len(tools) > 0 {
		if err := chatModel.BindTools(tools); err != nil {
			logx.Error().Err(err).Msg("Failed to bind tools")
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to response model")
	}
	return chatModel, nil
}
