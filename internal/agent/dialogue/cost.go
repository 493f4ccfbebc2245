package dialogue

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

// recordUsage computes the USD cost of a model answer, logs it and attaches it to msg.Extra.
func recordUsage(ctx context.Context, modelName, phase string, msg *schema.Message) float64 {
	usage := model.UsageOf(msg)
	if usage == nil {
		return 0
	}
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	if msg.Extra == nil {
		msg.Extra = map[string]any{}
	}
	msg.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}
	logx.Ctx(ctx).Debug().
		Str("node", phase).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
	metrics.ModelCostUSD.WithLabelValues(modelName).Add(totalC)
	return totalC
}
