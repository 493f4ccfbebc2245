package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
	"github.com/voicebot-core/server/internal/agent/tools"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

// SystemInput is the per-turn data the system instruction is rendered from.
type SystemInput struct {
	Context    string
	Gender     model.Gender
	Now        time.Time
	PinnedYear int
}

// RenderSystem renders the system instruction via the Eino prompt component,
// which also triggers prompt callbacks.
func RenderSystem(ctx context.Context, config model.PromptConfig, in SystemInput) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	now := in.Now
	vars := map[string]any{
		"BusinessName":     config.BusinessName,
		"BusinessType":     config.BusinessType,
		"Context":          in.Context,
		"Gender":           string(in.Gender),
		"Now":              now.Format("2006-01-02 15:04"),
		"Today":            now.Format(time.DateOnly),
		"Weekday":          now.Weekday().String(),
		"Timezone":         now.Location().String(),
		"PinnedYear":       in.PinnedYear,
		"AvailabilityTool": tools.ToolCheckAvailability,
		"BookTool":         tools.ToolBookAppointment,
		"OrderTool":        tools.ToolSendOrder,
		"TransferTool":     tools.ToolTransferToSupport,
		"SaveClientTool":   tools.ToolSaveClientData,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
