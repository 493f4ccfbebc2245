package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-core/server/internal/agent/model"
	"github.com/voicebot-core/server/internal/agent/tools"
)

func TestRenderSystem(t *testing.T) {
	now := time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)
	cfg := model.PromptConfig{BusinessName: "Leader", BusinessType: "payment terminals"}

	out, err := RenderSystem(context.Background(), cfg, SystemInput{
		Context:    "Terminal A920 costs 99 per month.",
		Gender:     model.GenderFemale,
		Now:        now,
		PinnedYear: 2026,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "phone assistant of Leader")
	assert.Contains(t, out, "Terminal A920 costs 99 per month.")
	assert.Contains(t, out, "The caller is female.")
	assert.Contains(t, out, "2026-06-15 09:30")
	assert.Contains(t, out, "Today is Monday, 2026-06-15")
	assert.Contains(t, out, "All bookings are in 2026.")
	assert.Contains(t, out, tools.ToolCheckAvailability)
	assert.Contains(t, out, tools.ToolTransferToSupport)
}

func TestRenderSystem_UnknownGenderAndNoContext(t *testing.T) {
	out, err := RenderSystem(context.Background(), model.PromptConfig{BusinessName: "Leader"}, SystemInput{
		Now:        time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		PinnedYear: 2026,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "gender is unknown")
	assert.Contains(t, out, "No reference material was found")
	assert.NotContains(t, out, "<no value>")
}
