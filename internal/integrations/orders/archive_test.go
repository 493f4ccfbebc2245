package orders

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebot-core/server/internal/agent/model"
)

func TestFileArchive_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "orders")
	a := NewFileArchive(dir, time.UTC)

	path, err := a.Save(context.Background(), model.Order{
		ClientName:    "Daniel",
		ClientPhone:   "+972-50-123-1449",
		Date:          "2026-06-15",
		Time:          "10:00",
		Duration:      "1",
		EventID:       "evt-1",
		Qualification: model.Qualification{City: "Tel Aviv", Urgency: "this week"},
		CreatedAt:     time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^order_[0-9A-HJKMNP-TV-Z]{26}_972501231449\.txt$`), filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "ORDER DETAILS")
	assert.Contains(t, content, "Created: 2026-06-01 07:00:00")
	assert.Contains(t, content, "Client name: Daniel")
	assert.Contains(t, content, "Duration: 1 h")
	assert.Contains(t, content, "Calendar event: evt-1")
	assert.Contains(t, content, "City: Tel Aviv")
	assert.Contains(t, content, "Urgency: this week")
	assert.NotContains(t, content, "Client email")
}

func TestFileArchive_UniqueNames(t *testing.T) {
	a := NewFileArchive(t.TempDir(), nil)
	o := model.Order{ClientName: "Maria", CreatedAt: time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)}

	p1, err := a.Save(context.Background(), o)
	require.NoError(t, err)
	p2, err := a.Save(context.Background(), o)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.Contains(t, filepath.Base(p1), "_unknown.txt")
}
