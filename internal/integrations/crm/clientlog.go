package crm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

// ClientLog appends captured client records as readable blocks to a text file.
type ClientLog struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

func NewClientLog(path string, loc *time.Location) *ClientLog {
	if loc == nil {
		loc = time.UTC
	}
	return &ClientLog{path: path, loc: loc}
}

func (l *ClientLog) Record(_ context.Context, rec model.ClientRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create client log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open client log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatRecord(rec, l.loc)); err != nil {
		return fmt.Errorf("write client log: %w", err)
	}
	logx.Info().Str("path", l.path).Str("phone", rec.Phone).Msg("client data saved")
	return nil
}

func formatRecord(rec model.ClientRecord, loc *time.Location) string {
	q := rec.Qualification
	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved at: %s\n", rec.SavedAt.In(loc).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Name: %s\n", rec.Name)
	fmt.Fprintf(&sb, "Phone: %s\n", rec.Phone)
	fmt.Fprintf(&sb, "Has terminal: %s\n", q.HasTerminal)
	fmt.Fprintf(&sb, "Business type: %s\n", q.BusinessType)
	fmt.Fprintf(&sb, "City: %s\n", q.City)
	fmt.Fprintf(&sb, "Monthly turnover: %s\n", q.MonthlyTurnover)
	fmt.Fprintf(&sb, "Current provider: %s\n", q.CurrentProvider)
	fmt.Fprintf(&sb, "Points of sale: %s\n", q.PointsCount)
	fmt.Fprintf(&sb, "Urgency: %s\n", q.Urgency)
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	return sb.String()
}
