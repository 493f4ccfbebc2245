package orders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

// FileArchive stores each order as a plain-text file under dir.
type FileArchive struct {
	dir string
	loc *time.Location
}

func NewFileArchive(dir string, loc *time.Location) *FileArchive {
	if loc == nil {
		loc = time.UTC
	}
	return &FileArchive{dir: dir, loc: loc}
}

// Save writes order_<ulid>_<phone digits>.txt and returns its path.
// ULIDs sort by creation time, so a directory listing is chronological.
func (a *FileArchive) Save(_ context.Context, o model.Order) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create order dir: %w", err)
	}
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	id := ulid.MustNew(ulid.Timestamp(created), ulid.DefaultEntropy())
	name := fmt.Sprintf("order_%s_%s.txt", id, phoneDigits(o.ClientPhone))
	path := filepath.Join(a.dir, name)

	if err := os.WriteFile(path, []byte(formatOrder(id.String(), o, created.In(a.loc))), 0o644); err != nil {
		return "", fmt.Errorf("write order %s: %w", name, err)
	}
	logx.Info().Str("order_id", id.String()).Str("path", path).Msg("order archived")
	return path, nil
}

func formatOrder(id string, o model.Order, created time.Time) string {
	var sb strings.Builder
	sb.WriteString("ORDER DETAILS\n")
	sb.WriteString("=============\n")
	fmt.Fprintf(&sb, "Order ID: %s\n", id)
	fmt.Fprintf(&sb, "Created: %s\n", created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Client name: %s\n", o.ClientName)
	fmt.Fprintf(&sb, "Client phone: %s\n", o.ClientPhone)
	if o.ClientEmail != "" {
		fmt.Fprintf(&sb, "Client email: %s\n", o.ClientEmail)
	}
	if o.Date != "" {
		fmt.Fprintf(&sb, "Date: %s\n", o.Date)
	}
	if o.Time != "" {
		fmt.Fprintf(&sb, "Time: %s\n", o.Time)
	}
	if o.Duration != "" {
		fmt.Fprintf(&sb, "Duration: %s h\n", o.Duration)
	}
	if o.EventID != "" {
		fmt.Fprintf(&sb, "Calendar event: %s\n", o.EventID)
	}
	for _, f := range o.Qualification.Fields() {
		fmt.Fprintf(&sb, "%s: %s\n", f[0], f[1])
	}
	return sb.String()
}

func phoneDigits(phone string) string {
	d := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if d == "" {
		return "unknown"
	}
	return d
}
