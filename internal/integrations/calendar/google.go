package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

type Config struct {
	CredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE"`
	CalendarID      string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
	Retries         uint64 `envconfig:"GOOGLE_CALENDAR_RETRIES" default:"2"`
}

func (c Config) Configured() bool {
	return c.CredentialsFile != ""
}

// Google adapts the Calendar v3 API to the booking tools.
type Google struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
	backoff    func() retry.Backoff
}

// New builds the adapter from a service-account credentials file.
func New(ctx context.Context, cfg Config, loc *time.Location, opts ...option.ClientOption) (*Google, error) {
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gcal.CalendarScope),
		}, opts...)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	id := cfg.CalendarID
	if id == "" {
		id = "primary"
	}
	retries := cfg.Retries
	return &Google{
		svc:        svc,
		calendarID: id,
		timezone:   loc.String(),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(retries, retry.NewExponential(200*time.Millisecond))
		},
	}, nil
}

func (g *Google) FreeBusy(ctx context.Context, from, to time.Time) ([]model.Interval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin:  from.Format(time.RFC3339),
		TimeMax:  to.Format(time.RFC3339),
		TimeZone: g.timezone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}

	var resp *gcal.FreeBusyResponse
	err := g.do(ctx, "freebusy", func(ctx context.Context) (err error) {
		resp, err = g.svc.Freebusy.Query(req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy %s: %s", g.calendarID, cal.Errors[0].Reason)
	}
	busy := make([]model.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("busy end %q: %w", p.End, err)
		}
		busy = append(busy, model.Interval{Start: start, End: end})
	}
	return busy, nil
}

func (g *Google) CreateEvent(ctx context.Context, ev model.CalendarEvent) (model.CreatedEvent, error) {
	event := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: g.timezone},
	}
	if ev.AttendeeEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: ev.AttendeeEmail}}
	}

	var created *gcal.Event
	err := g.do(ctx, "insert", func(ctx context.Context) (err error) {
		created, err = g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return model.CreatedEvent{}, err
	}
	logx.Info().Str("event_id", created.Id).Str("start", event.Start.DateTime).Msg("calendar event created")
	return model.CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

func (g *Google) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable(err) {
			logx.Warn().Err(err).Str("op", op).Msg("calendar call failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("calendar %s: %w", op, err)
	}
	return nil
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return false
}
