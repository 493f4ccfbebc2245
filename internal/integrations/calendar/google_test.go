package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/voicebot-core/server/internal/agent/model"
)

func newTestGoogle(t *testing.T, h http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := New(context.Background(), Config{CalendarID: "team-cal"}, time.UTC,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	g.backoff = func() retry.Backoff { return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond)) }
	return g
}

func TestGoogle_FreeBusy(t *testing.T) {
	var got map[string]any
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/freeBusy"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"calendars":{"team-cal":{"busy":[
			{"start":"2026-06-15T09:00:00Z","end":"2026-06-15T10:00:00Z"},
			{"start":"2026-06-15T13:00:00Z","end":"2026-06-15T14:30:00Z"}]}}}`))
	})

	from := time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)
	busy, err := g.FreeBusy(context.Background(), from, from.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, "2026-06-15T13:00:00Z", busy[1].Start.Format(time.RFC3339))
	assert.Equal(t, 90*time.Minute, busy[1].End.Sub(busy[1].Start))
	assert.Equal(t, "2026-06-15T08:00:00Z", got["timeMin"])
	assert.Equal(t, "UTC", got["timeZone"])
}

func TestGoogle_FreeBusyCalendarError(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"calendars":{"team-cal":{"errors":[{"domain":"global","reason":"notFound"}]}}}`))
	})
	_, err := g.FreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notFound")
}

func TestGoogle_CreateEventRetries(t *testing.T) {
	var calls atomic.Int32
	var got map[string]any
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/team-cal/events"), r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"evt-42","htmlLink":"https://calendar.test/evt-42"}`))
	})

	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	ev, err := g.CreateEvent(context.Background(), model.CalendarEvent{
		Summary:       "Demo: Daniel",
		Start:         start,
		End:           start.Add(time.Hour),
		AttendeeEmail: "daniel@test.local",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CreatedEvent{ID: "evt-42", Link: "https://calendar.test/evt-42"}, ev)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Demo: Daniel", got["summary"])
	assert.Len(t, got["attendees"], 1)
}

func TestGoogle_CreateEventPermanentError(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})
	_, err := g.CreateEvent(context.Background(), model.CalendarEvent{Start: time.Now(), End: time.Now().Add(time.Hour)})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
