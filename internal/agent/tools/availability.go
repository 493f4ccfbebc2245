package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
)

var durationEnum = []string{"1", "2"}

type AvailabilityInput struct {
	Date     string `json:"date"`
	Duration string `json:"duration"`
}

// Slot is one free range as reported to the model.
type Slot struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
}

type AvailabilityData struct {
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Slots    []Slot `json:"availableSlots"`
}

func availabilitySpec() Spec {
	return Spec{
		Name: ToolCheckAvailability,
		Desc: "Checks which time ranges are free for a product demonstration at the office on the given date. Returns the free ranges within business hours.",
		Params: map[string]*schema.ParameterInfo{
			"date": {
				Type:     schema.String,
				Desc:     "Date in YYYY-MM-DD format, for example 2026-06-15.",
				Required: true,
			},
			"duration": {
				Type:     schema.String,
				Desc:     "Meeting length in hours.",
				Enum:     durationEnum,
				Required: true,
			},
		},
		DateParams: []string{"date"},
	}
}

func (b *booking) checkAvailability(ctx context.Context, in *AvailabilityInput) (*Result, error) {
	if b.deps.Calendar == nil {
		return nil, fmt.Errorf("calendar: %w", ErrNotConfigured)
	}
	day, err := time.ParseInLocation(time.DateOnly, in.Date, b.deps.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", in.Date)
	}
	hours, err := strconv.Atoi(in.Duration)
	if err != nil || hours <= 0 {
		return nil, fmt.Errorf("invalid duration %q", in.Duration)
	}

	window := b.businessDay(day)
	busy, err := b.deps.Calendar.FreeBusy(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	free := FreeRanges(window, busy, time.Duration(hours)*time.Hour)
	data := AvailabilityData{Date: in.Date, Duration: hours, Slots: make([]Slot, 0, len(free))}
	for _, f := range free {
		start, end := f.Start.In(b.deps.Location), f.End.In(b.deps.Location)
		data.Slots = append(data.Slots, Slot{
			Start:    start.Format("15:04"),
			End:      end.Format("15:04"),
			StartISO: start.Format(time.RFC3339),
			EndISO:   end.Format(time.RFC3339),
		})
	}

	if len(data.Slots) == 0 {
		return &Result{
			Success: true,
			Message: fmt.Sprintf("No free ranges on %s for a %d hour meeting. Offer another date.", in.Date, hours),
			Data:    data,
		}, nil
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Found %d free ranges on %s for a demonstration. If one suits the caller, ask for their name and phone number to book.", len(data.Slots), in.Date),
		Data:    data,
	}, nil
}

func (b *booking) businessDay(day time.Time) model.Interval {
	y, m, d := day.Date()
	return model.Interval{
		Start: time.Date(y, m, d, b.deps.OpenHour, 0, 0, 0, b.deps.Location),
		End:   time.Date(y, m, d, b.deps.CloseHour, 0, 0, 0, b.deps.Location),
	}
}

// FreeRanges inverts busy intervals inside window and keeps the gaps that are
// at least minLen long. Busy intervals may overlap and arrive in any order.
func FreeRanges(window model.Interval, busy []model.Interval, minLen time.Duration) []model.Interval {
	sorted := append([]model.Interval(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var free []model.Interval
	keep := func(start, end time.Time) {
		if end.Sub(start) >= minLen && end.After(start) {
			free = append(free, model.Interval{Start: start, End: end})
		}
	}

	cursor := window.Start
	for _, b := range sorted {
		if !cursor.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(window.End) {
				end = window.End
			}
			keep(cursor, end)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(window.End) {
		keep(cursor, window.End)
	}
	return free
}
