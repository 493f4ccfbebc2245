package model

import "time"

// Qualification holds the optional lead qualification answers collected during a call.
type Qualification struct {
	HasTerminal     string `json:"has_terminal,omitempty"`
	BusinessType    string `json:"business_type,omitempty"`
	City            string `json:"city,omitempty"`
	MonthlyTurnover string `json:"monthly_turnover,omitempty"`
	CurrentProvider string `json:"current_provider,omitempty"`
	PointsCount     string `json:"points_count,omitempty"`
	Urgency         string `json:"urgency,omitempty"`
}

// IsZero reports whether no qualification field was filled.
func (q Qualification) IsZero() bool {
	return q == Qualification{}
}

// Fields returns the filled qualification answers in a stable order, labelled for humans.
func (q Qualification) Fields() [][2]string {
	all := [][2]string{
		{"Has terminal", q.HasTerminal},
		{"Business type", q.BusinessType},
		{"City", q.City},
		{"Monthly turnover", q.MonthlyTurnover},
		{"Current provider", q.CurrentProvider},
		{"Points of sale", q.PointsCount},
		{"Urgency", q.Urgency},
	}
	out := all[:0]
	for _, f := range all {
		if f[1] != "" {
			out = append(out, f)
		}
	}
	return out
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarEvent is the event a booking creates in the business calendar.
type CalendarEvent struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
}

// CreatedEvent is what the calendar returns after insertion.
type CreatedEvent struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// Order is a booking or a deferred request handed to the human operator.
type Order struct {
	ClientName    string        `json:"client_name"`
	ClientPhone   string        `json:"client_phone"`
	ClientEmail   string        `json:"client_email,omitempty"`
	Date          string        `json:"date,omitempty"`
	Time          string        `json:"time,omitempty"`
	Duration      string        `json:"duration,omitempty"`
	EventID       string        `json:"event_id,omitempty"`
	Qualification Qualification `json:"qualification"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ClientRecord is a caller's contact data captured for the CRM.
type ClientRecord struct {
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Qualification Qualification `json:"qualification"`
	SavedAt       time.Time     `json:"saved_at"`
}

// CallerProfile is what the profile directory knows about a phone number.
type CallerProfile struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
}
