package tools

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/callbacks"

	"github.com/voicebot-core/server/internal/agent/model"
)

// Tool names advertised to the model.
const (
	ToolCheckAvailability = "check_availability"
	ToolBookAppointment   = "book_appointment"
	ToolSendOrder         = "send_order_to_operator"
	ToolTransferToSupport = "transfer_to_support"
	ToolSaveClientData    = "save_client_data"
)

// ErrNotConfigured is returned by a tool whose collaborator was not wired.
var ErrNotConfigured = errors.New("integration not configured")

// Calendar is the business calendar the booking tools read and write.
type Calendar interface {
	FreeBusy(ctx context.Context, from, to time.Time) ([]model.Interval, error)
	CreateEvent(ctx context.Context, ev model.CalendarEvent) (model.CreatedEvent, error)
}

// OrderArchive persists orders for the human operator and returns a reference to the stored copy.
type OrderArchive interface {
	Save(ctx context.Context, order model.Order) (string, error)
}

type Notifier interface {
	NotifyOrder(ctx context.Context, order model.Order, status string) error
}

type ClientRecorder interface {
	Record(ctx context.Context, rec model.ClientRecord) error
}

// Deps wires the booking tools to their collaborators. Nil collaborators make
// the tools that need them fail with ErrNotConfigured.
type Deps struct {
	Calendar Calendar
	Orders   OrderArchive
	Notifier Notifier
	Clients  ClientRecorder

	Location   *time.Location
	OpenHour   int
	CloseHour  int
	PinnedYear int
	Now        func() time.Time

	Handlers []callbacks.Handler
}

func (d *Deps) normalize() {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.OpenHour == 0 && d.CloseHour == 0 {
		d.OpenHour, d.CloseHour = 8, 20
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// NewBookingRegistry builds the registry holding the five booking tools.
func NewBookingRegistry(deps Deps) *Registry {
	deps.normalize()
	b := &booking{deps: deps}
	r := NewRegistry(deps.PinnedYear, deps.Handlers...)

	Add(r, availabilitySpec(), b.checkAvailability)
	Add(r, bookAppointmentSpec(), b.bookAppointment)
	Add(r, sendOrderSpec(), b.sendOrder)
	Add(r, transferSpec(), b.transfer)
	Add(r, saveClientDataSpec(), b.saveClientData)
	return r
}
