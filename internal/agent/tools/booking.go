package tools

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

type booking struct {
	deps Deps
}

type BookAppointmentInput struct {
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
	ClientName    string `json:"clientName"`
	ClientPhone   string `json:"clientPhone"`
	Duration      string `json:"duration"`
	ClientEmail   string `json:"clientEmail,omitempty"`
	model.Qualification
}

type SendOrderInput struct {
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Duration    string `json:"duration,omitempty"`
	model.Qualification
}

type TransferInput struct{}

type SaveClientDataInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	model.Qualification
}

// BookingData is returned to the model after a successful booking.
type BookingData struct {
	EventID  string `json:"event_id"`
	Link     string `json:"link,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
	OrderRef string `json:"order_ref,omitempty"`
}

func stringParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc}
}

func requiredParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: true}
}

// qualificationParams are the optional lead qualification answers shared by several tools.
func qualificationParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"has_terminal":     stringParam(`Answer to "Do you already have a payment terminal?" (yes/no).`),
		"business_type":    stringParam(`Answer to "What kind of business is the solution for?"`),
		"city":             stringParam(`Answer to "Which city are you in?"`),
		"monthly_turnover": stringParam("Approximate monthly card turnover."),
		"current_provider": stringParam("Current acquiring or terminal provider."),
		"points_count":     stringParam("Number of checkout points needed."),
		"urgency":          stringParam("How urgently the installation is needed."),
	}
}

func withQualification(params map[string]*schema.ParameterInfo) map[string]*schema.ParameterInfo {
	maps.Copy(params, qualificationParams())
	return params
}

func bookAppointmentSpec() Spec {
	return Spec{
		Name: ToolBookAppointment,
		Desc: "Books the caller for a product demonstration at the office. Requires a confirmed time, the caller's name and phone number.",
		Params: withQualification(map[string]*schema.ParameterInfo{
			"startDateTime": requiredParam("Start of the meeting in ISO 8601, for example 2026-06-15T10:00:00+03:00."),
			"endDateTime":   requiredParam("End of the meeting in ISO 8601, for example 2026-06-15T11:00:00+03:00."),
			"clientName":    requiredParam("Caller's name."),
			"clientPhone":   requiredParam("Caller's phone number."),
			"duration": {
				Type:     schema.String,
				Desc:     `Meeting length in hours ("1" or "2").`,
				Enum:     durationEnum,
				Required: true,
			},
			"clientEmail": stringParam("Caller's email, optional."),
		}),
		DateParams: []string{"startDateTime", "endDateTime"},
	}
}

func sendOrderSpec() Spec {
	return Spec{
		Name: ToolSendOrder,
		Desc: "Saves a preliminary order and sends it to the operator for confirmation. Use it when the caller wants to order but the exact time is not agreed yet or needs a manual check.",
		Params: withQualification(map[string]*schema.ParameterInfo{
			"clientName":  requiredParam("Caller's name."),
			"clientPhone": requiredParam("Caller's phone number."),
			"date":        requiredParam("Preferred date (YYYY-MM-DD)."),
			"time":        stringParam(`Preferred time, for example "14:00".`),
			"duration":    stringParam("Length in hours."),
		}),
		DateParams: []string{"date"},
	}
}

func transferSpec() Spec {
	return Spec{
		Name: ToolTransferToSupport,
		Desc: "Transfers the call to a human operator. Use it when the caller explicitly asks for a person or when you cannot help.",
	}
}

func saveClientDataSpec() Spec {
	return Spec{
		Name: ToolSaveClientData,
		Desc: "Saves what is known about the caller (name, phone, terminal, business type, city) to the CRM. Use it once the information has been collected during the conversation.",
		Params: withQualification(map[string]*schema.ParameterInfo{
			"name":  requiredParam("Caller's full name."),
			"phone": requiredParam("Caller's phone number."),
		}),
	}
}

// parseDateTime accepts RFC 3339 and offset-less local forms interpreted in loc.
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q, expected ISO 8601", s)
}

func (b *booking) bookAppointment(ctx context.Context, in *BookAppointmentInput) (*Result, error) {
	if b.deps.Calendar == nil {
		return nil, fmt.Errorf("calendar: %w", ErrNotConfigured)
	}
	start, err := parseDateTime(in.StartDateTime, b.deps.Location)
	if err != nil {
		return nil, err
	}
	end, err := parseDateTime(in.EndDateTime, b.deps.Location)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("meeting end %s is not after start %s", in.EndDateTime, in.StartDateTime)
	}

	local := start.In(b.deps.Location)
	order := model.Order{
		ClientName:    in.ClientName,
		ClientPhone:   in.ClientPhone,
		ClientEmail:   in.ClientEmail,
		Date:          local.Format(time.DateOnly),
		Time:          local.Format("15:04"),
		Duration:      in.Duration,
		Qualification: in.Qualification,
		CreatedAt:     b.deps.Now(),
	}

	ev, err := b.deps.Calendar.CreateEvent(ctx, model.CalendarEvent{
		Summary:       "Demo: " + in.ClientName,
		Description:   describeOrder(order),
		Start:         start,
		End:           end,
		AttendeeEmail: in.ClientEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("create calendar event: %w", err)
	}
	order.EventID = ev.ID

	// the event exists at this point, so archive and mail failures only get logged
	ref := b.archive(ctx, order)
	b.notify(ctx, order, "Confirmed in calendar")

	return &Result{
		Success: true,
		Message: fmt.Sprintf("The demonstration is booked. Tell the caller: they are booked for %s at %s at the office, and we look forward to seeing them.", order.Date, order.Time),
		Data: BookingData{
			EventID:  ev.ID,
			Link:     ev.Link,
			Start:    start.Format(time.RFC3339),
			End:      end.Format(time.RFC3339),
			OrderRef: ref,
		},
	}, nil
}

func (b *booking) sendOrder(ctx context.Context, in *SendOrderInput) (*Result, error) {
	if b.deps.Orders == nil {
		return nil, fmt.Errorf("order archive: %w", ErrNotConfigured)
	}
	order := model.Order{
		ClientName:    in.ClientName,
		ClientPhone:   in.ClientPhone,
		Date:          in.Date,
		Time:          in.Time,
		Duration:      in.Duration,
		Qualification: in.Qualification,
		CreatedAt:     b.deps.Now(),
	}
	ref, err := b.deps.Orders.Save(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	b.notify(ctx, order, "Pending operator confirmation")

	return &Result{
		Success: true,
		Message: "The order was created. Tell the caller: the order is accepted and an operator will call them back at this number soon.",
		Data:    map[string]string{"order_ref": ref},
	}, nil
}

func (b *booking) transfer(_ context.Context, _ *TransferInput) (*Result, error) {
	return &Result{
		Success:        true,
		ShouldTransfer: true,
		Message:        "Transfer to an operator initiated.",
	}, nil
}

func (b *booking) saveClientData(ctx context.Context, in *SaveClientDataInput) (*Result, error) {
	if b.deps.Clients == nil {
		return nil, fmt.Errorf("client records: %w", ErrNotConfigured)
	}
	rec := model.ClientRecord{
		Name:          in.Name,
		Phone:         in.Phone,
		Qualification: in.Qualification,
		SavedAt:       b.deps.Now(),
	}
	if err := b.deps.Clients.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("save client data: %w", err)
	}
	return &Result{Success: true, Message: "Client data saved."}, nil
}

func (b *booking) archive(ctx context.Context, order model.Order) string {
	if b.deps.Orders == nil {
		return ""
	}
	ref, err := b.deps.Orders.Save(ctx, order)
	if err != nil {
		logx.Warn().Err(err).Str("event_id", order.EventID).Msg("failed to archive booked order")
		return ""
	}
	return ref
}

func (b *booking) notify(ctx context.Context, order model.Order, status string) {
	if b.deps.Notifier == nil {
		return
	}
	if err := b.deps.Notifier.NotifyOrder(ctx, order, status); err != nil {
		logx.Warn().Err(err).Str("client_phone", order.ClientPhone).Msg("failed to send order notification")
	}
}

// describeOrder renders the human readable order summary used in calendar events.
func describeOrder(o model.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client: %s\nPhone: %s\n", o.ClientName, o.ClientPhone)
	if o.ClientEmail != "" {
		fmt.Fprintf(&sb, "Email: %s\n", o.ClientEmail)
	}
	if o.Duration != "" {
		if h, err := strconv.Atoi(o.Duration); err == nil {
			fmt.Fprintf(&sb, "Duration: %d h\n", h)
		}
	}
	for _, f := range o.Qualification.Fields() {
		fmt.Fprintf(&sb, "%s: %s\n", f[0], f[1])
	}
	return strings.TrimRight(sb.String(), "\n")
}
