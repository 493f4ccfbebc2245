package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"github.com/voicebot-core/server/internal/agent/model"
	logx "github.com/voicebot-core/server/pkg/logger"
)

type Config struct {
	Host     string `envconfig:"MAIL_SMTP_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"MAIL_SMTP_PORT" default:"587"`
	Username string `envconfig:"MAIL_USERNAME"`
	Password string `envconfig:"MAIL_PASSWORD"`
	From     string `envconfig:"MAIL_FROM"`
	To       string `envconfig:"MAIL_TO"`
	Retries  uint64 `envconfig:"MAIL_RETRIES" default:"2"`
}

// Configured reports whether credentials and a recipient are present.
func (c Config) Configured() bool {
	return c.Username != "" && c.Password != "" && c.To != ""
}

// Notifier emails new orders to the sales inbox over SMTP.
type Notifier struct {
	cfg     Config
	send    func(ctx context.Context, msg *mail.Msg) error
	backoff func() retry.Backoff
}

func New(cfg Config) *Notifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	n := &Notifier{cfg: cfg}
	n.send = n.dialAndSend
	n.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(n.cfg.Retries, retry.NewExponential(500*time.Millisecond))
	}
	return n
}

// NotifyOrder sends the order summary. An unconfigured notifier only logs.
func (n *Notifier) NotifyOrder(ctx context.Context, order model.Order, status string) error {
	if !n.cfg.Configured() {
		logx.Warn().Str("client", order.ClientName).Msg("mail not configured, skipping order notification")
		return nil
	}
	msg, err := n.Build(order, status)
	if err != nil {
		return err
	}

	attempt := 0
	err = retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		attempt++
		if err := n.send(ctx, msg); err != nil {
			logx.Warn().Err(err).Int("attempt", attempt).Msg("order email failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	logx.Info().Str("to", n.cfg.To).Str("client", order.ClientName).Msg("order email sent")
	return nil
}

// Build assembles the multipart message without sending it.
func (n *Notifier) Build(order model.Order, status string) (*mail.Msg, error) {
	view := newOrderView(order, status)

	var text bytes.Buffer
	if err := textBody.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	var html bytes.Buffer
	if err := htmlBody.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject("New request from " + order.ClientName)
	msg.SetBodyString(mail.TypeTextPlain, text.String())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())
	return msg, nil
}

func (n *Notifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	if n.cfg.Host == "" {
		return errors.New("mail: smtp host is empty")
	}
	c, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, msg)
}

type orderView struct {
	model.Order
	Status string
	Extra  [][2]string
}

func newOrderView(o model.Order, status string) orderView {
	return orderView{Order: o, Status: status, Extra: o.Qualification.Fields()}
}

var textBody = template.Must(template.New("text").Parse(`New request received.

Client: {{.ClientName}}
Phone: {{.ClientPhone}}
{{- if .ClientEmail}}
Email: {{.ClientEmail}}{{end}}
{{- if .Date}}
Date: {{.Date}}{{end}}
{{- if .Time}}
Time: {{.Time}}{{end}}
{{- if .Duration}}
Duration: {{.Duration}} h{{end}}
{{- range .Extra}}
{{index . 0}}: {{index . 1}}{{end}}

Status: {{.Status}}
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>New request received</h2>
<p><strong>Client:</strong> {{.ClientName}}</p>
<p><strong>Phone:</strong> {{.ClientPhone}}</p>
{{- if .ClientEmail}}
<p><strong>Email:</strong> {{.ClientEmail}}</p>{{end}}
{{- if .Date}}
<p><strong>Date:</strong> {{.Date}}</p>{{end}}
{{- if .Time}}
<p><strong>Time:</strong> {{.Time}}</p>{{end}}
{{- if .Duration}}
<p><strong>Duration:</strong> {{.Duration}} h</p>{{end}}
{{- range .Extra}}
<p><strong>{{index . 0}}:</strong> {{index . 1}}</p>{{end}}
<p><em>Status: {{.Status}}</em></p>
`))
