package notification

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
	"time"

	"github.com/smukkama/env-monitor/internal/protocol"
	"github.com/smukkama/env-monitor/pkg/config"
)

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail}
}

var alertTemplate = template.Must(template.New("alert").Parse(`
Environmental Alert: {{.Severity}}
==================================

Location: {{.Location}}
Category: {{.Category}}
Metric:   {{.Metric}}
Value:    {{.Value}}
Observed: {{.Timestamp}}
{{- if .FirstObserved}}
Ongoing since: {{.FirstObserved.Format "2006-01-02 15:04 MST"}}
{{- end}}
Alert ID: {{.ID}}

{{.Message}}
{{.Details}}

---
Environmental Monitor Notification System
`))

func (e *EmailNotifier) Name() string { return "email" }

// Send emails notifications that carry an alert event; others are ignored.
func (e *EmailNotifier) Send(_ context.Context, n Notification) error {
	if n.Event == nil {
		return nil
	}
	return e.SendAlertEvent(n.Event)
}

// SendAlertEvent sends an email describing one alert event
func (e *EmailNotifier) SendAlertEvent(ev *protocol.AlertEvent) error {
	subject := fmt.Sprintf("%s %s alert - %s", ev.Icon, ev.Category, ev.Location)

	body, err := RenderAlertEmail(ev)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

// RenderAlertEmail returns the plain-text body for an alert event
func RenderAlertEmail(ev *protocol.AlertEvent) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, ev); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if e.config.Username == "" || e.config.Password == "" {
		slog.Info("SMTP not configured, skipping email", "subject", subject)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("email sent", "subject", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
