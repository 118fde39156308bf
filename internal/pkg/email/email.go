// Package email sends fee reminder mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
)

// Mailer sends notification emails.
type Mailer interface {
	SendFeeReminder(ctx context.Context, reminder models.FeeReminder) error
}

// SMTPConfig holds configuration for the SMTP server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether mail can actually be sent.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer implements Mailer. Without a configured host it only logs.
type SMTPMailer struct {
	config SMTPConfig
	logger zerolog.Logger
	send   sendFunc
}

func NewSMTPMailer(config SMTPConfig, logger zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, logger: logger, send: smtp.SendMail}
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<p>Dear {{.StudentName}},</p>
<p>This is a reminder that the fee <strong>{{.Description}}</strong> for term {{.Term}}
is due on {{.DueDate.Format "2 January 2006"}}.</p>
<p>Amount billed: {{printf "%.2f" .Amount}}<br>
Amount paid: {{printf "%.2f" .AmountPaid}}<br>
Outstanding: <strong>{{printf "%.2f" .Outstanding}}</strong></p>
<p>Please contact the finance office if you have already paid.</p>
</body>
</html>`))

// SendFeeReminder emails the student about an unpaid fee.
func (m *SMTPMailer) SendFeeReminder(ctx context.Context, r models.FeeReminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Email == "" {
		return fmt.Errorf("fee %d: student has no email address", r.ID)
	}
	if !m.config.Configured() {
		m.logger.Warn().
			Str("toEmail", r.Email).
			Int64("feeID", r.ID).
			Float64("outstanding", r.Outstanding()).
			Msg("SMTP not configured - fee reminder not sent")
		return nil
	}

	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, &r); err != nil {
		return fmt.Errorf("failed to render reminder: %w", err)
	}
	subject := fmt.Sprintf("Fee reminder: %s (%s)", r.Description, r.Term)
	return m.sendHTML(r.Email, subject, body.String())
}

// BuildMessage assembles the RFC 5322 message with an HTML body.
func BuildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func (m *SMTPMailer) sendHTML(to, subject, htmlBody string) error {
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	addr := m.config.Host + ":" + strconv.Itoa(m.config.Port)

	// smtp.SendMail upgrades to STARTTLS when the server offers it.
	if err := m.send(addr, auth, m.config.From, []string{to}, BuildMessage(m.config.From, to, subject, htmlBody)); err != nil {
		m.logger.Error().Err(err).Str("server", addr).Msg("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Debug().Str("toEmail", to).Str("subject", subject).Msg("Email sent")
	return nil
}
