package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends one formatted email. A delivery failure is reported to the
// caller and logged there; it never rolls back state the caller already
// committed. The caller decides ordering.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer delivers through a plain SMTP smarthost with STARTTLS and
// password auth.
type SMTPMailer struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

func NewSMTPMailer(host string, port int, sender, password string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, Sender: sender, Password: password}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Sender == "" || m.Password == "" {
		return fmt.Errorf("smtp credentials not configured")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.Sender, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, m.Sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to, err)
	}
	return nil
}
