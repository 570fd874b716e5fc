// Package mailer renders and delivers the portal's transactional email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP sender. With an empty host, messages are logged and dropped.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Send delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Host == "" {
		s.logger.Warn("SMTP_HOST not set, dropping email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.FromAddress, []string{msg.To}, s.compose(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) []byte {
	var b bytes.Buffer
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%q <%s>", s.cfg.FromName, s.cfg.FromAddress)
	}
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(msg.Subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

var verificationTmpl = template.Must(template.New("verify").Parse(
	`<p>Hi {{.FirstName}},</p>
<p>Welcome to the membership portal! Confirm your email address to start earning points at events:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not create an account, you can ignore this email.</p>`))

// Verification renders the email verification message.
func Verification(baseURL, to, firstName, accessCode string) (Message, error) {
	var b bytes.Buffer
	link := strings.TrimRight(baseURL, "/") + "/verify/" + accessCode
	if err := verificationTmpl.Execute(&b, struct{ FirstName, Link string }{firstName, link}); err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}
	return Message{To: to, Subject: "Verify your email address", HTML: b.String()}, nil
}
