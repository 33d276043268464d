package email

import (
	"strings"
	"time"

	mail "gopkg.in/mail.v2"
)

type Sender interface {
	Send(to string, msg Message) error
}

// SMTPSender relays through an SMTP server. With no username it sends unauthenticated
// (Mailpit-compatible) and only upgrades to TLS when the server offers it.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "no-reply@meetslot.local"
	}
	d := mail.NewDialer(strings.TrimSpace(cfg.Host), cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	d.Timeout = 10 * time.Second
	return &SMTPSender{dialer: d, from: from}
}

func (s *SMTPSender) Send(to string, msg Message) error {
	return s.dialer.DialAndSend(buildMessage(s.from, to, msg, time.Now()))
}

func buildMessage(from, to string, msg Message, now time.Time) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", now)
	m.SetBody("text/plain", msg.Body)
	return m
}
