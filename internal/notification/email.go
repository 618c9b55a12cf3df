package notification

import (
	"context"

	"gopkg.in/gomail.v2"

	"shopfloor-ops-backend/config"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel mails notices to a fixed list of recipients.
type EmailChannel struct {
	dialer mailDialer
	from   string
	to     []string
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (e *EmailChannel) Name() string { return "email" }

// Deliver sends one SMTP message. The context is not honoured by gomail.
func (e *EmailChannel) Deliver(_ context.Context, n Notice) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)
	m.SetHeader("Subject", n.Subject())
	m.SetBody("text/plain", n.Body())
	return e.dialer.DialAndSend(m)
}
