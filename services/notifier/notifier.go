// Package notifiersvc delivers reminder messages through email and the phone channels.
package notifiersvc

import (
	"context"
	"fmt"
	"net/mail"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
)

const reminderTemplate = "payment_reminder"

// EmailNotifier sends reminders through the email service, with the payment_reminder template.
// Delivery is synchronous so that failures reach the dispatcher.
type EmailNotifier struct {
	mailSvc core.EmailService
}

var _ reminder.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService) *EmailNotifier {
	return &EmailNotifier{mailSvc: mailSvc}
}

func (n *EmailNotifier) Notify(_ context.Context, msg reminder.Message) error {
	addr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return errors.Wrapf(err, "invalid email address %q", msg.To)
	}
	addr.Name = msg.ToName
	err = n.mailSvc.SendMessage(&core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      msg.Subject,
		TemplateName: reminderTemplate,
		TemplateData: map[string]string{"Body": msg.Body, "SchoolName": msg.School},
	})
	return errors.Wrap(err, "sending reminder email")
}

// LogNotifier stands in for a phone gateway: messages are only logged and kept in Sent.
type LogNotifier struct {
	logger core.Logger

	mu   sync.Mutex
	Sent []reminder.Message
}

var _ reminder.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger core.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg reminder.Message) error {
	n.logger.Info(fmt.Sprintf("%s reminder to %s (%s): %s", msg.Channel, msg.To, msg.ToName, msg.Body))
	n.mu.Lock()
	n.Sent = append(n.Sent, msg)
	n.mu.Unlock()
	return nil
}

// Mux routes each message to the notifier of its channel.
type Mux struct {
	notifiers map[string]reminder.Notifier
}

var _ reminder.Notifier = (*Mux)(nil)

func NewMux() *Mux {
	return &Mux{notifiers: make(map[string]reminder.Notifier)}
}

// Handle registers n for channel, replacing any previous notifier.
func (m *Mux) Handle(channel string, n reminder.Notifier) *Mux {
	m.notifiers[channel] = n
	return m
}

func (m *Mux) Notify(ctx context.Context, msg reminder.Message) error {
	n, ok := m.notifiers[msg.Channel]
	if !ok {
		return errors.Errorf("no notifier for channel %q", msg.Channel)
	}
	return n.Notify(ctx, msg)
}

// NewDefault routes emails to mailSvc and phone channels to the logger.
func NewDefault(mailSvc core.EmailService, logger core.Logger) *Mux {
	phone := NewLogNotifier(logger)
	return NewMux().
		Handle(reminder.ChannelEmail, NewEmailNotifier(mailSvc)).
		Handle(reminder.ChannelSMS, phone).
		Handle(reminder.ChannelWhatsApp, phone)
}
