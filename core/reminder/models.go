package reminder

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
)

// Channels
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Scheduled reminder statuses
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Scheduled reminder sources
const (
	SourceManual    = "manual"
	SourceAutomatic = "automatic"
)

var (
	Channels = []string{ChannelEmail, ChannelSMS, ChannelWhatsApp}
	Statuses = []string{StatusPending, StatusSent, StatusFailed, StatusCancelled}
)

// CanTransition reports whether a scheduled reminder may go from `from` to `to`;
// only pending reminders move, and sent, failed and cancelled are terminal.
func CanTransition(from, to string) bool {
	return from == StatusPending && (to == StatusSent || to == StatusFailed || to == StatusCancelled)
}

// Configuration is a per-school rule creating automatic reminders for late monthly payments.
type Configuration struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	Name            string    `json:"name"`
	TriggerDays     int       `json:"trigger_days"` // days after the monthly due day
	Channels        []string  `json:"channels"`
	MessageTemplate string    `json:"message_template"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewConfiguration struct {
	Name            string   `json:"name" validate:"required"`
	TriggerDays     int      `json:"trigger_days" validate:"min=0"`
	Channels        []string `json:"channels" validate:"required,min=1,dive,oneof=email sms whatsapp"`
	MessageTemplate string   `json:"message_template" validate:"required"`
	IsActive        *bool    `json:"is_active"`
}

func (nc *NewConfiguration) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Channels = cleanChannels(nc.Channels)
	nc.MessageTemplate = core.CleanString(nc.MessageTemplate)
	return validate.Struct(nc)
}

type UpdateConfiguration struct {
	Name            *string   `json:"name" validate:"omitempty,min=1"`
	TriggerDays     *int      `json:"trigger_days" validate:"omitempty,min=0"`
	Channels        *[]string `json:"channels" validate:"omitempty,min=1,dive,oneof=email sms whatsapp"`
	MessageTemplate *string   `json:"message_template" validate:"omitempty,min=1"`
	IsActive        *bool     `json:"is_active"`
}

func (uc *UpdateConfiguration) Validate(validate *validator.Validate) error {
	if uc.Name != nil {
		*uc.Name = core.CleanString(*uc.Name)
	}
	if uc.MessageTemplate != nil {
		*uc.MessageTemplate = core.CleanString(*uc.MessageTemplate)
	}
	if uc.Channels != nil {
		channels := cleanChannels(*uc.Channels)
		uc.Channels = &channels
	}
	return validate.Struct(uc)
}

func (uc UpdateConfiguration) apply(c *Configuration) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.TriggerDays != nil {
		c.TriggerDays = *uc.TriggerDays
	}
	if uc.Channels != nil {
		c.Channels = *uc.Channels
	}
	if uc.MessageTemplate != nil {
		c.MessageTemplate = *uc.MessageTemplate
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
}

// Scheduled is a one-off reminder for a student, sent through a single channel.
type Scheduled struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	StudentID       string    `json:"student_id"`
	StudentName     string    `json:"student_name"`
	ConfigurationID string    `json:"configuration_id"`
	Channel         string    `json:"channel"`
	Message         string    `json:"message"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	Status          string    `json:"status"`
	SentAt          time.Time `json:"sent_at"`
	ErrorMessage    string    `json:"error_message"`
	Source          string    `json:"source"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type NewScheduled struct {
	StudentID   string    `json:"student_id" validate:"required,uuid"`
	Channel     string    `json:"channel" validate:"required,oneof=email sms whatsapp"`
	Message     string    `json:"message" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

func (ns *NewScheduled) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID, true /* lower */)
	ns.Channel = core.CleanString(ns.Channel, true /* lower */)
	ns.Message = core.CleanString(ns.Message)
	return validate.Struct(ns)
}

type ConfigurationFilter struct {
	IsActive *bool `query:"is_active"`
}

type ScheduledFilter struct {
	StudentID string   `query:"student_id"`
	Statuses  []string `query:"status"`
	Channel   string   `query:"channel"`
	Source    string   `query:"source"`
}

func (qf *ScheduledFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.Channel = core.CleanString(qf.Channel, true /* lower */)
	qf.Source = core.CleanString(qf.Source, true /* lower */)
}

// TemplateData holds the values substituted in reminder templates.
type TemplateData struct {
	StudentName string
	ParentName  string
	SchoolName  string
	Class       string
	Month       string
	Amount      string
	DaysOverdue int
}

// RenderTemplate substitutes the {student_name}, {parent_name}, {school_name}, {class}, {month},
// {amount} and {days_overdue} placeholders of tmpl; unknown placeholders are left as is.
func RenderTemplate(tmpl string, data TemplateData) string {
	return strings.NewReplacer(
		"{student_name}", data.StudentName,
		"{parent_name}", data.ParentName,
		"{school_name}", data.SchoolName,
		"{class}", data.Class,
		"{month}", data.Month,
		"{amount}", data.Amount,
		"{days_overdue}", strconv.Itoa(data.DaysOverdue),
	).Replace(tmpl)
}

func cleanChannels(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	cleaned := make([]string, 0, len(channels))
	for _, ch := range channels {
		ch = core.CleanString(ch, true /* lower */)
		if _, ok := seen[ch]; ok || ch == "" {
			continue
		}
		seen[ch] = struct{}{}
		cleaned = append(cleaned, ch)
	}
	return cleaned
}
