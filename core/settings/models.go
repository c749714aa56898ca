package settings

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
)

// System setting keys
const (
	KeyPlatformName       = "platform_name"
	KeyDefaultCurrency    = "default_currency"
	KeyDefaultMaxStudents = "default_max_students"
	KeyMaintenanceMode    = "maintenance_mode"
	KeySupportEmail       = "support_email"
)

// Preferences are per-user UI settings.
type Preferences struct {
	UserID             string    `json:"user_id"`
	Language           string    `json:"language"`
	Theme              string    `json:"theme"`
	EmailNotifications bool      `json:"email_notifications"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultPreferences are returned for users who never saved theirs.
func DefaultPreferences(userID string) Preferences {
	return Preferences{UserID: userID, Language: "fr", Theme: "light", EmailNotifications: true}
}

type UpdatePreferences struct {
	Language           *string `json:"language" validate:"omitempty,oneof=fr en"`
	Theme              *string `json:"theme" validate:"omitempty,oneof=light dark system"`
	EmailNotifications *bool   `json:"email_notifications"`
}

func (up *UpdatePreferences) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.Language, up.Theme} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	return validate.Struct(up)
}

func (up UpdatePreferences) apply(p *Preferences) {
	if up.Language != nil {
		p.Language = *up.Language
	}
	if up.Theme != nil {
		p.Theme = *up.Theme
	}
	if up.EmailNotifications != nil {
		p.EmailNotifications = *up.EmailNotifications
	}
}

// System holds the platform-wide settings managed by super admins.
type System struct {
	PlatformName       string `json:"platform_name"`
	DefaultCurrency    string `json:"default_currency"`
	DefaultMaxStudents int    `json:"default_max_students"`
	MaintenanceMode    bool   `json:"maintenance_mode"`
	SupportEmail       string `json:"support_email"`
}

func (s System) values() map[string]string {
	return map[string]string{
		KeyPlatformName:       s.PlatformName,
		KeyDefaultCurrency:    s.DefaultCurrency,
		KeyDefaultMaxStudents: strconv.Itoa(s.DefaultMaxStudents),
		KeyMaintenanceMode:    strconv.FormatBool(s.MaintenanceMode),
		KeySupportEmail:       s.SupportEmail,
	}
}

// merge overrides the settings with the stored values; malformed values are ignored.
func (s *System) merge(values map[string]string) {
	if v, ok := values[KeyPlatformName]; ok {
		s.PlatformName = v
	}
	if v, ok := values[KeyDefaultCurrency]; ok {
		s.DefaultCurrency = v
	}
	if v, ok := values[KeyDefaultMaxStudents]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.DefaultMaxStudents = n
		}
	}
	if v, ok := values[KeyMaintenanceMode]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.MaintenanceMode = b
		}
	}
	if v, ok := values[KeySupportEmail]; ok {
		s.SupportEmail = v
	}
}

type UpdateSystem struct {
	PlatformName       *string `json:"platform_name" validate:"omitempty,min=1"`
	DefaultCurrency    *string `json:"default_currency" validate:"omitempty,min=1,max=10"`
	DefaultMaxStudents *int    `json:"default_max_students" validate:"omitempty,min=-1"`
	MaintenanceMode    *bool   `json:"maintenance_mode"`
	SupportEmail       *string `json:"support_email" validate:"omitempty,email"`
}

func (us *UpdateSystem) Validate(validate *validator.Validate) error {
	for _, s := range []*string{us.PlatformName, us.DefaultCurrency, us.SupportEmail} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(us)
}

func (us UpdateSystem) apply(s *System) {
	if us.PlatformName != nil {
		s.PlatformName = *us.PlatformName
	}
	if us.DefaultCurrency != nil {
		s.DefaultCurrency = *us.DefaultCurrency
	}
	if us.DefaultMaxStudents != nil {
		s.DefaultMaxStudents = *us.DefaultMaxStudents
	}
	if us.MaintenanceMode != nil {
		s.MaintenanceMode = *us.MaintenanceMode
	}
	if us.SupportEmail != nil {
		s.SupportEmail = *us.SupportEmail
	}
}
