package sqlxrepos

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/student"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var (
	constraintErrors = map[string]error{
		"profiles_email_key":                core.NewConflictError("email", "a user with this email already exists"),
		"schools_code_key":                  school.ErrCodeExists,
		"classes_school_name_year_key":      class.ErrNameExists,
		"students_school_matricule_key":     student.NewConflictError("matricule"),
		"students_school_email_key":         student.NewConflictError("email"),
		"students_school_phone_key":         student.NewConflictError("phone"),
		"payments_school_receipt_key":       payment.ErrReceiptExists,
		"payments_student_period_key":       payment.ErrPeriodPaid,
		"certificates_school_serial_key":    core.NewConflictError("serial_number", "a certificate with this serial number already exists"),
		"scheduled_reminders_automatic_key": reminder.ErrAlreadyScheduled,
	}

	// constraint name fragments, most specific first
	conflictFields = []string{"parent_phone", "parent_email", "email", "phone", "matricule", "receipt", "period"}

	errMissingReference = core.NewRuleError("a referenced record does not exist")
)

// translateErr maps unique violations to conflict errors (from the violated constraint name),
// and wraps every other error with msg.
func translateErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return errors.Wrap(err, msg)
	}

	switch pqErr.Code {
	case uniqueViolation:
		if cErr, found := constraintErrors[pqErr.Constraint]; found {
			return cErr
		}
		for _, field := range conflictFields {
			if strings.Contains(pqErr.Constraint, field) {
				return core.NewConflictError(field, "a record with this "+strings.ReplaceAll(field, "_", " ")+" already exists")
			}
		}
		return core.NewConflictError("", "this record already exists")
	case foreignKeyViolation:
		return errMissingReference
	}
	return errors.Wrap(err, msg)
}
