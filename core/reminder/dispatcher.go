package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/student"
)

const dueBatchSize = 200

// Message is a reminder ready to be delivered through Channel.
type Message struct {
	Channel string
	To      string // email address or phone number, depending on the channel
	ToName  string
	Subject string
	Body    string
	School  string
}

type (
	// Notifier delivers reminder messages.
	Notifier interface {
		Notify(ctx context.Context, msg Message) error
	}

	// LateFinder lists the active students without a tuition payment for a month.
	LateFinder interface {
		LatePayments(ctx context.Context, schoolID, className, month string) ([]student.Student, error)
	}

	SchoolStore interface {
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error)
	}

	ClassStore interface {
		GetClassByName(ctx context.Context, schoolID, name, academicYear string, exec ...core.DBExecutor) (class.Class, error)
	}

	// Observer is notified of each dispatched reminder.
	Observer interface {
		ReminderDispatched(channel, status string)
	}

	Dispatcher struct {
		svc      *Service
		late     LateFinder
		schools  SchoolStore
		classes  ClassStore
		notifier Notifier
		observer Observer
		conf     *core.Config
		logger   core.Logger
	}
)

type nopObserver struct{}

func (nopObserver) ReminderDispatched(string, string) {}

// Report counts what a dispatcher run did.
type Report struct {
	Recorded int `json:"recorded"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

func NewDispatcher(
	svc *Service,
	late LateFinder,
	schools SchoolStore,
	classes ClassStore,
	notifier Notifier,
	observer Observer,
	conf *core.Config,
	logger core.Logger,
) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{
		svc:      svc,
		late:     late,
		schools:  schools,
		classes:  classes,
		notifier: notifier,
		observer: observer,
		conf:     conf,
		logger:   logger,
	}
}

// Run records the automatic reminders due at now, then sends every due reminder.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (Report, error) {
	recorded, err := d.RunAutomatic(ctx, now)
	if err != nil {
		return Report{}, errors.Wrap(err, "recording automatic reminders")
	}
	rep, err := d.DispatchDue(ctx, now)
	rep.Recorded = recorded
	return rep, errors.Wrap(err, "dispatching due reminders")
}

// DaysOverdue is the number of days elapsed since the monthly due day of now's month.
func DaysOverdue(now time.Time, dueDay int) int {
	if dueDay < 1 {
		dueDay = 1
	}
	return now.Day() - dueDay
}

// RunAutomatic records an automatic reminder per late student and channel for every active
// configuration whose trigger_days equals today's days overdue. A configuration fires at most
// once a day per student and channel.
func (d *Dispatcher) RunAutomatic(ctx context.Context, now time.Time) (int, error) {
	overdue := DaysOverdue(now, d.conf.Payments.MonthlyDueDay)
	if overdue < 0 {
		return 0, nil
	}
	configs, err := d.svc.repo.ActiveConfigurations(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying active configurations")
	}

	month := now.Format("2006-01")
	var recorded int
	for _, cfg := range configs {
		if cfg.TriggerDays != overdue {
			continue
		}
		n, err := d.runConfiguration(ctx, cfg, now, month, overdue)
		if err != nil {
			d.logger.Error(fmt.Sprintf("running reminder configuration %s: %v", cfg.ID, err), err)
			continue
		}
		recorded += n
	}
	return recorded, nil
}

func (d *Dispatcher) runConfiguration(ctx context.Context, cfg Configuration, now time.Time, month string, overdue int) (int, error) {
	sch, err := d.schools.GetSchool(ctx, cfg.SchoolID)
	if err != nil {
		return 0, errors.Wrap(err, "getting school")
	}
	if !sch.IsActive {
		return 0, nil
	}
	late, err := d.late.LatePayments(ctx, cfg.SchoolID, "", month)
	if err != nil {
		return 0, errors.Wrap(err, "finding late payments")
	}

	var recorded int
	fees := make(map[string]string)
	for _, stud := range late {
		amount, ok := fees[stud.ClassName+"|"+stud.AcademicYear]
		if !ok {
			amount = d.monthlyFee(ctx, stud, sch.Currency)
			fees[stud.ClassName+"|"+stud.AcademicYear] = amount
		}
		body := RenderTemplate(cfg.MessageTemplate, TemplateData{
			StudentName: stud.FullName(),
			ParentName:  stud.ParentName,
			SchoolName:  sch.Name,
			Class:       stud.ClassName,
			Month:       month,
			Amount:      amount,
			DaysOverdue: overdue,
		})
		for _, ch := range cfg.Channels {
			_, err := d.svc.repo.CreateScheduled(ctx, Scheduled{
				SchoolID:        cfg.SchoolID,
				StudentID:       stud.ID,
				StudentName:     stud.FullName(),
				ConfigurationID: cfg.ID,
				Channel:         ch,
				Message:         body,
				ScheduledAt:     now.UTC(),
				Status:          StatusPending,
				Source:          SourceAutomatic,
				CreatedAt:       core.NowFunc().UTC(),
			})
			if err != nil {
				if errors.Cause(err) == ErrAlreadyScheduled {
					continue
				}
				return recorded, err
			}
			recorded++
		}
	}
	return recorded, nil
}

func (d *Dispatcher) monthlyFee(ctx context.Context, stud student.Student, currency string) string {
	if stud.ClassName == "" {
		return ""
	}
	c, err := d.classes.GetClassByName(ctx, stud.SchoolID, stud.ClassName, stud.AcademicYear)
	if err != nil {
		if !core.IsNotFound(err) {
			d.logger.Warn(fmt.Sprintf("getting class %q: %v", stud.ClassName, err))
		}
		return ""
	}
	return c.MonthlyFee.StringFixed(0) + " " + currency
}

// DispatchDue sends the pending reminders scheduled at or before now and marks each one
// sent or failed, keeping the delivery error.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time) (Report, error) {
	var rep Report
	due, err := d.svc.repo.DueScheduled(ctx, now, dueBatchSize)
	if err != nil {
		return rep, errors.Wrap(err, "querying due reminders")
	}

	schools := make(map[string]school.School)
	for _, r := range due {
		sch, ok := schools[r.SchoolID]
		if !ok {
			if sch, err = d.schools.GetSchool(ctx, r.SchoolID); err != nil {
				return rep, errors.Wrap(err, "getting school")
			}
			schools[r.SchoolID] = sch
		}

		status := StatusSent
		sendErr := d.send(ctx, r, sch)
		if sendErr != nil {
			status = StatusFailed
			_, err = d.svc.MarkFailed(ctx, r, sendErr.Error())
		} else {
			_, err = d.svc.MarkSent(ctx, r)
		}
		if err != nil {
			if core.IsState(err) {
				// changed by someone else since it was picked up
				d.logger.Warn(fmt.Sprintf("reminder %s not marked %s: %v", r.ID, status, err))
				continue
			}
			return rep, errors.Wrapf(err, "marking reminder %s %s", r.ID, status)
		}
		if sendErr != nil {
			rep.Failed++
		} else {
			rep.Sent++
		}
		d.observer.ReminderDispatched(r.Channel, status)
	}
	return rep, nil
}

func (d *Dispatcher) send(ctx context.Context, r Scheduled, sch school.School) error {
	stud, err := d.svc.students.GetStudent(ctx, r.SchoolID, r.StudentID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	to, name := Recipient(stud, r.Channel)
	if to == "" {
		return errors.Errorf("no %s contact for student %s", r.Channel, stud.Matricule)
	}
	return d.notifier.Notify(ctx, Message{
		Channel: r.Channel,
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("%s - payment reminder", sch.Name),
		Body:    r.Message,
		School:  sch.Name,
	})
}

// Recipient returns the student's contact for channel, the parent's first.
func Recipient(stud student.Student, channel string) (to, name string) {
	name = stud.ParentName
	if name == "" {
		name = stud.FullName()
	}
	switch channel {
	case ChannelEmail:
		if stud.ParentEmail != "" {
			return stud.ParentEmail, name
		}
		return stud.Email, stud.FullName()
	default:
		if stud.ParentPhone != "" {
			return stud.ParentPhone, name
		}
		return stud.Phone, stud.FullName()
	}
}
