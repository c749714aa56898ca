package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/services/notifier"
	"github.com/trezcool/edugest/tests"
)

const year = "2024-2025"

type fakeNotifier struct {
	mu   sync.Mutex
	sent []reminder.Message
}

func (n *fakeNotifier) Notify(_ context.Context, msg reminder.Message) error {
	if msg.Channel == reminder.ChannelWhatsApp {
		return errors.New("whatsapp gateway unavailable")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

type observed struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *observed) ReminderDispatched(channel, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[channel+"/"+status]++
}

func TestDispatcher_Run(t *testing.T) {
	now := time.Date(2024, time.October, 8, 8, 0, 0, 0, time.UTC) // 3 days after the due day
	testutil.FreezeTime(t, now)
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logger), nil)
	ctx := context.Background()

	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	testutil.CreateClass(t, svcs.Classes, sch.ID, "6A", year, 40, 20000, 15000, 150000)
	late := testutil.CreateStudent(t, svcs.Students, sch.ID, "Aïcha", "Mbemba", "6A", year)
	noEmail, err := svcs.Students.Create(ctx, sch.ID, student.NewStudent{
		FirstName:    "Paul",
		LastName:     "Ilunga",
		ParentPhone:  "+243820000555",
		ClassName:    "6A",
		AcademicYear: year,
		Status:       student.StatusActive,
	})
	require.NoError(t, err)
	paid := testutil.CreateStudent(t, svcs.Students, sch.ID, "Marie", "Tshala", "6A", year)
	testutil.CreatePayment(t, svcs.Payments, sch.ID, paid.ID, payment.TypeMonthlyTuition, "2024-10", 15000)

	inactive := false
	mkConfig := func(schoolID, name string, days int, channels []string, active *bool) {
		_, err := svcs.Reminders.CreateConfiguration(ctx, schoolID, reminder.NewConfiguration{
			Name:            name,
			TriggerDays:     days,
			Channels:        channels,
			MessageTemplate: "Bonjour {parent_name}, {student_name} ({class}) doit {amount} pour {month}, retard de {days_overdue} jours.",
			IsActive:        active,
		})
		require.NoError(t, err)
	}
	mkConfig(sch.ID, "J+3", 3, []string{reminder.ChannelEmail, reminder.ChannelSMS}, nil)
	mkConfig(sch.ID, "J+5", 5, []string{reminder.ChannelEmail}, nil)
	mkConfig(sch.ID, "J+3 disabled", 3, []string{reminder.ChannelSMS}, &inactive)

	closed := testutil.CreateSchool(t, svcs.Schools, "Institut Mwinda", "IMW")
	testutil.CreateStudent(t, svcs.Students, closed.ID, "Jean", "Kasongo", "6A", year)
	mkConfig(closed.ID, "J+3", 3, []string{reminder.ChannelSMS}, nil)
	_, err = svcs.Schools.SetActive(ctx, closed, false)
	require.NoError(t, err)

	_, err = svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
		StudentID:   late.ID,
		Channel:     reminder.ChannelWhatsApp,
		Message:     "Réunion des parents vendredi.",
		ScheduledAt: now.Add(-24 * time.Hour),
	}, "")
	require.NoError(t, err)
	future, err := svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
		StudentID:   late.ID,
		Channel:     reminder.ChannelEmail,
		Message:     "Fin du trimestre.",
		ScheduledAt: now.Add(time.Hour),
	}, "")
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	obs := &observed{counts: make(map[string]int)}
	d := reminder.NewDispatcher(svcs.Reminders, svcs.Payments, svcs.SchoolRepo, svcs.ClassRepo, notifier, obs, conf, logger)

	rep, err := d.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Recorded, "2 late students x 2 channels")
	assert.Equal(t, 3, rep.Sent)
	assert.Equal(t, 2, rep.Failed, "no email for one student, whatsapp down")
	assert.Equal(t, map[string]int{"email/sent": 1, "email/failed": 1, "sms/sent": 2, "whatsapp/failed": 1}, obs.counts)

	require.Len(t, notifier.sent, 3)
	var toParent reminder.Message
	for _, msg := range notifier.sent {
		if msg.Channel == reminder.ChannelEmail {
			toParent = msg
		}
	}
	assert.Equal(t, late.ParentEmail, toParent.To)
	assert.Equal(t, "Bonjour Parent Mbemba, Aïcha Mbemba (6A) doit 15000 FCFA pour 2024-10, retard de 3 jours.", toParent.Body)
	assert.Equal(t, "Lycée Wafanya", toParent.School)

	failed, err := svcs.Reminders.QueryScheduled(ctx, sch.ID, &reminder.ScheduledFilter{Statuses: []string{reminder.StatusFailed}}, nil)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	for _, r := range failed {
		assert.NotEmpty(t, r.ErrorMessage)
	}
	for _, r := range failed {
		if r.StudentID == noEmail.ID {
			assert.Equal(t, reminder.ChannelEmail, r.Channel)
		}
	}

	closedReminders, err := svcs.Reminders.QueryScheduled(ctx, closed.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, closedReminders, "inactive schools are skipped")

	t.Run("second run of the day", func(t *testing.T) {
		rep, err := d.Run(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, rep.Recorded, "configurations fire once a day")
		assert.Equal(t, 1, rep.Sent, "the future manual reminder is now due")

		got, err := svcs.Reminders.GetScheduled(ctx, sch.ID, future.ID)
		require.NoError(t, err)
		assert.Equal(t, reminder.StatusSent, got.Status)
	})

	t.Run("not a trigger day", func(t *testing.T) {
		recorded, err := d.RunAutomatic(ctx, now.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Zero(t, recorded)

		recorded, err = d.RunAutomatic(ctx, time.Date(2024, time.October, 2, 8, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Zero(t, recorded, "before the due day")
	})
}

func TestDispatcher_DispatchDue_defaultNotifier(t *testing.T) {
	now := time.Date(2024, time.October, 8, 8, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ClearSentMessages()
	svcs := testutil.NewServices(conf, mailSvc, nil)
	ctx := context.Background()

	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	stud := testutil.CreateStudent(t, svcs.Students, sch.ID, "Aïcha", "Mbemba", "6A", year)
	noContact, err := svcs.Students.Create(ctx, sch.ID, student.NewStudent{
		FirstName:    "Paul",
		LastName:     "Ilunga",
		ParentPhone:  "+243820000777",
		ClassName:    "6A",
		AcademicYear: year,
		Status:       student.StatusActive,
	})
	require.NoError(t, err)

	schedule := func(studentID, channel string) reminder.Scheduled {
		r, err := svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
			StudentID:   studentID,
			Channel:     channel,
			Message:     "Merci de régler la scolarité d'octobre.",
			ScheduledAt: now.Add(-time.Minute),
		}, "")
		require.NoError(t, err)
		return r
	}
	byEmail := schedule(stud.ID, reminder.ChannelEmail)
	bySMS := schedule(stud.ID, reminder.ChannelSMS)
	unreachable := schedule(noContact.ID, reminder.ChannelEmail)

	d := reminder.NewDispatcher(svcs.Reminders, svcs.Payments, svcs.SchoolRepo, svcs.ClassRepo,
		notifiersvc.NewDefault(mailSvc, logger), nil, conf, logger)
	rep, err := d.DispatchDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, reminder.Report{Sent: 2, Failed: 1}, rep)

	sent := emailsvc.LastSentMessages(10)
	require.Len(t, sent, 1, "the email actually went out")
	assert.Equal(t, stud.ParentEmail, sent[0].To[0].Address)
	assert.Equal(t, "Lycée Wafanya - payment reminder", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Merci de régler la scolarité d'octobre.")
	assert.Contains(t, sent[0].HTMLContent, "Lycée Wafanya")

	for _, tc := range []struct {
		r    reminder.Scheduled
		want string
	}{{byEmail, reminder.StatusSent}, {bySMS, reminder.StatusSent}, {unreachable, reminder.StatusFailed}} {
		got, err := svcs.Reminders.GetScheduled(ctx, sch.ID, tc.r.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Status, tc.r.Channel)
	}
}

// cancellingNotifier cancels every pending reminder of the school while a message is being sent.
type cancellingNotifier struct {
	svc      *reminder.Service
	schoolID string
}

func (n *cancellingNotifier) Notify(ctx context.Context, _ reminder.Message) error {
	pending, err := n.svc.QueryScheduled(ctx, n.schoolID, &reminder.ScheduledFilter{Statuses: []string{reminder.StatusPending}}, nil)
	if err != nil {
		return err
	}
	for _, r := range pending {
		if _, err := n.svc.Cancel(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func TestDispatcher_DispatchDue_cancelledMeanwhile(t *testing.T) {
	now := time.Date(2024, time.October, 8, 8, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logger), nil)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	stud := testutil.CreateStudent(t, svcs.Students, sch.ID, "Aïcha", "Mbemba", "6A", year)

	r, err := svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
		StudentID:   stud.ID,
		Channel:     reminder.ChannelSMS,
		Message:     "Rappel",
		ScheduledAt: now.Add(-time.Minute),
	}, "")
	require.NoError(t, err)

	obs := &observed{counts: make(map[string]int)}
	d := reminder.NewDispatcher(svcs.Reminders, svcs.Payments, svcs.SchoolRepo, svcs.ClassRepo,
		&cancellingNotifier{svc: svcs.Reminders, schoolID: sch.ID}, obs, conf, logger)
	rep, err := d.DispatchDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, reminder.Report{}, rep)
	assert.Empty(t, obs.counts)

	got, err := svcs.Reminders.GetScheduled(ctx, sch.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusCancelled, got.Status, "the cancellation wins")
	assert.True(t, got.SentAt.IsZero())
}

func TestService_Transitions(t *testing.T) {
	testutil.FreezeTime(t, time.Date(2024, time.October, 8, 8, 0, 0, 0, time.UTC))
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
	stud := testutil.CreateStudent(t, svcs.Students, sch.ID, "Aïcha", "Mbemba", "6A", year)

	schedule := func() reminder.Scheduled {
		r, err := svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
			StudentID:   stud.ID,
			Channel:     reminder.ChannelSMS,
			Message:     "Rappel",
			ScheduledAt: core.NowFunc(),
		}, "")
		require.NoError(t, err)
		assert.Equal(t, reminder.StatusPending, r.Status)
		assert.Equal(t, reminder.SourceManual, r.Source)
		assert.Equal(t, "Aïcha Mbemba", r.StudentName)
		return r
	}

	sent, err := svcs.Reminders.MarkSent(ctx, schedule())
	require.NoError(t, err)
	assert.False(t, sent.SentAt.IsZero())
	_, err = svcs.Reminders.Cancel(ctx, sent)
	assert.True(t, core.IsState(err))
	assert.True(t, core.IsRule(svcs.Reminders.DeleteScheduled(ctx, sent)))

	// a stale copy still reads pending
	picked := schedule()
	_, err = svcs.Reminders.MarkSent(ctx, picked)
	require.NoError(t, err)
	_, err = svcs.Reminders.Cancel(ctx, picked)
	assert.True(t, core.IsState(err))
	got, err := svcs.Reminders.GetScheduled(ctx, sch.ID, picked.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusSent, got.Status)

	cancelled, err := svcs.Reminders.Cancel(ctx, schedule())
	require.NoError(t, err)
	_, err = svcs.Reminders.MarkFailed(ctx, cancelled, "too late")
	assert.True(t, core.IsState(err))
	require.NoError(t, svcs.Reminders.DeleteScheduled(ctx, cancelled))

	_, err = svcs.Reminders.Schedule(ctx, sch.ID, reminder.NewScheduled{
		StudentID:   "4d8f3f65-8e0c-4bd1-93e6-5f6b1f9a5e10",
		Channel:     reminder.ChannelSMS,
		Message:     "Rappel",
		ScheduledAt: core.NowFunc(),
	}, "")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Configurations(t *testing.T) {
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")

	c, err := svcs.Reminders.CreateConfiguration(ctx, sch.ID, reminder.NewConfiguration{
		Name:            "J+3",
		TriggerDays:     3,
		Channels:        []string{reminder.ChannelSMS},
		MessageTemplate: "Rappel {student_name}",
	})
	require.NoError(t, err)
	assert.True(t, c.IsActive)

	c, err = svcs.Reminders.ToggleConfiguration(ctx, c)
	require.NoError(t, err)
	assert.False(t, c.IsActive)

	active := true
	configs, err := svcs.Reminders.QueryConfigurations(ctx, sch.ID, &reminder.ConfigurationFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Empty(t, configs)

	days := 7
	c, err = svcs.Reminders.UpdateConfiguration(ctx, c, reminder.UpdateConfiguration{TriggerDays: &days})
	require.NoError(t, err)
	assert.Equal(t, 7, c.TriggerDays)

	require.NoError(t, svcs.Reminders.DeleteConfiguration(ctx, c))
	_, err = svcs.Reminders.GetConfiguration(ctx, sch.ID, c.ID)
	assert.True(t, core.IsNotFound(err))
}
