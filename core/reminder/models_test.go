package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edugest/core/student"
)

func TestRenderTemplate(t *testing.T) {
	tmpl := "Bonjour {parent_name}, la mensualité de {month} pour {student_name} ({class}) " +
		"à {school_name} est en retard de {days_overdue} jours: {amount}. {unknown}"
	got := RenderTemplate(tmpl, TemplateData{
		StudentName: "Awa Diop",
		ParentName:  "Moussa Diop",
		SchoolName:  "Lycée Excellence",
		Class:       "6ème A",
		Month:       "2025-03",
		Amount:      "15000 FCFA",
		DaysOverdue: 5,
	})
	assert.Equal(t, "Bonjour Moussa Diop, la mensualité de 2025-03 pour Awa Diop (6ème A) "+
		"à Lycée Excellence est en retard de 5 jours: 15000 FCFA. {unknown}", got)
}

func TestCanTransition(t *testing.T) {
	for _, to := range []string{StatusSent, StatusFailed, StatusCancelled} {
		assert.True(t, CanTransition(StatusPending, to), "pending -> %s", to)
	}
	for _, from := range []string{StatusSent, StatusFailed, StatusCancelled} {
		for _, to := range Statuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(StatusPending, StatusPending))
}

func TestDaysOverdue(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, time.March, d, 8, 0, 0, 0, time.UTC) }
	assert.Equal(t, 0, DaysOverdue(day(5), 5))
	assert.Equal(t, 10, DaysOverdue(day(15), 5))
	assert.Equal(t, -2, DaysOverdue(day(3), 5))
	assert.Equal(t, 2, DaysOverdue(day(3), 0))
}

func TestRecipient(t *testing.T) {
	stud := student.Student{
		FirstName:   "Awa",
		LastName:    "Diop",
		Email:       "awa@example.com",
		Phone:       "770000001",
		ParentName:  "Moussa Diop",
		ParentPhone: "770000002",
	}

	to, name := Recipient(stud, ChannelSMS)
	assert.Equal(t, "770000002", to)
	assert.Equal(t, "Moussa Diop", name)

	to, name = Recipient(stud, ChannelEmail)
	assert.Equal(t, "awa@example.com", to)
	assert.Equal(t, "Awa Diop", name)

	stud.ParentPhone = ""
	to, _ = Recipient(stud, ChannelWhatsApp)
	assert.Equal(t, "770000001", to)
}
