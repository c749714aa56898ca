package notifiersvc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
)

func TestMux(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ClearSentMessages()

	phone := NewLogNotifier(logger)
	mux := NewMux().
		Handle(reminder.ChannelEmail, NewEmailNotifier(mailSvc)).
		Handle(reminder.ChannelSMS, phone)
	ctx := context.Background()

	err := mux.Notify(ctx, reminder.Message{
		Channel: reminder.ChannelEmail,
		To:      "parent@test.cd",
		ToName:  "Parent",
		Subject: "Lycée Wafanya - payment reminder",
		Body:    "Please pay the tuition of March.",
		School:  "Lycée Wafanya",
	})
	require.NoError(t, err)
	sent := emailsvc.LastSentMessages(1)
	require.Len(t, sent, 1)
	assert.Equal(t, "parent@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "Parent", sent[0].To[0].Name)
	assert.True(t, strings.Contains(sent[0].TextContent, "Please pay the tuition of March."))
	assert.True(t, strings.Contains(sent[0].HTMLContent, "Lycée Wafanya"))

	require.NoError(t, mux.Notify(ctx, reminder.Message{Channel: reminder.ChannelSMS, To: "+243990000001", Body: "hi"}))
	assert.Len(t, phone.Sent, 1)
	assert.Equal(t, "+243990000001", phone.Sent[0].To)

	assert.Error(t, mux.Notify(ctx, reminder.Message{Channel: reminder.ChannelWhatsApp, To: "+243990000001"}))
	assert.Error(t, mux.Notify(ctx, reminder.Message{Channel: reminder.ChannelEmail, To: "not an email"}))
}

type failingMailService struct{}

func (failingMailService) SendMessages(...*core.EmailMessage) {}

func (failingMailService) SendMessage(*core.EmailMessage) error {
	return errors.New("sendgrid status: 401")
}

func TestEmailNotifier_reportsFailures(t *testing.T) {
	n := NewEmailNotifier(failingMailService{})
	err := n.Notify(context.Background(), reminder.Message{
		Channel: reminder.ChannelEmail,
		To:      "parent@test.cd",
		Body:    "Please pay the tuition of March.",
	})
	assert.EqualError(t, err, "sending reminder email: sendgrid status: 401")
}
