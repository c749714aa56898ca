package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/services/logger"
)

func TestConsoleServiceMock_SendMessage(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, logsvc.NewDiscardLogger())
	ClearSentMessages()

	to := mail.Address{Name: "Parent Mbemba", Address: "parent@test.cd"}
	err := svc.SendMessage(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": to.Name, "URL": "http://localhost:3000/reset"},
	})
	require.NoError(t, err)
	sent := LastSentMessages(1)
	require.Len(t, sent, 1)
	assert.Equal(t, to, sent[0].To[0])
	assert.Contains(t, sent[0].TextContent, "http://localhost:3000/reset")
	assert.Contains(t, sent[0].HTMLContent, to.Name)

	assert.EqualError(t, svc.SendMessage(&core.EmailMessage{BodyStr: "hi"}), "email has no recipients")
	assert.EqualError(t, svc.SendMessage(&core.EmailMessage{To: []mail.Address{to}, TemplateName: "unknown"}), "email has no content")
	assert.Len(t, LastSentMessages(10), 1, "failed messages are not recorded")
}
