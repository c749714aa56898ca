package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/services/email"
	"github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

func setup() *testutil.Services {
	conf := core.NewTestConfig()
	return testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
}

func TestService_Preferences(t *testing.T) {
	svcs := setup()
	ctx := context.Background()
	const userID = "9a3c1d0e-6f55-4c4b-8a3e-0f1e2d3c4b5a"

	p, err := svcs.Settings.Preferences(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultPreferences(userID), p)

	dark := "dark"
	off := false
	p, err = svcs.Settings.UpdatePreferences(ctx, userID, settings.UpdatePreferences{Theme: &dark, EmailNotifications: &off})
	require.NoError(t, err)
	assert.Equal(t, "dark", p.Theme)
	assert.Equal(t, "fr", p.Language)
	assert.False(t, p.EmailNotifications)

	p, err = svcs.Settings.Preferences(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "dark", p.Theme)
}

func TestService_System(t *testing.T) {
	svcs := setup()
	ctx := context.Background()

	sys, err := svcs.Settings.System(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.System{
		PlatformName:       "EduGest",
		DefaultCurrency:    "FCFA",
		DefaultMaxStudents: school.UnlimitedStudents,
		SupportEmail:       "noreply@localhost",
	}, sys)

	name := "EduGest RDC"
	maxStudents := 300
	maintenance := true
	sys, err = svcs.Settings.UpdateSystem(ctx, settings.UpdateSystem{
		PlatformName:       &name,
		DefaultMaxStudents: &maxStudents,
		MaintenanceMode:    &maintenance,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, name, sys.PlatformName)

	on, err := svcs.Settings.MaintenanceMode(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	t.Run("new schools get the defaults", func(t *testing.T) {
		sch := testutil.CreateSchool(t, svcs.Schools, "Lycée Wafanya", "LWA")
		assert.Equal(t, 300, sch.MaxStudents)
		assert.Equal(t, "FCFA", sch.Currency)

		capped := testutil.CreateSchool(t, svcs.Schools, "Petite École", "PEC", 50)
		assert.Equal(t, 50, capped.MaxStudents)
	})
}
