package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/user"
	emailsvc "github.com/trezcool/edugest/services/email"
	logsvc "github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/tests"
)

const testPassword = "Kin.Shasa2020"

func setup(t *testing.T) (*commandLine, *testutil.Services) {
	t.Helper()
	conf := core.NewTestConfig()
	svcs := testutil.NewServices(conf, emailsvc.NewConsoleServiceMock(conf, logsvc.NewDiscardLogger()), nil)
	return &commandLine{
		usrRepo:  svcs.UserRepo,
		schools:  svcs.Schools,
		validate: validator.New(),
	}, svcs
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string   // prompted password
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := tt.pwd
			readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }

			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_bus_routes", "sql"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, svcs := setup(t)
	existing := testutil.CreateUser(t, svcs.UserRepo, "Ancien Nom", "existing@test.cd", "", nil, false)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "missing name", args: []string{"adduser", "-email", "a@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "a@test.cd", "-name", "A"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-email", "a@test.cd", "-name", "A"}, pwd: "password", wantErrStr: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "create super admin", args: []string{"adduser", "-email", "Root@Test.cd", "-name", "Root", "-superadmin"}, pwd: testPassword},
		{name: "update existing", args: []string{"adduser", "-email", existing.Email, "-name", "Nouveau Nom"}, pwd: testPassword},
	})

	ctx := context.Background()
	root, err := svcs.UserRepo.GetUser(ctx, user.GetFilter{Email: "root@test.cd"})
	require.NoError(t, err)
	assert.True(t, root.IsSuperAdmin())
	assert.True(t, root.IsActive)
	assert.NoError(t, root.CheckPassword(testPassword))

	updated, err := svcs.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau Nom", updated.FullName)
	assert.True(t, updated.IsActive)
	assert.False(t, updated.IsSuperAdmin())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, svcs := setup(t)
	usr := testutil.CreateUser(t, svcs.UserRepo, "Awa", "awa@test.cd", testPassword, nil, true)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "New.Pass2021", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "New.Pass2021"},
	})

	refreshed, err := svcs.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("New.Pass2021"))
}

func Test_commandLine_createSchool(t *testing.T) {
	cli, svcs := setup(t)
	owner := testutil.CreateUser(t, svcs.UserRepo, "Directeur", "directeur@test.cd", testPassword, nil, true)

	runCLITests(t, cli, []cliTest{
		{name: "missing code", args: []string{"createschool", "-name", "Lycée Wima"}, wantErr: errHelp},
		{name: "unknown owner", args: []string{"createschool", "-name", "Lycée Wima", "-code", "LWI", "-owner", "nobody@test.cd"}, wantErr: user.ErrNotFound},
		{name: "create", args: []string{"createschool", "-name", "Lycée Wima", "-code", "lwi", "-owner", owner.Email}},
	})

	owner, err := svcs.UserRepo.GetUser(context.Background(), user.GetFilter{ID: owner.ID})
	require.NoError(t, err)
	require.NotEmpty(t, owner.SchoolID)
	sch, err := svcs.Schools.Get(context.Background(), owner.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, "LWI", sch.Code)
	assert.True(t, owner.HasRole(user.RoleSchoolAdmin))
}
