package main

import (
	"database/sql"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrRepo  user.Repository
	schools  *school.Service
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, redo, version...)")
	fmt.Println("  adduser -email EMAIL -name NAME [-superadmin] - create or update an active user")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  createschool -name NAME -code CODE [-owner EMAIL] - create a school, optionally owned by a user")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserSuper := addUserCmd.Bool("superadmin", false, "Grant the platform-wide super_admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	createSchoolCmd := flag.NewFlagSet("createschool", flag.ContinueOnError)
	createSchoolName := createSchoolCmd.String("name", "", "The school's name.")
	createSchoolCode := createSchoolCmd.String("code", "", "The school's unique code.")
	createSchoolOwner := createSchoolCmd.String("owner", "", "Email of the user becoming the school admin.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := vala.BeginValidation().Validate(
			vala.StringNotEmpty(*addUserEmail, "email"),
			vala.StringNotEmpty(*addUserName, "name"),
		).Check(); err != nil {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		_, err = cli.addUser(*addUserName, *addUserEmail, pwd, *addUserSuper)
		return err

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := vala.BeginValidation().Validate(
			vala.StringNotEmpty(*resetPasswordEmail, "email"),
		).Check(); err != nil {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "createschool":
		if err := createSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := vala.BeginValidation().Validate(
			vala.StringNotEmpty(*createSchoolName, "name"),
			vala.StringNotEmpty(*createSchoolCode, "code"),
		).Check(); err != nil {
			createSchoolCmd.Usage()
			return errHelp
		}
		sch, err := cli.createSchool(*createSchoolName, *createSchoolCode, *createSchoolOwner)
		if err != nil {
			return err
		}
		fmt.Printf("school %s created: %s\n", sch.Code, sch.ID)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
