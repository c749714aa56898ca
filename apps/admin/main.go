package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/user"
	emailsvc "github.com/trezcool/edugest/services/email"
	logsvc "github.com/trezcool/edugest/services/logger"
	"github.com/trezcool/edugest/storage/database"
	sqlxrepos "github.com/trezcool/edugest/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	usrRepo := sqlxrepos.NewUserRepository(db)
	tx := database.NewTxRunner(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewService(conf, logger), conf)
	settingsSvc := settings.NewService(sqlxrepos.NewSettingsRepository(db), conf)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrRepo:  usrRepo,
		schools:  school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc, settingsSvc, tx, conf),
		validate: validator.New(),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
