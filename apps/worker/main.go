package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/edugest/apps/di"
	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
	metricsvc "github.com/trezcool/edugest/services/metrics"
)

func main() {
	c := di.New("WORKER")

	if err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		db *sqlx.DB,
		d *reminder.Dispatcher,
		metrics *metricsvc.Metrics,
	) {
		logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
		core.ParseEmailTemplates(logger, conf)
		defer func() { _ = db.Close() }()
		defer logger.Info("Worker stopped")

		// /debug/vars and /metrics
		expvar.NewString("build").Set(conf.Build)
		http.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		cronLogger := cron.PrintfLogger(log.New(os.Stdout, "CRON : ", log.LstdFlags))
		job := &reminderJob{dispatcher: d, logger: logger, timeout: jobTimeout}
		scheduler, err := newScheduler(conf.Reminders.Schedule, job, cronLogger)
		if err != nil {
			logger.Fatal(err.Error(), err)
		}
		scheduler.Start()
		logger.Info(fmt.Sprintf("reminders scheduled: %q", conf.Reminders.Schedule))

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// wait for the running job, if any
		ctx, cancel := context.WithTimeout(scheduler.Stop(), conf.Server.ShutdownTimeout)
		defer cancel()
		<-ctx.Done()
	}); err != nil {
		panic(err)
	}
}
