package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/user"
)

var (
	errConfigurationNotFoundInCtx = errors.New("reminder configuration not found in echo.Context")
	errReminderNotFoundInCtx      = errors.New("scheduled reminder not found in echo.Context")
)

type reminderApi struct {
	svc      *reminder.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerReminderAPI(g *echo.Group, deps ServerDeps) {
	api := reminderApi{svc: deps.ReminderSvc, users: deps.UserSvc, validate: deps.Validate}
	g.Use(roleMiddleware(api.users, financeRoles...))

	cg := g.Group("/configurations")
	cg.POST("", api.createConfiguration)
	cg.GET("", api.queryConfigurations)
	cdg := cg.Group("/:id", api.configurationMiddleware())
	cdg.GET("", api.retrieveConfiguration)
	cdg.PUT("", api.updateConfiguration)
	cdg.DELETE("", api.destroyConfiguration)
	cdg.POST("/toggle-active", api.toggleConfiguration)

	sg := g.Group("/scheduled")
	sg.POST("", api.schedule)
	sg.GET("", api.queryScheduled)
	sdg := sg.Group("/:id", api.scheduledMiddleware())
	sdg.GET("", api.retrieveScheduled)
	sdg.DELETE("", api.destroyScheduled)
	sdg.POST("/cancel", api.cancel)
}

// Configurations

func (api *reminderApi) createConfiguration(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	var data reminder.NewConfiguration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewConfiguration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	conf, err := api.svc.CreateConfiguration(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating reminder configuration")
	}
	return ctx.JSON(http.StatusCreated, conf)
}

func (api *reminderApi) queryConfigurations(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(reminder.ConfigurationFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []reminder.Configuration{})
	}

	confs, err := api.svc.QueryConfigurations(ctx.Request().Context(), sch.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying reminder configurations")
	}
	if confs == nil {
		confs = []reminder.Configuration{}
	}
	return ctx.JSON(http.StatusOK, confs)
}

func (api *reminderApi) retrieveConfiguration(ctx echo.Context) error {
	conf, ok := ctx.Get("object").(reminder.Configuration)
	if !ok {
		return errors.Wrap(errConfigurationNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *reminderApi) updateConfiguration(ctx echo.Context) error {
	conf, ok := ctx.Get("object").(reminder.Configuration)
	if !ok {
		return errors.Wrap(errConfigurationNotFoundInCtx, "retrieving object from context")
	}

	var data reminder.UpdateConfiguration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateConfiguration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	conf, err := api.svc.UpdateConfiguration(ctx.Request().Context(), conf, data)
	if err != nil {
		return errors.Wrap(err, "updating reminder configuration")
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *reminderApi) toggleConfiguration(ctx echo.Context) error {
	conf, ok := ctx.Get("object").(reminder.Configuration)
	if !ok {
		return errors.Wrap(errConfigurationNotFoundInCtx, "retrieving object from context")
	}

	conf, err := api.svc.ToggleConfiguration(ctx.Request().Context(), conf)
	if err != nil {
		return errors.Wrap(err, "toggling reminder configuration")
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *reminderApi) destroyConfiguration(ctx echo.Context) error {
	conf, ok := ctx.Get("object").(reminder.Configuration)
	if !ok {
		return errors.Wrap(errConfigurationNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteConfiguration(ctx.Request().Context(), conf); err != nil {
		return errors.Wrap(err, "deleting reminder configuration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Scheduled reminders

func (api *reminderApi) schedule(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data reminder.NewScheduled
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScheduled")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rem, err := api.svc.Schedule(ctx.Request().Context(), sch.ID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "scheduling reminder")
	}
	return ctx.JSON(http.StatusCreated, rem)
}

func (api *reminderApi) queryScheduled(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(reminder.ScheduledFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []reminder.Scheduled{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reminders, err := api.svc.QueryScheduled(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying scheduled reminders")
	}
	if reminders == nil {
		reminders = []reminder.Scheduled{}
	}
	return ctx.JSON(http.StatusOK, reminders)
}

func (api *reminderApi) retrieveScheduled(ctx echo.Context) error {
	rem, ok := ctx.Get("object").(reminder.Scheduled)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, rem)
}

func (api *reminderApi) cancel(ctx echo.Context) error {
	rem, ok := ctx.Get("object").(reminder.Scheduled)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}

	rem, err := api.svc.Cancel(ctx.Request().Context(), rem)
	if err != nil {
		return errors.Wrap(err, "cancelling reminder")
	}
	return ctx.JSON(http.StatusOK, rem)
}

func (api *reminderApi) destroyScheduled(ctx echo.Context) error {
	rem, ok := ctx.Get("object").(reminder.Scheduled)
	if !ok {
		return errors.Wrap(errReminderNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteScheduled(ctx.Request().Context(), rem); err != nil {
		return errors.Wrap(err, "deleting reminder")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reminderApi) configurationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			conf, err := api.svc.GetConfiguration(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding reminder configuration")
			}
			ctx.Set("object", conf)
			return next(ctx)
		}
	}
}

func (api *reminderApi) scheduledMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			rem, err := api.svc.GetScheduled(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding scheduled reminder")
			}
			ctx.Set("object", rem)
			return next(ctx)
		}
	}
}
