package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/user"
)

var errClassNotFoundInCtx = errors.New("class object not found in echo.Context")

type classApi struct {
	svc      *class.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, deps ServerDeps) {
	api := classApi{svc: deps.ClassSvc, users: deps.UserSvc, validate: deps.Validate}
	read := roleMiddleware(api.users, readerRoles...)
	write := roleMiddleware(api.users, writerRoles...)

	g.POST("", api.create, write)
	g.GET("", api.query, read)
	g.GET("/stats", api.stats, read)

	dg := g.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve, read)
	dg.PUT("", api.update, write)
	dg.DELETE("", api.destroy, write)
}

func (api *classApi) create(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) query(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) stats(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.Stats(ctx.Request().Context(), sch.ID, core.CleanString(ctx.QueryParam("academic_year")))
	if err != nil {
		return errors.Wrap(err, "computing class stats")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Update(ctx.Request().Context(), cls, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClassNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), cls); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			cls, err := api.svc.Get(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding class")
			}
			ctx.Set("object", cls)
			return next(ctx)
		}
	}
}
