package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/user"
)

var errEnrollmentNotFoundInCtx = errors.New("enrollment object not found in echo.Context")

type enrollmentApi struct {
	svc      *enrollment.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, deps ServerDeps) {
	api := enrollmentApi{svc: deps.EnrollmentSvc, users: deps.UserSvc, validate: deps.Validate}
	read := roleMiddleware(api.users, readerRoles...)
	write := roleMiddleware(api.users, writerRoles...)

	g.POST("", api.create, write)
	g.GET("", api.query, read)
	g.GET("/counts", api.counts, read)

	dg := g.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve, read)
	dg.PUT("", api.update, write)
	dg.DELETE("", api.destroy, write)
	dg.POST("/approve", api.approve, write)
	dg.POST("/reject", api.reject, write)
	dg.POST("/documents-missing", api.markDocumentsMissing, write)
	dg.POST("/resubmit", api.resubmit, write)
}

func (api *enrollmentApi) create(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Create(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	enrollments, err := api.svc.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) counts(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	counts, err := api.svc.CountByStatus(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) update(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}

	var data enrollment.UpdateEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Update(ctx.Request().Context(), enr, data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) approve(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data enrollment.ApproveEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApproveEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Approve(ctx.Request().Context(), enr.SchoolID, enr.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "approving enrollment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}

	var data enrollment.RejectEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Reject(ctx.Request().Context(), enr.SchoolID, enr.ID, data)
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) markDocumentsMissing(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}

	var data enrollment.MissingDocuments
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MissingDocuments")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.MarkDocumentsMissing(ctx.Request().Context(), enr.SchoolID, enr.ID, data)
	if err != nil {
		return errors.Wrap(err, "marking documents missing")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) resubmit(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}

	enr, err := api.svc.Resubmit(ctx.Request().Context(), enr.SchoolID, enr.ID)
	if err != nil {
		return errors.Wrap(err, "resubmitting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	enr, ok := ctx.Get("object").(enrollment.Enrollment)
	if !ok {
		return errors.Wrap(errEnrollmentNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), enr.SchoolID, enr.ID); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			enr, err := api.svc.Get(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding enrollment")
			}
			ctx.Set("object", enr)
			return next(ctx)
		}
	}
}
