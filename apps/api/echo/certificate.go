package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/services/document"
)

var errCertificateNotFoundInCtx = errors.New("certificate object not found in echo.Context")

type certificateApi struct {
	svc      *certificate.Service
	students *student.Service
	users    user.ServiceInterface
	docs     *docsvc.Generator
	validate *validator.Validate
}

func registerCertificateAPI(g *echo.Group, deps ServerDeps) {
	api := certificateApi{
		svc:      deps.CertificateSvc,
		students: deps.StudentSvc,
		users:    deps.UserSvc,
		docs:     deps.Documents,
		validate: deps.Validate,
	}
	read := roleMiddleware(api.users, readerRoles...)
	write := roleMiddleware(api.users, writerRoles...)

	g.POST("", api.create, write)
	g.GET("", api.query, read)

	dg := g.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve, read)
	dg.DELETE("", api.destroy, write)
	dg.POST("/status", api.setStatus, write)
	dg.GET("/pdf", api.pdf, read)
}

func (api *certificateApi) create(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data certificate.NewCertificate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCertificate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cert, err := api.svc.Create(ctx.Request().Context(), sch.ID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating certificate")
	}
	return ctx.JSON(http.StatusCreated, cert)
}

func (api *certificateApi) query(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(certificate.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []certificate.Certificate{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	certs, err := api.svc.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) retrieve(ctx echo.Context) error {
	cert, ok := ctx.Get("object").(certificate.Certificate)
	if !ok {
		return errors.Wrap(errCertificateNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) setStatus(ctx echo.Context) error {
	cert, ok := ctx.Get("object").(certificate.Certificate)
	if !ok {
		return errors.Wrap(errCertificateNotFoundInCtx, "retrieving object from context")
	}

	var data certificate.SetStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cert, err := api.svc.SetStatus(ctx.Request().Context(), cert, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting certificate status")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) pdf(ctx echo.Context) error {
	cert, ok := ctx.Get("object").(certificate.Certificate)
	if !ok {
		return errors.Wrap(errCertificateNotFoundInCtx, "retrieving object from context")
	}
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	stud, err := api.students.Get(ctx.Request().Context(), sch.ID, cert.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	doc, err := api.docs.Certificate(sch, stud, cert)
	if err != nil {
		return errors.Wrap(err, "generating certificate")
	}
	return sendDocument(ctx, doc)
}

func (api *certificateApi) destroy(ctx echo.Context) error {
	cert, ok := ctx.Get("object").(certificate.Certificate)
	if !ok {
		return errors.Wrap(errCertificateNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), cert); err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *certificateApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			cert, err := api.svc.Get(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding certificate")
			}
			ctx.Set("object", cert)
			return next(ctx)
		}
	}
}
