package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/services/document"
)

var errPaymentNotFoundInCtx = errors.New("payment object not found in echo.Context")

type paymentApi struct {
	svc      *payment.Service
	students *student.Service
	users    user.ServiceInterface
	docs     *docsvc.Generator
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, deps ServerDeps) {
	api := paymentApi{
		svc:      deps.PaymentSvc,
		students: deps.StudentSvc,
		users:    deps.UserSvc,
		docs:     deps.Documents,
		validate: deps.Validate,
	}
	g.Use(roleMiddleware(api.users, financeRoles...))

	g.POST("", api.create)
	g.GET("", api.query)
	g.GET("/stats", api.stats)
	g.GET("/late", api.late)
	g.GET("/receipts/:number", api.byReceipt)

	dg := g.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.GET("/receipt", api.receipt)
}

func (api *paymentApi) create(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.Create(ctx.Request().Context(), sch.ID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *paymentApi) query(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) stats(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "computing payment stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// late lists the active students without tuition payment for `month` (current month by default).
func (api *paymentApi) late(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	month := core.CleanString(ctx.QueryParam("month"))
	if month == "" {
		month = core.NowFunc().Format("2006-01")
	}

	students, err := api.svc.LatePayments(ctx.Request().Context(), sch.ID, core.CleanString(ctx.QueryParam("class")), month)
	if err != nil {
		return errors.Wrap(err, "finding late payments")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *paymentApi) byReceipt(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	pmt, err := api.svc.ByReceipt(ctx.Request().Context(), sch.ID, core.CleanString(ctx.Param("number")))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding payment by receipt")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPaymentNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) receipt(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPaymentNotFoundInCtx, "retrieving object from context")
	}
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	stud, err := api.students.Get(ctx.Request().Context(), sch.ID, pmt.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	doc, err := api.docs.Receipt(sch, stud, pmt)
	if err != nil {
		return errors.Wrap(err, "generating receipt")
	}
	return sendDocument(ctx, doc)
}

func (api *paymentApi) destroy(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPaymentNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), pmt.SchoolID, pmt.ID); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *paymentApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			pmt, err := api.svc.Get(ctx.Request().Context(), sch.ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding payment")
			}
			ctx.Set("object", pmt)
			return next(ctx)
		}
	}
}
