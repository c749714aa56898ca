package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/dashboard"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/user"
	"github.com/trezcool/edugest/services/document"
)

type reportApi struct {
	payments    *payment.Service
	classes     *class.Service
	enrollments *enrollment.Service
	dashboard   *dashboard.Service
	users       user.ServiceInterface
	docs        *docsvc.Generator
}

func registerReportAPI(reports, dash *echo.Group, deps ServerDeps) {
	api := reportApi{
		payments:    deps.PaymentSvc,
		classes:     deps.ClassSvc,
		enrollments: deps.EnrollmentSvc,
		dashboard:   deps.DashboardSvc,
		users:       deps.UserSvc,
		docs:        deps.Documents,
	}

	reports.Use(roleMiddleware(api.users, financeRoles...))
	reports.GET("/financial", api.financial)
	reports.GET("/payments", api.paymentList)
	reports.GET("/classes", api.classList)
	reports.GET("/enrollments", api.enrollmentList)

	dash.GET("", api.home, roleMiddleware(api.users, readerRoles...))
}

func (api *reportApi) home(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	d, err := api.dashboard.Get(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

// financial renders the school's payment stats, with the payments matching the query filter.
func (api *reportApi) financial(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := bindPaymentFilter(ctx)
	if err != nil {
		return err
	}

	stats, err := api.payments.Stats(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "computing payment stats")
	}
	payments, err := api.payments.Query(ctx.Request().Context(), sch.ID, filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}

	doc, err := api.docs.FinancialReport(sch, periodLabel(filter), stats, payments)
	if err != nil {
		return errors.Wrap(err, "generating financial report")
	}
	return sendDocument(ctx, doc)
}

func (api *reportApi) paymentList(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	filter, ordering, err := bindPaymentFilter(ctx)
	if err != nil {
		return err
	}

	payments, err := api.payments.Query(ctx.Request().Context(), sch.ID, filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}

	doc, err := api.docs.PaymentReport(sch, payments)
	if err != nil {
		return errors.Wrap(err, "generating payment report")
	}
	return sendDocument(ctx, doc)
}

func (api *reportApi) classList(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}
	summary, err := api.classes.Stats(ctx.Request().Context(), sch.ID, core.CleanString(ctx.QueryParam("academic_year")))
	if err != nil {
		return errors.Wrap(err, "computing class stats")
	}

	doc, err := api.docs.ClassReport(sch, summary)
	if err != nil {
		return errors.Wrap(err, "generating class report")
	}
	return sendDocument(ctx, doc)
}

func (api *reportApi) enrollmentList(ctx echo.Context) error {
	sch, err := contextSchool(ctx)
	if err != nil {
		return err
	}

	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(err)
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	counts, err := api.enrollments.CountByStatus(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	enrollments, err := api.enrollments.Query(ctx.Request().Context(), sch.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}

	doc, err := api.docs.EnrollmentReport(sch, counts, enrollments)
	if err != nil {
		return errors.Wrap(err, "generating enrollment report")
	}
	return sendDocument(ctx, doc)
}

func bindPaymentFilter(ctx echo.Context) (*payment.QueryFilter, []core.DBOrdering, error) {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, nil, core.NewValidationError(err)
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return filter, ordering.Orderings, nil
}

func periodLabel(filter *payment.QueryFilter) string {
	switch {
	case filter.Period != "":
		return filter.Period
	case !filter.DateFrom.IsZero() && !filter.DateTo.IsZero():
		return filter.DateFrom.String() + " - " + filter.DateTo.String()
	case !filter.DateFrom.IsZero():
		return "depuis le " + filter.DateFrom.String()
	case !filter.DateTo.IsZero():
		return "jusqu'au " + filter.DateTo.String()
	case filter.AcademicYear != "":
		return filter.AcademicYear
	}
	return ""
}
