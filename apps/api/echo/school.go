package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/user"
)

var errSchoolNotFoundInCtx = errors.New("school object not found in echo.Context")

type schoolApi struct {
	svc      *school.Service
	users    user.ServiceInterface
	settings *settings.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerSchoolAPI(v1 *echo.Group, jwt, maintenance echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{
		svc:      deps.SchoolSvc,
		users:    deps.UserSvc,
		settings: deps.SettingsSvc,
		conf:     deps.Conf,
		validate: deps.Validate,
	}

	v1.POST("/onboarding", api.onboard, jwt, maintenance)

	pg := v1.Group("/preferences", jwt)
	pg.GET("", api.preferences)
	pg.PUT("", api.updatePreferences)

	sg := v1.Group("/admin/schools", jwt, superAdminMiddleware())
	sg.POST("", api.create)
	sg.GET("", api.query)

	dg := sg.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/toggle-active", api.toggleActive)

	stg := v1.Group("/admin/settings", jwt, superAdminMiddleware())
	stg.GET("", api.system)
	stg.PUT("", api.updateSystem)
}

// onboard creates the school of a user who does not belong to one yet and makes them its admin.
// A fresh token is returned since the claims now carry the school.
func (api *schoolApi) onboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.SchoolID != "" {
		return core.NewRuleError("user already belongs to a school")
	}

	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	if usr, err = api.users.GetByID(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "reloading user")
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, OnboardingResponse{School: sch, Token: token})
}

func (api *schoolApi) preferences(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	prefs, err := api.settings.Preferences(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *schoolApi) updatePreferences(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data settings.UpdatePreferences
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePreferences")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prefs, err := api.settings.UpdatePreferences(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data NewSchoolRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data.NewSchool, data.OwnerID)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.School{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, ok := ctx.Get("object").(school.School)
	if !ok {
		return errors.Wrap(errSchoolNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	sch, ok := ctx.Get("object").(school.School)
	if !ok {
		return errors.Wrap(errSchoolNotFoundInCtx, "retrieving object from context")
	}

	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), sch, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) toggleActive(ctx echo.Context) error {
	sch, ok := ctx.Get("object").(school.School)
	if !ok {
		return errors.Wrap(errSchoolNotFoundInCtx, "retrieving object from context")
	}

	sch, err := api.svc.SetActive(ctx.Request().Context(), sch, !sch.IsActive)
	if err != nil {
		return errors.Wrap(err, "toggling school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	sch, ok := ctx.Get("object").(school.School)
	if !ok {
		return errors.Wrap(errSchoolNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), sch.ID); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) system(ctx echo.Context) error {
	sys, err := api.settings.System(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting system settings")
	}
	return ctx.JSON(http.StatusOK, sys)
}

func (api *schoolApi) updateSystem(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data settings.UpdateSystem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSystem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sys, err := api.settings.UpdateSystem(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "updating system settings")
	}
	return ctx.JSON(http.StatusOK, sys)
}

func (api *schoolApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sch, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding school")
			}
			ctx.Set("object", sch)
			return next(ctx)
		}
	}
}

type (
	NewSchoolRequest struct {
		school.NewSchool
		OwnerID string `json:"owner_id" validate:"omitempty,uuid"`
	}

	OnboardingResponse struct {
		School school.School `json:"school"`
		Token  string        `json:"token"`
	}
)

func (nr *NewSchoolRequest) Validate(validate *validator.Validate) error {
	nr.OwnerID = core.CleanString(nr.OwnerID, true /* lower */)
	if err := nr.NewSchool.Validate(validate); err != nil {
		return err
	}
	return validate.Var(nr.OwnerID, "omitempty,uuid")
}
