package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/user"
)

const (
	contextSchoolKey = "school"
	headerSchoolID   = "X-School-ID"
)

var errSchoolNotInCtx = errors.New("school not found in echo.Context")

// Roles allowed per kind of endpoint, super admins aside.
var (
	readerRoles  = user.SchoolRoles
	writerRoles  = []string{user.RoleSchoolAdmin}
	financeRoles = []string{user.RoleSchoolAdmin, user.RoleAccountant}
)

func superAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsSuperAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// tenantMiddleware resolves the school the request works on: the user's own school, or the one
// named by the X-School-ID header for super admins.
func tenantMiddleware(users user.ServiceInterface, schools *school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			superAdmin := usr.IsSuperAdmin()
			schoolID := usr.SchoolID
			if h := core.CleanString(ctx.Request().Header.Get(headerSchoolID), true /* lower */); h != "" && superAdmin {
				schoolID = h
			}
			if schoolID == "" {
				return errNoSchool
			}

			sch, err := schools.Get(ctx.Request().Context(), schoolID)
			if err != nil {
				if !core.IsNotFound(err) {
					return errors.Wrap(err, "finding school")
				}
				if superAdmin {
					return errHttpNotFound
				}
				return errHttpForbidden
			}
			if !superAdmin {
				if !hasSchoolRole(usr, sch.ID) {
					return errHttpForbidden
				}
				if !sch.IsActive {
					return errSchoolInactive
				}
			}
			ctx.Set(contextSchoolKey, sch)
			return next(ctx)
		}
	}
}

// roleMiddleware lets super admins through, and users holding one of roles in the request's school.
func roleMiddleware(users user.ServiceInterface, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			sch, err := contextSchool(ctx)
			if err != nil {
				return err
			}
			if usr.IsSuperAdmin() || hasSchoolRole(usr, sch.ID, roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// maintenanceMiddleware refuses writes from everyone but super admins while maintenance mode is on.
func maintenanceMiddleware(svc *settings.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			switch ctx.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(ctx)
			}
			if claims, err := getContextClaims(ctx); err == nil && claims.IsSuperAdmin {
				return next(ctx)
			}
			on, err := svc.MaintenanceMode(ctx.Request().Context())
			if err != nil {
				return errors.Wrap(err, "reading maintenance mode")
			}
			if on {
				return errMaintenance
			}
			return next(ctx)
		}
	}
}

func contextSchool(ctx echo.Context) (school.School, error) {
	if sch, ok := ctx.Get(contextSchoolKey).(school.School); ok {
		return sch, nil
	}
	return school.School{}, errors.Wrap(errSchoolNotInCtx, "retrieving school from context")
}
