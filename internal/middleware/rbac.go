package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/pkg/logger"
)

// PermissionChecker answers whether a user holds a permission codename
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, codename string) (bool, error)
}

type RBACMiddleware struct {
	permissions PermissionChecker
}

func NewRBACMiddleware(permissions PermissionChecker) *RBACMiddleware {
	return &RBACMiddleware{permissions: permissions}
}

func forbidden(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, common.CreateErrorResponse(string(common.KindForbidden), message, nil))
}

// RequireAdmin admits callers with the ADMIN role
func (m *RBACMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := common.GetUserIDFromContext(c.Request().Context()); !ok {
				return unauthorized(c, "User not authenticated")
			}
			role, _ := common.GetRoleFromContext(c.Request().Context())
			if models.Role(role) != models.RoleAdmin {
				return forbidden(c, "Administrator role required")
			}
			return next(c)
		}
	}
}

// RequirePermission admits administrators granted permission
func (m *RBACMiddleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return m.RequireResolvedPermission(func(echo.Context) (string, error) { return permission, nil })
}

// RequireResolvedPermission admits administrators granted the permission
// resolve picks for the request. Resolver errors are written as envelopes.
func (m *RBACMiddleware) RequireResolvedPermission(resolve func(c echo.Context) (string, error)) echo.MiddlewareFunc {
	requireAdmin := m.RequireAdmin()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return requireAdmin(func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, _ := common.GetUserIDFromContext(ctx)

			permission, err := resolve(c)
			if err != nil {
				return common.SendError(c, err)
			}

			ok, err := m.permissions.HasPermission(ctx, userID, permission)
			if err != nil {
				logger.Error(ctx).Err(err).Str("permission", permission).Msg("permission check failed")
				return common.SendError(c, common.Internal("check permission", err))
			}
			if !ok {
				return forbidden(c, "Insufficient permissions")
			}
			return next(c)
		})
	}
}
