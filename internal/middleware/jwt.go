package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/pkg/logger"
)

const tokenContextKey = "token"

// Claims are the token claims the API understands. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// UserLookup loads the caller behind a token subject
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// HMACKeyfunc verifies tokens signed with a shared secret
func HMACKeyfunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

// JWKSKeyfunc verifies tokens against the key set published at url. The
// returned stop func ends the background refresh.
func JWKSKeyfunc(ctx context.Context, url string) (jwt.Keyfunc, func(), error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Warn(ctx).Err(err).Str("jwks_url", url).Msg("failed to refresh JWKS")
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load JWKS from %s: %w", url, err)
	}
	return jwks.Keyfunc, jwks.EndBackground, nil
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, common.CreateErrorResponse("UNAUTHORIZED", message, nil))
}

// JWTMiddleware validates the bearer token, then loads the caller and stores
// their id and role on the request context. Inactive users are rejected.
func JWTMiddleware(keys jwt.Keyfunc, users UserLookup) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		KeyFunc:    keys,
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var missing *echojwt.TokenExtractionError
			if errors.As(err, &missing) {
				return unauthorized(c, "Missing token")
			}
			return unauthorized(c, "Invalid token")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok {
				return unauthorized(c, "Invalid token")
			}
			claims, ok := token.Claims.(*Claims)
			if !ok {
				return unauthorized(c, "Invalid claims")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return unauthorized(c, "Invalid user id in token")
			}

			ctx := c.Request().Context()
			user, err := users.GetUser(ctx, userID)
			if err != nil {
				if common.IsKind(err, common.KindNotFound) {
					return unauthorized(c, "User not found")
				}
				return common.SendError(c, err)
			}
			if !user.IsActive {
				return unauthorized(c, "Account is disabled")
			}

			c.SetRequest(c.Request().WithContext(common.WithActor(ctx, user.ID, string(user.Role))))
			return next(c)
		})
	}
}
