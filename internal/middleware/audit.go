package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/pkg/logger"
)

// ActivityRecorder appends rows to the activity log
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, entry *models.ActivityLog) error
}

// AuditMiddleware writes one activity row for each mutating request and for
// every request refused with 401 or 403
type AuditMiddleware struct {
	recorder ActivityRecorder
	now      func() time.Time
}

func NewAuditMiddleware(recorder ActivityRecorder, now func() time.Time) *AuditMiddleware {
	if now == nil {
		now = time.Now
	}
	return &AuditMiddleware{recorder: recorder, now: now}
}

func (m *AuditMiddleware) AuditRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			var httpErr *echo.HTTPError
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					httpErr = he
					status = he.Code
				}
			}
			if !m.shouldLog(c.Request().Method, status) {
				return err
			}

			ctx := c.Request().Context()
			var actor *uuid.UUID
			if id, ok := common.GetUserIDFromContext(ctx); ok {
				actor = &id
			}
			details := models.JSONB{
				"method":     c.Request().Method,
				"status":     status,
				"ip":         c.RealIP(),
				"user_agent": c.Request().UserAgent(),
			}
			if httpErr != nil {
				details["error"] = httpErr.Message
			}

			entry := &models.ActivityLog{
				ActorID:   actor,
				Action:    c.Request().Method + " " + c.Path(),
				Entity:    "http_request",
				EntityID:  c.Request().URL.Path,
				Details:   details,
				CreatedAt: m.now(),
			}
			if recErr := m.recorder.RecordActivity(context.WithoutCancel(ctx), entry); recErr != nil {
				logger.Warn(ctx).Err(recErr).Str("path", c.Path()).Msg("failed to record request activity")
			}
			return err
		}
	}
}

func (m *AuditMiddleware) shouldLog(method string, status int) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
