package handlers

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"resourcehive/internal/middleware"
	"resourcehive/internal/models"
)

// API groups the handlers and the guards placed in front of them
type API struct {
	Batches       *BatchHandlers
	Items         *InventoryHandlers
	Notifications *NotificationHandlers
	Jobs          *JobHandlers
	Health        *HealthHandlers

	Authenticate echo.MiddlewareFunc
	RBAC         *middleware.RBACMiddleware
	Audit        *middleware.AuditMiddleware
	Version      *middleware.VersionMiddleware
	Metrics      echo.HandlerFunc
}

// Register mounts every route on e
func (a *API) Register(e *echo.Echo) {
	e.Use(a.Version.APIVersionResolver())

	e.GET("/health", a.Health.HealthCheck)
	e.GET("/health/ready", a.Health.ReadinessCheck)
	e.GET("/health/live", a.Health.LivenessCheck)
	if a.Metrics != nil {
		e.GET("/metrics", a.Metrics)
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1", a.Version.VersionHeader("v1"), a.Authenticate, a.Audit.AuditRequest())

	v1.POST("/batches", a.Batches.SubmitBatch)
	v1.GET("/batches", a.Batches.ListBatches)
	v1.GET("/batches/:id", a.Batches.GetBatch)
	v1.POST("/batches/:id/cancel", a.Batches.CancelBatch)
	v1.POST("/batches/:id/claim", a.Batches.ClaimBatch, a.RBAC.RequirePermission(models.PermClaimBatch))

	approval := a.RBAC.RequireResolvedPermission(a.Batches.ApprovalPermission)
	v1.POST("/request-items/:id/approve", a.Batches.ApproveItem, approval)
	v1.POST("/request-items/:id/reject", a.Batches.RejectItem, approval)
	v1.POST("/request-items/:id/return", a.Batches.ReturnItem, a.RBAC.RequirePermission(models.PermReturnItems))

	v1.GET("/items", a.Items.ListItems)
	v1.GET("/items/:id", a.Items.GetItem)
	v1.POST("/items/:id/adjust", a.Items.AdjustStock, a.RBAC.RequirePermission(models.PermManageInventory))
	v1.POST("/items/:id/bad-stock", a.Items.RemoveBadStock, a.RBAC.RequirePermission(models.PermManageInventory))

	v1.GET("/notifications", a.Notifications.ListNotifications)
	v1.POST("/notifications/read-all", a.Notifications.MarkAllRead)
	v1.POST("/notifications/:id/read", a.Notifications.MarkRead)

	maintenance := v1.Group("/maintenance", a.RBAC.RequirePermission(models.PermRunMaintenance))
	maintenance.POST("/sweep", a.Jobs.RunSweep)
	maintenance.POST("/procedures/:name", a.Jobs.RunProcedure)
	maintenance.GET("/jobs", a.Jobs.JobStatus)
}
