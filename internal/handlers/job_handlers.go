package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/jobs/background"
	"resourcehive/internal/models"
	"resourcehive/internal/services"
	"resourcehive/pkg/logger"
)

// JobStatusProvider lists the scheduled background jobs
type JobStatusProvider interface {
	GetJobStatus() []background.JobStatus
}

// JobHandlers runs lifecycle procedures on demand
type JobHandlers struct {
	procedures map[string]func(ctx context.Context) (*models.RunReport, error)
	archive    background.ReportArchiver
	jobs       JobStatusProvider
}

// NewJobHandlers wires the on-demand procedures. archive and jobs may be nil.
func NewJobHandlers(scheduler services.SchedulerService, maintenance services.MaintenanceService,
	archive background.ReportArchiver, jobs JobStatusProvider) *JobHandlers {
	return &JobHandlers{
		procedures: map[string]func(ctx context.Context) (*models.RunReport, error){
			services.ProcedureSweep:                 scheduler.Tick,
			services.ProcedureCheckOverdue:          maintenance.CheckOverdue,
			services.ProcedureUpdateReservations:    maintenance.UpdateReservationStatus,
			services.ProcedureCheckExpiringSupplies: maintenance.CheckExpiringSupplies,
			services.ProcedureAutoReactivateUsers:   maintenance.AutoReactivateUsers,
			services.ProcedureInitializePermissions: maintenance.InitializePermissions,
		},
		archive: archive,
		jobs:    jobs,
	}
}

// RunSweep godoc
// @Summary Run one scheduler sweep now
// @Tags maintenance
// @Produce json
// @Success 200 {object} models.RunReport
// @Router /v1/maintenance/sweep [post]
func (h *JobHandlers) RunSweep(c echo.Context) error {
	return h.run(c, services.ProcedureSweep)
}

// RunProcedure runs the procedure named in the path
func (h *JobHandlers) RunProcedure(c echo.Context) error {
	return h.run(c, c.Param("name"))
}

func (h *JobHandlers) run(c echo.Context, name string) error {
	procedure, ok := h.procedures[name]
	if !ok {
		return common.SendError(c, common.NotFound("procedure", name))
	}

	ctx := c.Request().Context()
	report, err := procedure(ctx)
	if err != nil {
		return common.SendError(c, err)
	}
	if h.archive != nil {
		if _, err := h.archive.Save(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn(ctx).Err(err).Str("procedure", name).Msg("failed to archive run report")
		}
	}
	return common.SendOK(c, http.StatusOK, report)
}

// JobStatus lists the background jobs and their next runs
func (h *JobHandlers) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return common.SendOK(c, http.StatusOK, []background.JobStatus{})
	}
	return common.SendOK(c, http.StatusOK, h.jobs.GetJobStatus())
}
