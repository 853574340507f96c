package background

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"resourcehive/internal/config"
	"resourcehive/internal/models"
	"resourcehive/internal/services"
	"resourcehive/pkg/logger"
)

// Job names
const (
	JobSweep            = "lifecycle-sweep"
	JobExpiringSupplies = "expiring-supplies"
	JobReactivation     = "user-reactivation"
)

// ReportArchiver stores finished run reports. It may be nil.
type ReportArchiver interface {
	Save(ctx context.Context, report *models.RunReport) (string, error)
}

// JobScheduler drives the periodic lifecycle procedures. Every procedure is
// idempotent, so overlapping runs across replicas are harmless; within one
// process a slow run reschedules instead of stacking up.
type JobScheduler struct {
	scheduler   gocron.Scheduler
	sweeper     services.SchedulerService
	maintenance services.MaintenanceService
	archive     ReportArchiver
	jobs        map[string]gocron.Job
	mu          sync.RWMutex
}

// NewJobScheduler creates the scheduler and registers the lifecycle jobs
func NewJobScheduler(cfg config.SchedulerConfig, sweeper services.SchedulerService,
	maintenance services.MaintenanceService, archive ReportArchiver, opts ...gocron.SchedulerOption) (*JobScheduler, error) {

	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:   scheduler,
		sweeper:     sweeper,
		maintenance: maintenance,
		archive:     archive,
		jobs:        make(map[string]gocron.Job),
	}

	if err := js.registerJobs(cfg); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	logger.Info(context.Background()).Int("jobs", len(js.jobs)).Msg("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	logger.Info(context.Background()).Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(cfg config.SchedulerConfig) error {
	if err := js.AddJob(JobSweep, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, js.sweeper.Tick); err != nil {
		return err
	}
	if err := js.AddJob(JobExpiringSupplies, time.Duration(cfg.ExpiringSuppliesIntervalHrs)*time.Hour,
		js.maintenance.CheckExpiringSupplies); err != nil {
		return err
	}
	return js.AddJob(JobReactivation, time.Duration(cfg.ReactivationIntervalMinutes)*time.Minute,
		js.maintenance.AutoReactivateUsers)
}

// AddJob schedules procedure every interval, starting immediately
func (js *JobScheduler) AddJob(name string, interval time.Duration,
	procedure func(ctx context.Context) (*models.RunReport, error)) error {

	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.runProcedure, name, procedure),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	js.jobs[name] = job
	return nil
}

func (js *JobScheduler) runProcedure(name string, procedure func(ctx context.Context) (*models.RunReport, error)) {
	ctx := context.Background()
	report, err := procedure(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Str("job", name).Msg("background job failed")
	}
	if report == nil || js.archive == nil {
		return
	}
	if _, err := js.archive.Save(ctx, report); err != nil {
		logger.Warn(ctx).Err(err).Str("job", name).Msg("failed to archive run report")
	}
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}
	return nil
}

// JobStatus describes one scheduled job
type JobStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run,omitempty"`
	NextRun time.Time `json:"next_run,omitempty"`
}

// GetJobStatus returns the scheduled jobs sorted by name
func (js *JobScheduler) GetJobStatus() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		st := JobStatus{Name: name}
		st.LastRun, _ = job.LastRun()
		st.NextRun, _ = job.NextRun()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
