package background

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resourcehive/internal/config"
	"resourcehive/internal/models"
)

type procedureCalls struct {
	mu    sync.Mutex
	calls map[string]int
}

func (p *procedureCalls) record(name string) *models.RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[name]++
	return models.NewRunReport(name, time.Now())
}

func (p *procedureCalls) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

type fakeSweeper struct{ *procedureCalls }

func (f fakeSweeper) Tick(context.Context) (*models.RunReport, error) {
	return f.record("sweep"), nil
}
func (f fakeSweeper) TickIfDue(context.Context) {}
func (f fakeSweeper) UpdateReservations(context.Context) (*models.RunReport, error) {
	return f.record("update_reservation_status"), nil
}
func (f fakeSweeper) CheckOverdue(context.Context) (*models.RunReport, error) {
	return f.record("check_overdue"), nil
}
func (f fakeSweeper) ActivateReservation(context.Context, uuid.UUID) (*models.Batch, error) {
	return nil, errors.New("not used")
}

type fakeMaintenance struct{ *procedureCalls }

func (f fakeMaintenance) InitializePermissions(context.Context) (*models.RunReport, error) {
	return f.record("initialize_permissions"), nil
}
func (f fakeMaintenance) PopulateSampleData(context.Context) (*models.RunReport, error) {
	return f.record("populate_sample_data"), nil
}
func (f fakeMaintenance) CheckExpiringSupplies(context.Context) (*models.RunReport, error) {
	return f.record("check_expiring_supplies"), nil
}
func (f fakeMaintenance) CheckOverdue(context.Context) (*models.RunReport, error) {
	return f.record("check_overdue"), nil
}
func (f fakeMaintenance) UpdateReservationStatus(context.Context) (*models.RunReport, error) {
	return f.record("update_reservation_status"), nil
}
func (f fakeMaintenance) AutoReactivateUsers(context.Context) (*models.RunReport, error) {
	return nil, errors.New("database unavailable")
}

type recordingArchive struct {
	mu      sync.Mutex
	reports []string
}

func (a *recordingArchive) Save(_ context.Context, report *models.RunReport) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report.Procedure)
	return report.Procedure + ".json", nil
}

func (a *recordingArchive) saved() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.reports...)
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:                     true,
		SweepIntervalMinutes:        30,
		ExpiringSuppliesIntervalHrs: 24,
		ReactivationIntervalMinutes: 60,
	}
}

func TestJobScheduler_RunsJobsOnStartAndArchivesReports(t *testing.T) {
	calls := &procedureCalls{}
	archive := &recordingArchive{}
	js, err := NewJobScheduler(testSchedulerConfig(), fakeSweeper{calls}, fakeMaintenance{calls}, archive)
	require.NoError(t, err)

	js.Start()
	t.Cleanup(func() { _ = js.Stop() })

	require.Eventually(t, func() bool {
		return calls.count("sweep") == 1 && calls.count("check_expiring_supplies") == 1 && len(archive.saved()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"sweep", "check_expiring_supplies"}, archive.saved())
}

func TestJobScheduler_GetJobStatus(t *testing.T) {
	calls := &procedureCalls{}
	js, err := NewJobScheduler(testSchedulerConfig(), fakeSweeper{calls}, fakeMaintenance{calls}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Stop() })

	status := js.GetJobStatus()

	require.Len(t, status, 3)
	assert.Equal(t, JobExpiringSupplies, status[0].Name)
	assert.Equal(t, JobSweep, status[1].Name)
	assert.Equal(t, JobReactivation, status[2].Name)
}

func TestJobScheduler_RemoveJob(t *testing.T) {
	calls := &procedureCalls{}
	js, err := NewJobScheduler(testSchedulerConfig(), fakeSweeper{calls}, fakeMaintenance{calls}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Stop() })

	require.NoError(t, js.RemoveJob(JobReactivation))
	require.NoError(t, js.RemoveJob("unknown"))

	assert.Len(t, js.GetJobStatus(), 2)
}

func TestNewJobScheduler_RejectsZeroInterval(t *testing.T) {
	calls := &procedureCalls{}
	cfg := testSchedulerConfig()
	cfg.SweepIntervalMinutes = 0

	_, err := NewJobScheduler(cfg, fakeSweeper{calls}, fakeMaintenance{calls}, nil)

	assert.Error(t, err)
}
