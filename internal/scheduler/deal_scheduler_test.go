package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type fakeJobs struct {
	completeCalls int
	expireCalls   int
	seenActor     uuid.UUID
	err           error
}

func (f *fakeJobs) CompleteElapsedDeals(ctx context.Context) (int, error) {
	f.completeCalls++
	f.seenActor = models.SystemActorFromContext(ctx)
	return 2, f.err
}

func (f *fakeJobs) ExpireStaleListings(ctx context.Context) (int, error) {
	f.expireCalls++
	return 0, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNormalizeSchedule(t *testing.T) {
	assert.Equal(t, "0 */5 * * * *", normalizeSchedule("*/5 * * * *", "x"))
	assert.Equal(t, "30 0 3 * * *", normalizeSchedule("30 0 3 * * *", "x"))
	assert.Equal(t, "0 15 2 * * *", normalizeSchedule("  ", "0 15 2 * * *"))
}

func TestRunJobCarriesSystemActorAndRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	systemID := uuid.New()
	jobs := &fakeJobs{}

	s := NewDealScheduler(jobs, config.SchedulerConfig{Enabled: true}, systemID, rec, quietLogger())
	s.RunJob(jobCompleteElapsed, jobs.CompleteElapsedDeals)

	assert.Equal(t, 1, jobs.completeCalls)
	assert.Equal(t, systemID, jobs.seenActor)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestRunJobSurvivesFailure(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("db down")}
	s := NewDealScheduler(jobs, config.SchedulerConfig{Enabled: true}, uuid.New(), nil, quietLogger())

	assert.NotPanics(t, func() { s.RunJob(jobExpireListings, jobs.ExpireStaleListings) })
	assert.Equal(t, 1, jobs.expireCalls)
}

func TestStartStop(t *testing.T) {
	jobs := &fakeJobs{}
	s := NewDealScheduler(jobs, config.SchedulerConfig{
		Enabled:            true,
		CompletionSchedule: "0 3 * * *",
		ExpirySchedule:     "0 0 4 * * *",
	}, uuid.New(), nil, quietLogger())

	require.NoError(t, s.Start())
	assert.True(t, s.running)
	require.NoError(t, s.Start())
	s.Stop()
	assert.False(t, s.running)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewDealScheduler(&fakeJobs{}, config.SchedulerConfig{
		Enabled:            true,
		CompletionSchedule: "not a schedule",
	}, uuid.New(), nil, quietLogger())

	assert.Error(t, s.Start())
}

func TestDisabledSchedulerDoesNothing(t *testing.T) {
	s := NewDealScheduler(&fakeJobs{}, config.SchedulerConfig{}, uuid.New(), nil, quietLogger())
	require.NoError(t, s.Start())
	assert.False(t, s.running)
	s.Stop()
}
