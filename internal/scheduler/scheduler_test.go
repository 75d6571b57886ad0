package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	JobBase
	name  string
	calls atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.calls.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{name: "market_refresh"}
	require.NoError(t, s.AddJob("0 */30 * * * *", job))

	err := s.AddJob("0 */30 * * * *", job)
	assert.Error(t, err, "duplicate names are rejected")

	err = s.AddJob("not a schedule", &countingJob{name: "bad"})
	assert.Error(t, err)

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "market_refresh", status[0].Name)
	assert.Equal(t, "0 */30 * * * *", status[0].Schedule)
}

func TestScheduler_RunNowRecordsOutcome(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "snapshot", err: errors.New("no holdings")}
	require.NoError(t, s.AddJob("@daily", job))

	err := s.RunByName("snapshot")
	assert.EqualError(t, err, "no holdings")
	assert.Equal(t, int32(1), job.calls.Load())

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "no holdings", status[0].LastError)
	assert.False(t, status[0].LastRun.IsZero())

	job.err = nil
	require.NoError(t, s.RunNow(job))
	assert.Empty(t, s.Status()[0].LastError)
	assert.Equal(t, int64(2), job.Runs())
}

func TestScheduler_RunByNameUnknown(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.RunByName("missing"))
}

func TestScheduler_PanicBecomesError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "explodes", panic: true}

	err := s.RunNow(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	_, _, lastErr := job.LastRun()
	assert.Error(t, lastErr)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "idle"}))

	s.Start()
	s.Stop()
}
