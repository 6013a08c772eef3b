package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestRegister_Validation(t *testing.T) {
	s := New(Config{Logger: logger.Nop()})

	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)
	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, Every(time.Minute)), ErrJobAlreadyExists)
}

func TestRunNow_RecordsResult(t *testing.T) {
	var results []JobResult
	s := New(Config{Logger: logger.Nop(), OnResult: func(r JobResult) { results = append(results, r) }})

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(failing, Every(time.Hour)))

	_, err := s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "boom")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Runs)
	assert.Equal(t, 1, jobs[0].Failures)
	require.NotNil(t, jobs[0].Last)
	require.Len(t, results, 1)
	assert.Equal(t, "failing", results[0].JobName)
}

func TestScheduler_RunsDueJobsWithoutOverlap(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), Tick: 5 * time.Millisecond})

	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), Tick: 5 * time.Millisecond})
	job := &countingJob{name: "stuck", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestCronSchedule(t *testing.T) {
	nightly, err := ParseCron("30 2 * * *", nil)
	require.NoError(t, err)
	assert.Equal(t, "30 2 * * *", nightly.String())

	before := time.Date(2026, 10, 12, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 2, 30, 0, 0, time.UTC), nightly.Next(before))

	at := time.Date(2026, 10, 12, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 13, 2, 30, 0, 0, time.UTC), nightly.Next(at))

	mondays, err := ParseCron("0 6 * * MON", nil)
	require.NoError(t, err)
	// Thursday 2026-10-15 -> Monday 2026-10-19
	assert.Equal(t, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC), mondays.Next(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))

	every, err := ParseCron("@every 15m", nil)
	require.NoError(t, err)
	assert.Equal(t, at.Add(15*time.Minute), every.Next(at))

	_, err = ParseCron("at noon", nil)
	assert.Error(t, err)
}

func TestIntervalSchedule(t *testing.T) {
	s := Every(time.Hour)
	at := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Hour), s.Next(at))
	assert.Equal(t, "@every 1h0m0s", s.String())
}
