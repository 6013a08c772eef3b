package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule.
func Every(d time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: d}
}

func (s IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// CronSchedule is a standard five-field cron expression or a descriptor
// such as "@daily" or "@every 30m".
type CronSchedule struct {
	spec  string
	sched cron.Schedule
}

// ParseCron parses spec. Times are evaluated in loc; nil means UTC.
func ParseCron(spec string, loc *time.Location) (CronSchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := cron.ParseStandard("CRON_TZ=" + loc.String() + " " + spec)
	if err != nil {
		return CronSchedule{}, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return CronSchedule{spec: spec, sched: sched}, nil
}

func (s CronSchedule) Next(after time.Time) time.Time {
	return s.sched.Next(after)
}

func (s CronSchedule) String() string {
	return s.spec
}
