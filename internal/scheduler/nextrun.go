package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ComputeNextRun implements spec.md §4.7's compute_next_run: Once never
// runs again, Interval adds a parsed Go duration to nowMS, and Cron
// finds the next standard 5-field match after nowMS.
func ComputeNextRun(scheduleType ScheduleType, scheduleValue string, nowMS uint64) (*uint64, error) {
	switch scheduleType {
	case ScheduleOnce:
		return nil, nil

	case ScheduleInterval:
		d, err := time.ParseDuration(scheduleValue)
		if err != nil {
			return nil, fmt.Errorf("scheduler: parse interval %q: %w", scheduleValue, err)
		}
		next := nowMS + uint64(d.Milliseconds())
		return &next, nil

	case ScheduleCron:
		sched, err := cronParser.Parse(scheduleValue)
		if err != nil {
			return nil, fmt.Errorf("scheduler: parse cron expression %q: %w", scheduleValue, err)
		}
		next := sched.Next(time.UnixMilli(int64(nowMS)))
		nextMS := uint64(next.UnixMilli())
		return &nextMS, nil

	default:
		return nil, fmt.Errorf("scheduler: unknown schedule type %q", scheduleType)
	}
}
