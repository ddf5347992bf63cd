// Package scheduler implements the scheduled task store (spec.md §4.7,
// component C7): due-task polling, post-run bookkeeping, and next-run
// computation for once/interval/cron schedules.
package scheduler

// ScheduleType selects how ComputeNextRun interprets ScheduleValue.
type ScheduleType string

const (
	ScheduleOnce     ScheduleType = "once"
	ScheduleInterval ScheduleType = "interval"
	ScheduleCron     ScheduleType = "cron"
)

// ScheduledTask is one row of the scheduled task store.
type ScheduledTask struct {
	ID            string
	Group         string
	Prompt        string
	ScheduleType  ScheduleType
	ScheduleValue string
	NextRunMS     *uint64
	LastRunMS     *uint64
	LastResult    string
	Active        bool
	CreatedAtMS   uint64
}

// Store is the persistence contract the host runtime loop polls against.
type Store interface {
	// DueTasks returns active tasks whose NextRunMS is set and <= nowMS.
	DueTasks(nowMS uint64) ([]ScheduledTask, error)

	// UpdateTaskAfterRun persists the post-run fields for id. A nil
	// nextRunMS deactivates the task (Once schedules, or Cron/Interval
	// tasks that failed to compute a next run).
	UpdateTaskAfterRun(id string, nextRunMS *uint64, lastResult string, nowMS uint64) error

	// Get returns a single task by id.
	Get(id string) (ScheduledTask, bool, error)

	// Put inserts or replaces a task.
	Put(task ScheduledTask) error

	// LogRun appends a task_run_logs row (spec.md supplement, §6).
	LogRun(taskID string, runAtMS uint64, durationMS uint64, status, result, errMsg string) error
}
