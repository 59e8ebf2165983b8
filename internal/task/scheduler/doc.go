// Package scheduler runs named background jobs on cron, interval, daily and weekly
// schedules. Each trigger runs the job with a timeout; a trigger that arrives while
// the previous run of the same job is still in flight is skipped.
package scheduler
