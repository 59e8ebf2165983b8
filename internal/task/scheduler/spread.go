package scheduler

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// firstRunSchedule delays only the first activation of an interval schedule.
type firstRunSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *firstRunSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// intervalWithSpread keeps many @every jobs registered at boot from firing in the
// same second. The jitter is derived from the job name, so it is stable per job.
func intervalWithSpread(every time.Duration, now time.Time, name string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	spread := every
	if spread > maxStartupSpread {
		spread = maxStartupSpread
	}
	if spread <= time.Second {
		return base, 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	jitter := time.Duration(rand.New(rand.NewSource(int64(h.Sum64()))).Int63n(int64(spread)))
	return &firstRunSchedule{base: base, first: now.Add(every + jitter)}, jitter
}
