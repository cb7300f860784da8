package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// Frequency describes how a trigger's next_run_at advances on success.
type Frequency struct {
	Kind           FrequencyKind
	Minutes        int64
	Seconds        int64
	CronExpr       string
	TZOffsetMins   int
	SilenceMinutes int64
}

type FrequencyKind string

const (
	FrequencyMinutes FrequencyKind = "minutes"
	FrequencySeconds FrequencyKind = "seconds"
	FrequencyCron    FrequencyKind = "cron"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// AdvanceOnSuccess computes the next next_run_at and silence flag,
// given the current run time and whether the trigger fired (for
// alert silence windows).
func AdvanceOnSuccess(f Frequency, now int64, fired bool) (nextRunAt int64, silenced bool, err error) {
	if fired && f.SilenceMinutes > 0 {
		return now + f.SilenceMinutes*60*1_000_000, true, nil
	}

	switch f.Kind {
	case FrequencyCron:
		next, err := nextCronOccurrence(f.CronExpr, f.TZOffsetMins, now)
		if err != nil {
			return 0, false, err
		}
		return next, false, nil
	case FrequencySeconds:
		return now + f.Seconds*1_000_000, false, nil
	case FrequencyMinutes:
		fallthrough
	default:
		return now + f.Minutes*60*1_000_000, false, nil
	}
}

// AdvanceOnFailure applies the failure rule: once retries exhaust
// max_retries the schedule still advances to its next normal
// occurrence, otherwise only the retry counter moves.
func AdvanceOnFailure(f Frequency, now int64, retries, maxRetries int) (newRetries int, nextRunAt int64, err error) {
	newRetries = retries + 1
	if newRetries >= maxRetries {
		next, _, err := AdvanceOnSuccess(f, now, false)
		if err != nil {
			return newRetries, 0, err
		}
		return newRetries, next, nil
	}
	return newRetries, 0, nil
}

func nextCronOccurrence(expr string, tzOffsetMins int, nowMicros int64) (int64, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0, oerrors.Wrap(oerrors.InvalidInput, "invalid_cron", "parse cron expression", err)
	}
	loc := time.FixedZone("tz_offset", tzOffsetMins*60)
	nowUTC := time.UnixMicro(nowMicros)
	nowInTZ := nowUTC.In(loc)
	next := sched.Next(nowInTZ)
	return next.UTC().UnixMicro(), nil
}
