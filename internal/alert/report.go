package alert

import (
	"context"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/scheduler"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

// ReportFrequencyType determines how a report's next_run_at advances.
type ReportFrequencyType string

const (
	ReportOnce   ReportFrequencyType = "once"
	ReportHours  ReportFrequencyType = "hours"
	ReportDays   ReportFrequencyType = "days"
	ReportWeeks  ReportFrequencyType = "weeks"
	ReportMonths ReportFrequencyType = "months" // each month treated as 30 days
	ReportCron   ReportFrequencyType = "cron"
)

// ReportFrequency is a report's scheduling rule.
type ReportFrequency struct {
	Type         ReportFrequencyType
	Interval     int64
	Cron         string
	TZOffsetMins int
}

// Report is a user-defined dashboard capture. Rendering the dashboard
// into a PDF is an external collaborator (headless browser + SMTP
// delivery); the core only schedules, retries, and tracks
// last_triggered_at.
type Report struct {
	Org             string
	Name            string
	Enabled         bool
	Frequency       ReportFrequency
	LastTriggeredAt int64
}

// ReportSender renders and delivers a report to its subscribers.
type ReportSender interface {
	Send(ctx context.Context, r Report) error
}

// ReportStore persists report definitions, independent of the
// scheduler's own trigger row.
type ReportStore interface {
	Get(ctx context.Context, org, name string) (Report, error)
	Set(ctx context.Context, org string, r Report) error
}

// HandleReportTrigger advances a report trigger's schedule and drives
// ReportSender, following the same retry/backoff shape as alerts.
func HandleReportTrigger(ctx context.Context, trigger scheduler.Trigger, reports ReportStore, schedStore scheduler.Store, sender ReportSender, maxRetries int) error {
	now := timeutil.NowMicros()
	reportName := trigger.ModuleKey

	report, err := reports.Get(ctx, trigger.Org, reportName)
	if err != nil {
		return err
	}

	next := trigger
	next.NextRunAt = now
	next.IsRealtime = false
	next.IsSilenced = false
	next.Status = scheduler.StatusWaiting
	next.Retries = 0

	if !report.Enabled {
		next.NextRunAt += daySilenceMicros
		return schedStore.UpdateTrigger(ctx, next, false)
	}

	runOnce := false
	nextRunAt, err := advanceReportNextRun(report.Frequency, now)
	if err != nil {
		return err
	}
	next.NextRunAt = nextRunAt
	if report.Frequency.Type == ReportOnce {
		runOnce = true
		report.Enabled = false
	}

	sendErr := sender.Send(ctx, report)
	if sendErr != nil {
		if trigger.Retries+1 >= maxRetries && !runOnce {
			if err := schedStore.UpdateTrigger(ctx, next, false); err != nil {
				return err
			}
		} else {
			if runOnce {
				report.Enabled = true
			}
			if err := schedStore.UpdateStatus(ctx, next.Org, next.Module, next.ModuleKey, scheduler.StatusWaiting, trigger.Retries+1, nil); err != nil {
				return err
			}
		}
	} else {
		if runOnce {
			next.Status = scheduler.StatusCompleted
		}
		if err := schedStore.UpdateTrigger(ctx, next, false); err != nil {
			return err
		}
	}

	report.LastTriggeredAt = now
	return reports.Set(ctx, trigger.Org, report)
}

func advanceReportNextRun(f ReportFrequency, now int64) (int64, error) {
	const micros = int64(1_000_000)
	switch f.Type {
	case ReportHours:
		return now + f.Interval*3600*micros, nil
	case ReportDays:
		return now + f.Interval*86400*micros, nil
	case ReportWeeks:
		return now + f.Interval*7*86400*micros, nil
	case ReportMonths:
		return now + f.Interval*30*86400*micros, nil
	case ReportOnce:
		return now + daySilenceMicros, nil
	case ReportCron:
		freq := scheduler.Frequency{Kind: scheduler.FrequencyCron, CronExpr: f.Cron, TZOffsetMins: f.TZOffsetMins}
		next, _, err := scheduler.AdvanceOnSuccess(freq, now, false)
		if err != nil {
			return 0, err
		}
		return next, nil
	default:
		return 0, oerrors.New(oerrors.InvalidInput, "unknown_frequency_type", "unknown report frequency type")
	}
}
