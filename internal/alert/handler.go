package alert

import (
	"context"
	"strings"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/scheduler"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

const daySilenceMicros = 7 * 24 * 60 * 60 * 1_000_000

// Store looks up the alert definition a trigger's module_key names.
type Store interface {
	Get(ctx context.Context, org, streamType, streamName, name string) (Alert, error)
}

// HandleTrigger dispatches a pulled scheduler.Trigger to the alert
// handler; report/synthetics triggers are out of scope for this
// dispatcher and return an error so the caller can route them
// elsewhere.
func HandleTrigger(ctx context.Context, trigger scheduler.Trigger, store Store, schedStore scheduler.Store, searcher Searcher, promSearcher PromQLSearcher, notifier Notifier, maxRetries int) error {
	switch trigger.Module {
	case scheduler.ModuleAlert:
		return handleAlertTrigger(ctx, trigger, store, schedStore, searcher, promSearcher, notifier, maxRetries)
	default:
		return oerrors.New(oerrors.InvalidInput, "unsupported_module", "alert handler received a non-alert trigger")
	}
}

func handleAlertTrigger(ctx context.Context, trigger scheduler.Trigger, store Store, schedStore scheduler.Store, searcher Searcher, promSearcher PromQLSearcher, notifier Notifier, maxRetries int) error {
	parts := strings.SplitN(trigger.ModuleKey, "/", 3)
	if len(parts) != 3 {
		return oerrors.New(oerrors.InvalidInput, "bad_module_key", "alert module_key must be streamType/streamName/alertName")
	}
	streamType, streamName, alertName := parts[0], parts[1], parts[2]
	now := timeutil.NowMicros()

	if trigger.IsRealtime && trigger.IsSilenced {
		woken := trigger
		woken.NextRunAt = now
		woken.IsRealtime = true
		woken.IsSilenced = false
		woken.Status = scheduler.StatusWaiting
		return schedStore.UpdateTrigger(ctx, woken, false)
	}

	a, err := store.Get(ctx, trigger.Org, streamType, streamName, alertName)
	if err != nil {
		return err
	}

	next := trigger
	next.NextRunAt = now
	next.IsRealtime = false
	next.IsSilenced = false
	next.Status = scheduler.StatusWaiting
	next.Retries = 0

	if !a.Enabled {
		next.NextRunAt += daySilenceMicros
		next.IsSilenced = true
		return schedStore.UpdateTrigger(ctx, next, false)
	}

	result, evalErr := Evaluate(ctx, a, searcher, promSearcher, trigger.StartTime, now)
	if evalErr != nil {
		return advanceOnFailure(ctx, trigger, next, schedStore, maxRetries)
	}

	freq := scheduler.Frequency{
		Kind:           scheduler.FrequencySeconds,
		Seconds:        a.Trigger.FrequencySeconds,
		CronExpr:       a.Trigger.Cron,
		TZOffsetMins:   a.Trigger.TZOffsetMins,
		SilenceMinutes: a.Trigger.SilenceMinutes,
	}
	if a.Trigger.Cron != "" {
		freq.Kind = scheduler.FrequencyCron
	}
	nextRunAt, silenced, err := scheduler.AdvanceOnSuccess(freq, now, result.Fired)
	if err != nil {
		return err
	}
	next.NextRunAt = nextRunAt
	next.IsSilenced = silenced

	if !result.Fired {
		return schedStore.UpdateTrigger(ctx, next, false)
	}

	if err := notifier.Send(ctx, a, result.Rows, result.StableDimension); err != nil {
		return advanceOnFailure(ctx, trigger, next, schedStore, maxRetries)
	}
	return schedStore.UpdateTrigger(ctx, next, false)
}

func advanceOnFailure(ctx context.Context, trigger scheduler.Trigger, next scheduler.Trigger, schedStore scheduler.Store, maxRetries int) error {
	if trigger.Retries+1 >= maxRetries {
		return schedStore.UpdateTrigger(ctx, next, false)
	}
	return schedStore.UpdateStatus(ctx, next.Org, next.Module, next.ModuleKey, scheduler.StatusWaiting, trigger.Retries+1, nil)
}
