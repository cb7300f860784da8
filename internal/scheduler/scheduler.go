// Package scheduler implements a durable leased job queue: alert,
// report, and pipeline triggers compete for a single in-flight lease
// per (org, module, key), advanced by pull/watch_timeout and retried
// per a configurable ordering policy.
package scheduler

import (
	"context"
	"time"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// Module enumerates the kinds of work a Trigger schedules.
type Module string

const (
	ModuleAlert    Module = "alert"
	ModuleReport   Module = "report"
	ModulePipeline Module = "pipeline"
)

// Status is a Trigger's lease state machine position.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Trigger is one scheduled job row: org/module/key identify the
// job, status tracks its lease, and next_run_at/retries drive
// rescheduling.
type Trigger struct {
	ID          int64
	Org         string
	Module      Module
	ModuleKey   string
	IsRealtime  bool
	IsSilenced  bool
	Status      Status
	StartTime   int64
	EndTime     int64
	Retries     int
	NextRunAt   int64
	Data        string
}

// Store is the scheduler's persistence interface. SQLStore implements
// it against a dedicated scheduler_triggers table, with its own copy
// of the Postgres/SQLite dialect handling internal/filelist also uses.
type Store interface {
	Push(ctx context.Context, t Trigger) error
	Delete(ctx context.Context, org string, module Module, key string) error
	UpdateStatus(ctx context.Context, org string, module Module, key string, status Status, retries int, data *string) error
	UpdateTrigger(ctx context.Context, t Trigger, cloneFields bool) error
	KeepAlive(ctx context.Context, ids []int64, alertTimeout, reportTimeout time.Duration) error
	Pull(ctx context.Context, concurrency int, alertTimeout, reportTimeout time.Duration, now int64) ([]Trigger, error)
	WatchTimeout(ctx context.Context, now int64) error
	CleanComplete(ctx context.Context, maxRetries int) error
	Get(ctx context.Context, org string, module Module, key string) (Trigger, error)
	List(ctx context.Context) ([]Trigger, error)
	ListByOrg(ctx context.Context, org string) ([]Trigger, error)
	CreateTable(ctx context.Context) error
}

// ModuleTimeout returns the lease duration pull() stamps into
// end_time, per module.
func ModuleTimeout(m Module, alertTimeout, reportTimeout time.Duration) time.Duration {
	switch m {
	case ModuleAlert:
		return alertTimeout
	case ModuleReport:
		return reportTimeout
	default:
		return alertTimeout
	}
}

// EffectiveMaxRetries applies the include_max adjustment: when set,
// one extra attempt is allowed before a job is considered exhausted.
func EffectiveMaxRetries(maxRetries int, includeMax bool) int {
	if includeMax {
		return maxRetries + 1
	}
	return maxRetries
}

var ErrNotFound = oerrors.New(oerrors.NotFound, "trigger_not_found", "trigger not found")
