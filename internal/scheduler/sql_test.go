package scheduler

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.CreateTable(ctx); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPushIsIdempotentOnConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tr := Trigger{Org: "o1", Module: ModuleAlert, ModuleKey: "k1", NextRunAt: 100}
	if err := s.Push(ctx, tr); err != nil {
		t.Fatalf("push: %v", err)
	}
	tr.NextRunAt = 999
	if err := s.Push(ctx, tr); err != nil {
		t.Fatalf("push again: %v", err)
	}

	got, err := s.Get(ctx, "o1", ModuleAlert, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.NextRunAt != 100 {
		t.Fatalf("expected no-op on conflicting push, got next_run_at=%d", got.NextRunAt)
	}
}

func TestPullLeasesWaitingRowsAndExcludesSilencedRealtime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleReport, ModuleKey: "r1", NextRunAt: 10})
	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleAlert, ModuleKey: "a1", NextRunAt: 10, IsRealtime: true, IsSilenced: false})
	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleAlert, ModuleKey: "a2", NextRunAt: 10, IsRealtime: true, IsSilenced: true})
	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModulePipeline, ModuleKey: "p1", NextRunAt: 999999})

	leased, err := s.Pull(ctx, 10, time.Minute, time.Hour, 100)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(leased) != 2 {
		t.Fatalf("expected 2 leasable rows (r1, a2), got %d: %+v", len(leased), leased)
	}
	for _, tr := range leased {
		if tr.ModuleKey == "a1" {
			t.Fatalf("realtime-not-silenced row a1 must not be leased")
		}
		if tr.Status != StatusProcessing {
			t.Fatalf("leased row %s not marked processing: %+v", tr.ModuleKey, tr)
		}
		if tr.StartTime != 100 {
			t.Fatalf("leased row %s start_time not stamped: %+v", tr.ModuleKey, tr)
		}
	}

	again, err := s.Pull(ctx, 10, time.Minute, time.Hour, 100)
	if err != nil {
		t.Fatalf("pull again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no double-lease on already-processing rows, got %d", len(again))
	}
}

func TestWatchTimeoutResetsExpiredLeases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleReport, ModuleKey: "r1", NextRunAt: 0})
	leased, err := s.Pull(ctx, 1, time.Microsecond, time.Microsecond, 0)
	if err != nil || len(leased) != 1 {
		t.Fatalf("pull: %v %+v", err, leased)
	}

	if err := s.WatchTimeout(ctx, 1_000_000); err != nil {
		t.Fatalf("watch_timeout: %v", err)
	}

	got, err := s.Get(ctx, "o1", ModuleReport, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusWaiting {
		t.Fatalf("expected row reset to waiting, got %s", got.Status)
	}
	if got.Retries != 1 {
		t.Fatalf("expected retries incremented once, got %d", got.Retries)
	}
}

func TestCleanCompleteExcludesAlertModule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleAlert, ModuleKey: "a1"})
	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleReport, ModuleKey: "r1"})
	_ = s.UpdateStatus(ctx, "o1", ModuleAlert, "a1", StatusCompleted, 0, nil)
	_ = s.UpdateStatus(ctx, "o1", ModuleReport, "r1", StatusCompleted, 0, nil)

	if err := s.CleanComplete(ctx, 3); err != nil {
		t.Fatalf("clean_complete: %v", err)
	}

	if _, err := s.Get(ctx, "o1", ModuleReport, "r1"); err != ErrNotFound {
		t.Fatalf("expected completed report row to be gc'd, err=%v", err)
	}
	if _, err := s.Get(ctx, "o1", ModuleAlert, "a1"); err != nil {
		t.Fatalf("expected completed alert row to survive clean_complete, err=%v", err)
	}
}

func TestUpdateTriggerCloneFieldsWritesTimes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModulePipeline, ModuleKey: "p1"})
	tr := Trigger{Org: "o1", Module: ModulePipeline, ModuleKey: "p1", Status: StatusWaiting, NextRunAt: 42, StartTime: 7, EndTime: 9}
	if err := s.UpdateTrigger(ctx, tr, true); err != nil {
		t.Fatalf("update_trigger: %v", err)
	}

	got, err := s.Get(ctx, "o1", ModulePipeline, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartTime != 7 || got.EndTime != 9 || got.NextRunAt != 42 {
		t.Fatalf("clone_fields update did not persist: %+v", got)
	}
}

func TestListByOrg(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.Push(ctx, Trigger{Org: "o1", Module: ModuleAlert, ModuleKey: "a1"})
	_ = s.Push(ctx, Trigger{Org: "o2", Module: ModuleAlert, ModuleKey: "a2"})

	rows, err := s.ListByOrg(ctx, "o1")
	if err != nil {
		t.Fatalf("list_by_org: %v", err)
	}
	if len(rows) != 1 || rows[0].ModuleKey != "a1" {
		t.Fatalf("unexpected list_by_org result: %+v", rows)
	}
}
