package alert

import (
	"context"
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/scheduler"
)

type fakeReportStore struct {
	reports map[string]Report
}

func (f *fakeReportStore) Get(ctx context.Context, org, name string) (Report, error) {
	return f.reports[name], nil
}

func (f *fakeReportStore) Set(ctx context.Context, org string, r Report) error {
	f.reports[r.Name] = r
	return nil
}

type fakeReportSender struct {
	err   error
	calls int
}

func (f *fakeReportSender) Send(ctx context.Context, r Report) error {
	f.calls++
	return f.err
}

func TestAdvanceReportNextRunHours(t *testing.T) {
	next, err := advanceReportNextRun(ReportFrequency{Type: ReportHours, Interval: 2}, 0)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	want := int64(2 * 3600 * 1_000_000)
	if next != want {
		t.Fatalf("expected %d, got %d", want, next)
	}
}

func TestAdvanceReportNextRunMonthsIs30Days(t *testing.T) {
	next, err := advanceReportNextRun(ReportFrequency{Type: ReportMonths, Interval: 1}, 0)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	want := int64(30 * 86400 * 1_000_000)
	if next != want {
		t.Fatalf("expected 30-day month, got %d", next)
	}
}

func TestHandleReportTriggerOnceDisablesAfterRun(t *testing.T) {
	store := &fakeReportStore{reports: map[string]Report{
		"daily-summary": {Name: "daily-summary", Enabled: true, Frequency: ReportFrequency{Type: ReportOnce}},
	}}
	sched := &fakeSchedStore{}
	sender := &fakeReportSender{}

	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.ModuleReport, ModuleKey: "daily-summary"}
	if err := HandleReportTrigger(context.Background(), trigger, store, sched, sender, 3); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected sender called once, got %d", sender.calls)
	}
	if store.reports["daily-summary"].Enabled {
		t.Fatal("expected once-report disabled after successful send")
	}
	if len(sched.updated) != 1 || sched.updated[0].Status != scheduler.StatusCompleted {
		t.Fatalf("expected trigger marked completed, got %+v", sched.updated)
	}
}

func TestHandleReportTriggerDisabledReportSkipsSend(t *testing.T) {
	store := &fakeReportStore{reports: map[string]Report{
		"daily-summary": {Name: "daily-summary", Enabled: false},
	}}
	sched := &fakeSchedStore{}
	sender := &fakeReportSender{}

	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.ModuleReport, ModuleKey: "daily-summary"}
	if err := HandleReportTrigger(context.Background(), trigger, store, sched, sender, 3); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send for disabled report, got %d calls", sender.calls)
	}
}

func TestHandleReportTriggerSendFailureBelowMaxRetriesBumpsStatus(t *testing.T) {
	store := &fakeReportStore{reports: map[string]Report{
		"daily-summary": {Name: "daily-summary", Enabled: true, Frequency: ReportFrequency{Type: ReportDays, Interval: 1}},
	}}
	sched := &fakeSchedStore{}
	sender := &fakeReportSender{err: context.DeadlineExceeded}

	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.ModuleReport, ModuleKey: "daily-summary", Retries: 0}
	if err := HandleReportTrigger(context.Background(), trigger, store, sched, sender, 3); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sched.statuses) != 1 || sched.statuses[0] != scheduler.StatusWaiting {
		t.Fatalf("expected status-only retry bump, got %+v", sched.statuses)
	}
}
