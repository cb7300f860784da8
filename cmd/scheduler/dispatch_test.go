package main

import (
	"context"
	"testing"
	"time"

	"github.com/openobserve/openobserve-sub015/internal/pipeline"
	"github.com/openobserve/openobserve-sub015/internal/scheduler"
)

type fakeSchedStore struct {
	scheduler.Store
	updated []scheduler.Trigger
}

func (f *fakeSchedStore) UpdateTrigger(ctx context.Context, t scheduler.Trigger, cloneFields bool) error {
	f.updated = append(f.updated, t)
	return nil
}

type fakePipelineStore struct {
	pipelines map[string]pipeline.Pipeline
}

func (f *fakePipelineStore) Get(ctx context.Context, id string) (pipeline.Pipeline, error) {
	p, ok := f.pipelines[id]
	if !ok {
		return pipeline.Pipeline{}, scheduler.ErrNotFound
	}
	return p, nil
}
func (f *fakePipelineStore) List(ctx context.Context) ([]pipeline.Pipeline, error) {
	var out []pipeline.Pipeline
	for _, p := range f.pipelines {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakePipelineStore) ListByOrg(ctx context.Context, org string) ([]pipeline.Pipeline, error) {
	return f.List(ctx)
}
func (f *fakePipelineStore) Put(ctx context.Context, p pipeline.Pipeline) error {
	f.pipelines[p.ID] = p
	return nil
}
func (f *fakePipelineStore) Delete(ctx context.Context, id string) error {
	delete(f.pipelines, id)
	return nil
}
func (f *fakePipelineStore) GetWithSameSourceStream(ctx context.Context, p pipeline.Pipeline) (pipeline.Pipeline, error) {
	return pipeline.Pipeline{}, scheduler.ErrNotFound
}

func newDispatcherForPipelineTests(t *testing.T, store *fakePipelineStore) (*dispatcher, *fakeSchedStore) {
	t.Helper()
	mmdb := pipeline.NewMMDBGate()
	mmdb.MarkReady()
	cache := pipeline.NewCache(store, mmdb, true)
	if err := cache.LoadAll(context.Background()); err != nil {
		t.Fatalf("load all: %v", err)
	}
	sched := &fakeSchedStore{}
	return &dispatcher{schedStore: sched, pipelines: cache, maxRetries: 3, concurrency: 2}, sched
}

func TestDispatchPipelineTriggerKnownPipelineReschedulesShortly(t *testing.T) {
	store := &fakePipelineStore{pipelines: map[string]pipeline.Pipeline{
		"p1": {ID: "p1", Org: "o1", Name: "derived", Enabled: true, Source: pipeline.SourceScheduled},
	}}
	d, sched := newDispatcherForPipelineTests(t, store)

	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.ModulePipeline, ModuleKey: "p1", NextRunAt: 1000}
	start := time.Now().UnixMicro()
	if err := d.dispatchPipelineTrigger(context.Background(), trigger); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sched.updated) != 1 {
		t.Fatalf("expected one UpdateTrigger call, got %d", len(sched.updated))
	}
	got := sched.updated[0]
	if got.Status != scheduler.StatusWaiting {
		t.Fatalf("expected waiting status, got %s", got.Status)
	}
	if got.NextRunAt-start > int64(2*time.Minute/time.Microsecond) {
		t.Fatalf("expected a short reschedule, got next_run_at=%d", got.NextRunAt)
	}
}

func TestDispatchPipelineTriggerMissingPipelineSilencesForADay(t *testing.T) {
	store := &fakePipelineStore{pipelines: map[string]pipeline.Pipeline{}}
	d, sched := newDispatcherForPipelineTests(t, store)

	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.ModulePipeline, ModuleKey: "missing", NextRunAt: 1000}
	start := time.Now().UnixMicro()
	if err := d.dispatchPipelineTrigger(context.Background(), trigger); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got := sched.updated[0]
	if got.NextRunAt-start < int64(24*time.Hour/time.Microsecond) {
		t.Fatalf("expected day-long silence for a missing pipeline, got next_run_at=%d", got.NextRunAt)
	}
}

func TestDispatchOneRoutesUnknownModuleToError(t *testing.T) {
	d := &dispatcher{}
	trigger := scheduler.Trigger{Org: "o1", Module: scheduler.Module("synthetics"), ModuleKey: "x"}
	if err := d.dispatchOne(context.Background(), trigger); err == nil {
		t.Fatalf("expected an error for an unrecognized module")
	}
}
