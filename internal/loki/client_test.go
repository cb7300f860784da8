package loki

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordingHandler struct {
	enabled bool
	calls   int
}

func (r *recordingHandler) Enabled(context.Context, slog.Level) bool { return r.enabled }
func (r *recordingHandler) Handle(context.Context, slog.Record) error {
	r.calls++
	return nil
}
func (r *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recordingHandler) WithGroup(string) slog.Handler      { return r }

func TestFanoutDispatchesToEveryEnabledHandler(t *testing.T) {
	stdout := &recordingHandler{enabled: true}
	lokiSink := &recordingHandler{enabled: true}
	f := NewFanout(stdout, lokiSink)

	if !f.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected fanout to be enabled when a child handler is enabled")
	}
	if err := f.Handle(context.Background(), slog.Record{Message: "hello"}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if stdout.calls != 1 || lokiSink.calls != 1 {
		t.Fatalf("expected both handlers to receive the record, got stdout=%d loki=%d", stdout.calls, lokiSink.calls)
	}
}

func TestFanoutSkipsDisabledHandlers(t *testing.T) {
	quiet := &recordingHandler{enabled: false}
	loud := &recordingHandler{enabled: true}
	f := NewFanout(quiet, loud)

	if err := f.Handle(context.Background(), slog.Record{Message: "hello"}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if quiet.calls != 0 {
		t.Fatalf("expected disabled handler to be skipped, got %d calls", quiet.calls)
	}
	if loud.calls != 1 {
		t.Fatalf("expected enabled handler to run, got %d calls", loud.calls)
	}
}

func TestFanoutWithAttrsPropagatesToAllHandlers(t *testing.T) {
	f := NewFanout(&recordingHandler{enabled: true}, &recordingHandler{enabled: true})
	next, ok := f.WithAttrs([]slog.Attr{slog.String("org", "acme")}).(*Fanout)
	if !ok {
		t.Fatal("expected WithAttrs to return a *Fanout")
	}
	if len(next.handlers) != 2 {
		t.Fatalf("expected 2 handlers after WithAttrs, got %d", len(next.handlers))
	}
}

func TestHandlerPushesRecordAsGzippedJSON(t *testing.T) {
	var gotEncoding, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotEncoding = req.Header.Get("Content-Encoding")
		gotPath = req.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL, map[string]string{"service": "ingester"})
	h := NewHandler(client, "ingester")
	rec := slog.Record{Message: "started"}
	rec.AddAttrs(slog.String("addr", ":5090"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if gotEncoding != "gzip" {
		t.Fatalf("expected gzip content-encoding, got %q", gotEncoding)
	}
	if gotPath != "/loki/api/v1/push" {
		t.Fatalf("expected push path, got %q", gotPath)
	}
}
