// Package loki ships structured log records to a Loki push endpoint.
// Handler satisfies slog.Handler directly, so each service binary can
// fan its ambient logger out to stdout JSON and Loki at once via
// Fanout when a Loki endpoint is configured.
package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Entry represents a single log line for Loki.
type Entry struct {
  Timestamp time.Time       `json:"ts"`
  Line      string          `json:"line"`
  Labels    map[string]string `json:"labels,omitempty"`
}

// Batch pushes multiple entries sharing a label set.
type Batch struct { Entries []Entry }

// Client minimal Loki HTTP client (push API).
type Client struct {
  Endpoint string
  HTTP     *http.Client
  StaticLabels map[string]string
}

func New(endpoint string, static map[string]string) *Client {
  return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 5 * time.Second}, StaticLabels: static}
}

// Push converts entries into Loki /loki/api/v1/push schema.
func (c *Client) Push(batch Batch) error {
  streams := []map[string]interface{}{}
  grouped := map[string][][2]string{}
  for _, e := range batch.Entries {
    labels := map[string]string{}
    for k,v := range c.StaticLabels { labels[k] = v }
    for k,v := range e.Labels { labels[k] = v }
    // Serialize label set into Loki's {k="v",...}
    labelStr := "{"
    first := true
    for k,v := range labels { if !first { labelStr += "," }; first = false; labelStr += k+"=\""+v+"\"" }
    labelStr += "}"
    ts := e.Timestamp.UTC().UnixNano()
    grouped[labelStr] = append(grouped[labelStr], [2]string{formatNano(ts), e.Line})
  }
  for l, values := range grouped { streams = append(streams, map[string]interface{}{"stream": l, "values": values}) }
  body := map[string]interface{}{"streams": streams}
  buf := &bytes.Buffer{}
  gz := gzip.NewWriter(buf)
  if err := json.NewEncoder(gz).Encode(body); err != nil { return err }
  if err := gz.Close(); err != nil { return err }
  req, _ := http.NewRequest("POST", c.Endpoint+"/loki/api/v1/push", buf)
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("Content-Encoding", "gzip")
  resp, err := c.HTTP.Do(req)
  if err != nil { return err }
  resp.Body.Close()
  return nil
}

func formatNano(n int64) string { return strconv.FormatInt(n, 10) }

// Handler adapts a Client into an slog.Handler, so it can be attached
// with slog.New(loki.NewHandler(client, "ingest")) alongside (or
// instead of) the default text handler.
type Handler struct {
	client *Client
	source string
	attrs  map[string]string
}

func NewHandler(client *Client, source string) *Handler {
	return &Handler{client: client, source: source, attrs: map[string]string{}}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	labels := map[string]string{"source": h.source, "level": r.Level.String()}
	for k, v := range h.attrs {
		labels[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		labels[a.Key] = a.Value.String()
		return true
	})
	return h.client.Push(Batch{Entries: []Entry{{Timestamp: r.Time, Line: r.Message, Labels: labels}}})
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &Handler{client: h.client, source: h.source, attrs: map[string]string{}}
	for k, v := range h.attrs {
		next.attrs[k] = v
	}
	for _, a := range attrs {
		next.attrs[a.Key] = a.Value.String()
	}
	return next
}

func (h *Handler) WithGroup(name string) slog.Handler { return h }

// Fanout dispatches every record to each wrapped handler, so a logger
// can write local JSON lines and push to Loki from the same call. A
// handler that isn't Enabled for a record's level is skipped; the
// first Handle error among the enabled handlers is returned, but
// every enabled handler still runs.
type Fanout struct {
	handlers []slog.Handler
}

func NewFanout(handlers ...slog.Handler) *Fanout {
	return &Fanout{handlers: handlers}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: next}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: next}
}
