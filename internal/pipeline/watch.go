package pipeline

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

const watchChannel = "pipeline:watch"

type eventKind string

const (
	eventPut    eventKind = "put"
	eventDelete eventKind = "delete"
)

type watchEvent struct {
	Kind eventKind `json:"kind"`
	ID   string    `json:"id"`
}

// Watcher publishes and consumes pipeline mutation events so every
// node's Cache stays in sync without polling the store.
type Watcher struct {
	rdb *redis.Client
}

func NewWatcher(rdb *redis.Client) *Watcher {
	return &Watcher{rdb: rdb}
}

func (w *Watcher) EmitPut(ctx context.Context, id string) error {
	return w.publish(ctx, watchEvent{Kind: eventPut, ID: id})
}

func (w *Watcher) EmitDelete(ctx context.Context, id string) error {
	return w.publish(ctx, watchEvent{Kind: eventDelete, ID: id})
}

func (w *Watcher) publish(ctx context.Context, ev watchEvent) error {
	if w.rdb == nil {
		return nil
	}
	b, err := sonic.Marshal(ev)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "encode_watch_event", "encode pipeline watch event", err)
	}
	if err := w.rdb.Publish(ctx, watchChannel, b).Err(); err != nil {
		return oerrors.Wrap(oerrors.Storage, "publish_watch_event", "publish pipeline watch event", err)
	}
	return nil
}

// Run subscribes to the watch channel and applies each event to cache
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, cache *Cache) error {
	sub := w.rdb.Subscribe(ctx, watchChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev watchEvent
			if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			switch ev.Kind {
			case eventPut:
				_ = cache.ApplyPut(ctx, ev.ID)
			case eventDelete:
				cache.ApplyDelete(ev.ID)
			}
		}
	}
}
