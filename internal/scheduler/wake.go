package scheduler

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

const wakeChannel = "scheduler:wake"

// Wake broadcasts coordination events so other nodes can react without
// polling. Service.Delete publishes a "delete" event for realtime
// triggers; nothing else publishes, and Subscribe has no caller in
// this module.
type Wake struct {
	rdb *redis.Client
}

func NewWake(rdb *redis.Client) *Wake {
	return &Wake{rdb: rdb}
}

type WakeEvent struct {
	Kind      string `json:"kind"`
	Org       string `json:"org"`
	Module    Module `json:"module"`
	ModuleKey string `json:"module_key"`
}

func (w *Wake) Publish(ctx context.Context, ev WakeEvent) error {
	if w.rdb == nil {
		return nil
	}
	if err := w.rdb.Publish(ctx, wakeChannel, encodeWakeEvent(ev)).Err(); err != nil {
		return oerrors.Wrap(oerrors.Storage, "wake_publish", "publish scheduler wake event", err)
	}
	return nil
}

func (w *Wake) Subscribe(ctx context.Context) (<-chan WakeEvent, func() error) {
	sub := w.rdb.Subscribe(ctx, wakeChannel)
	ch := make(chan WakeEvent, 16)
	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			ev, err := decodeWakeEvent(msg.Payload)
			if err != nil {
				continue
			}
			ch <- ev
		}
	}()
	return ch, sub.Close
}

func encodeWakeEvent(ev WakeEvent) string {
	b, err := sonic.Marshal(ev)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeWakeEvent(payload string) (WakeEvent, error) {
	var ev WakeEvent
	if err := sonic.Unmarshal([]byte(payload), &ev); err != nil {
		return WakeEvent{}, oerrors.Wrap(oerrors.Format, "decode_wake_event", "decode wake event payload", err)
	}
	return ev, nil
}
