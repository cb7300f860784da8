package scheduler

import "context"

// Service composes a Store with the cross-node wake channel so
// realtime-alert deletes fan out a coordination event, without every
// caller remembering to do it.
type Service struct {
	Store Store
	Wake  *Wake
}

func NewService(store Store, wake *Wake) *Service {
	return &Service{Store: store, Wake: wake}
}

func (s *Service) Delete(ctx context.Context, org string, module Module, key string) error {
	t, err := s.Store.Get(ctx, org, module, key)
	if err != nil && err != ErrNotFound {
		return err
	}
	if err := s.Store.Delete(ctx, org, module, key); err != nil {
		return err
	}
	if err == nil && t.IsRealtime && s.Wake != nil {
		return s.Wake.Publish(ctx, WakeEvent{Kind: "delete", Org: org, Module: module, ModuleKey: key})
	}
	return nil
}
