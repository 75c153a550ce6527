package outbound

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/uisautomation/mediaplatform/internal/event"
)

type itemEventSource interface {
	SubscribeMediaItems(ctx context.Context) (<-chan *message.Message, error)
}

// Run consumes media item events from the bus and syncs each changed item
// to the CDB. Sync failures are logged and the message acked anyway: the
// next change to the item, or a sync_all reconcile, repairs the drift.
// Returns when ctx is cancelled.
func (s *Service) Run(ctx context.Context, bus itemEventSource) error {
	messages, err := bus.SubscribeMediaItems(ctx)
	if err != nil {
		return err
	}

	for msg := range messages {
		ev, err := event.DecodeMediaItemEvent(msg)
		if err != nil {
			s.log.ErrorContext(ctx, "dropping malformed item event", "error", err)
			msg.Ack()
			continue
		}

		if err := s.SyncItem(ctx, ev.ItemID); err != nil {
			s.log.ErrorContext(ctx, "item sync failed", "item_id", ev.ItemID, "error", err)
		}
		msg.Ack()
	}
	return nil
}
