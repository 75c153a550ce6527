// Package event provides the in-process bus carrying post-commit catalogue
// events. The outbound updater subscribes to it to propagate item changes
// to the delivery backend.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicMediaItem carries MediaItemEvent payloads. Published after the
// transaction which changed the item has committed.
const TopicMediaItem = "mediaitem.changed"

// MediaItemEvent signals that a media item or its view permission changed.
type MediaItemEvent struct {
	ItemID string `json:"item_id"`
}

// Bus is an in-process publish/subscribe bus.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    *slog.Logger
}

// NewBus creates a bus. Published messages are buffered so publishers do
// not block on slow subscribers.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NewSlogLogger(logger)),
		log: logger.With("component", "event_bus"),
	}
}

// PublishMediaItem announces a change to a media item.
func (b *Bus) PublishMediaItem(itemID string) error {
	payload, err := json.Marshal(MediaItemEvent{ItemID: itemID})
	if err != nil {
		return fmt.Errorf("marshal media item event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(TopicMediaItem, msg); err != nil {
		return fmt.Errorf("publish media item event: %w", err)
	}
	return nil
}

// SubscribeMediaItems returns a channel of media item events. The channel
// closes when ctx is cancelled.
func (b *Bus) SubscribeMediaItems(ctx context.Context) (<-chan *message.Message, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicMediaItem)
	if err != nil {
		return nil, fmt.Errorf("subscribe media item events: %w", err)
	}
	return messages, nil
}

// DecodeMediaItemEvent parses a bus message into a MediaItemEvent.
func DecodeMediaItemEvent(msg *message.Message) (MediaItemEvent, error) {
	var ev MediaItemEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return MediaItemEvent{}, fmt.Errorf("decode media item event: %w", err)
	}
	return ev, nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
