package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/XANDER-CAGE/dating/internal/cache"
)

// Broker is the fan-out layer. Publish pushes an event onto the shared
// Redis channel; Run subscribes every process and routes incoming events
// to whatever recipients hold a connection in the local hub. The broker
// never touches business logic, so the transport can be swapped without
// disturbing discovery or matchmaking.
type Broker struct {
	cache  *cache.RedisCache
	hub    *Hub
	logger *slog.Logger

	eventChannel  string
	typingChannel string
}

// NewBroker wires the broker to the shared cache and the local hub.
func NewBroker(c *cache.RedisCache, hub *Hub, logger *slog.Logger, eventChannel, typingChannel string) *Broker {
	return &Broker{
		cache:         c,
		hub:           hub,
		logger:        logger,
		eventChannel:  eventChannel,
		typingChannel: typingChannel,
	}
}

// Publish broadcasts the event to every subscribed process. Typing
// indicators go out on their own channel with no delivery expectation;
// everything else shares the ordered event channel.
func (b *Broker) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	channel := b.eventChannel
	if ev.Type == EventUserTyping {
		channel = b.typingChannel
	}
	return b.cache.Publish(ctx, channel, raw)
}

// Run subscribes to both channels and routes events until ctx is done.
// Call it once per process, in its own goroutine.
func (b *Broker) Run(ctx context.Context) {
	sub := b.cache.Subscribe(ctx, b.eventChannel, b.typingChannel)
	defer sub.Close()

	ch := sub.Channel()
	b.logger.Info("fan-out broker subscribed",
		"events", b.eventChannel, "typing", b.typingChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.route([]byte(msg.Payload))
		}
	}
}

// route hands the raw event to every locally-connected recipient.
// Recipients connected elsewhere (or nowhere) are skipped silently.
func (b *Broker) route(raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		b.logger.Warn("dropping undecodable event", "err", err)
		return
	}

	for _, userID := range ev.Recipients {
		if b.hub.Send(userID, raw) {
			b.logger.Debug("event delivered", "type", ev.Type, "user_id", userID)
		}
	}
}
