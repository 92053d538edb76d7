package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisChannel carries room events between API and worker processes.
const RedisChannel = "agrolink:realtime"

type bridgeMessage struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroadcaster publishes room events to Redis so every API process can
// deliver them to its own clients. It is safe to use in processes without a
// hub, such as the background worker.
type RedisBroadcaster struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
}

func NewRedisBroadcaster(rdb *redis.Client, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, hub: hub, channel: RedisChannel}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, room, event string, data interface{}) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(bridgeMessage{Room: room, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode bridge message: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, room, err)
	}
	return nil
}

// Run relays published events to the local hub until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	if b.hub == nil {
		return fmt.Errorf("redis broadcaster has no hub to deliver to")
	}
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	log.Printf("Relaying realtime events from Redis channel %s", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m bridgeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Printf("Failed to decode realtime event from Redis: %v", err)
				continue
			}
			b.hub.Deliver(m.Room, m.Payload)
		}
	}
}
