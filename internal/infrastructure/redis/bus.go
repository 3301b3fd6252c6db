package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/services/realtime"
)

// Bus relays realtime frames between server instances over Redis pub/sub.
type Bus struct {
	client  *goRedis.Client
	channel string
	logger  *zap.Logger
}

// NewBus binds a bus to a pub/sub channel.
func NewBus(client *goRedis.Client, channel string, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

// Publish implements realtime.Relay.
func (b *Bus) Publish(ctx context.Context, msg realtime.Relayed) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode relayed frame: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes to the channel and hands every relayed frame to sink until
// ctx is done.
func (b *Bus) Run(ctx context.Context, sink func(realtime.Relayed)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime relay subscribed", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			msg, err := decode(m.Payload)
			if err != nil {
				b.logger.Warn("dropping undecodable relayed frame", zap.Error(err))
				continue
			}
			sink(msg)
		}
	}
}

func decode(payload string) (realtime.Relayed, error) {
	var msg realtime.Relayed
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return realtime.Relayed{}, err
	}
	if msg.Origin == "" {
		return realtime.Relayed{}, fmt.Errorf("relayed frame without origin")
	}
	return msg, nil
}
