// Package redisbus relays encoded room frames between chat-relay processes
// over a single Redis pub/sub channel.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type envelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// DeliverFunc hands a remote frame to local room members.
type DeliverFunc func(room string, frame []byte) int

type Bus struct {
	client  *redis.Client
	channel string
	origin  string
}

// New connects to Redis and verifies the connection. origin identifies this
// process; frames it published itself are not delivered back.
func New(ctx context.Context, cfg Config, origin string) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.Channel, origin), nil
}

func NewWithClient(client *redis.Client, channel, origin string) *Bus {
	if channel == "" {
		channel = "chat-relay:events"
	}
	return &Bus{client: client, channel: channel, origin: origin}
}

func (b *Bus) Publish(ctx context.Context, room string, frame []byte) error {
	data, err := encode(b.origin, room, frame)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

// Run subscribes and delivers remote frames until ctx is done.
func (b *Bus) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	slog.Info("redisbus.subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.handle(msg.Payload, deliver)
		}
	}
}

func (b *Bus) handle(payload string, deliver DeliverFunc) {
	env, err := decode(payload)
	if err != nil {
		slog.Warn("redisbus.decode failed", "err", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	n := deliver(env.Room, env.Frame)
	slog.Debug("redisbus.deliver", "room", env.Room, "origin", env.Origin, "delivered", n)
}

func (b *Bus) Close() error {
	return b.client.Close()
}

func encode(origin, room string, frame []byte) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Room: room, Frame: frame})
}

func decode(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return envelope{}, err
	}
	if env.Room == "" || len(env.Frame) == 0 {
		return envelope{}, errors.New("incomplete envelope")
	}
	return env, nil
}
