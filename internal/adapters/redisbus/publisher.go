// Package redisbus fans broadcast messages out over Redis pub/sub so other
// processes can follow a preset without their own websocket.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/valuebot/internal/application/broadcast"
)

// DefaultPrefix namespaces the channels.
const DefaultPrefix = "valuebot"

// Client is the part of *redis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher publishes each message on <prefix>:preset:<id>.
type Publisher struct {
	client Client
	prefix string
}

var _ broadcast.Publisher = (*Publisher)(nil)

// NewPublisher returns a publisher. An empty prefix means DefaultPrefix.
func NewPublisher(client Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Channel returns the channel of a preset.
func (p *Publisher) Channel(presetID string) string {
	return p.prefix + ":preset:" + presetID
}

// Publish sends msg as JSON. Having no listeners is not an error.
func (p *Publisher) Publish(ctx context.Context, msg broadcast.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redisbus.Publish: marshal: %w", err)
	}
	channel := p.Channel(msg.PresetID)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redisbus.Publish: %s: %w", channel, err)
	}
	return nil
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisbus.Dial: %s: %w", addr, err)
	}
	return client, nil
}
