// Package redischannel shares the cross-tab channel between processes over
// Redis Pub/Sub.
package redischannel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/broadcast"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ broadcast.Channel = (*Channel)(nil)

// Channel publishes events to a Redis channel and receives those of other
// tabs. Redis echoes messages to the publisher, so every event carries the
// sender's origin and the receive loop drops its own.
type Channel struct {
	client *redis.Client
	name   string
	origin string
	logger zerolog.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup

	lock    sync.RWMutex
	handler func(authmodel.BroadcastEvent)
	closed  bool
}

type Option func(*Channel)

// WithOrigin sets the id stamped on sent events. Defaults to a random uuid.
func WithOrigin(origin string) Option {
	return func(c *Channel) {
		c.origin = origin
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// Open subscribes to the named channel and waits for Redis to confirm the
// subscription, so a failing server is reported here rather than on first use.
func Open(ctx context.Context, client *redis.Client, name string, options ...Option) (*Channel, error) {
	if client == nil {
		return nil, errors.Wrap(autherrors.ErrChannelUnavailable, "[redischannel.Open] Redis client is required")
	}

	c := &Channel{
		client: client,
		name:   name,
		origin: uuid.NewString(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}

	c.pubsub = client.Subscribe(ctx, name)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		return nil, errors.Wrap(err, "[redischannel.Open] pubsub.Receive")
	}

	messages := c.pubsub.Channel()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range messages {
			c.receive(msg.Payload)
		}
	}()
	return c, nil
}

// Opener adapts Open to broadcast.Opener.
func Opener(ctx context.Context, client *redis.Client, options ...Option) broadcast.Opener {
	return func(name string) (broadcast.Channel, error) {
		return Open(ctx, client, name, options...)
	}
}

func (c *Channel) Origin() string {
	return c.origin
}

func (c *Channel) Send(ctx context.Context, event authmodel.BroadcastEvent) error {
	c.lock.RLock()
	closed := c.closed
	c.lock.RUnlock()
	if closed {
		return autherrors.ErrChannelClosed
	}

	event.Origin = c.origin
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "[Channel.Send] json.Marshal")
	}
	if err := c.client.Publish(ctx, c.name, payload).Err(); err != nil {
		return errors.Wrap(err, "[Channel.Send] client.Publish")
	}
	return nil
}

func (c *Channel) OnReceive(handler func(authmodel.BroadcastEvent)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.handler = handler
}

// Close unsubscribes and waits for the receive loop to stop.
func (c *Channel) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.lock.Unlock()

	err := c.pubsub.Close()
	c.wg.Wait()
	if err != nil {
		return errors.Wrap(err, "[Channel.Close] pubsub.Close")
	}
	return nil
}

func (c *Channel) receive(payload string) {
	var event authmodel.BroadcastEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.logger.Err(err).Str("channel", c.name).Msg("Malformed broadcast event dropped")
		return
	}
	if event.Origin == c.origin {
		return
	}

	c.lock.RLock()
	handler := c.handler
	c.lock.RUnlock()
	if handler != nil {
		handler(event)
	}
}
