package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Broadcaster tells other tabs about logins and logouts.
//
// It is best effort: when the channel cannot be opened the broadcaster logs a
// warning and silently does nothing for the rest of its life. Each event type
// has a single callback slot; registering again replaces the previous one.
type Broadcaster struct {
	name    string
	nowFunc func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics

	channel Channel

	lock     sync.RWMutex
	onLogout func()
	onLogin  func()
	closed   bool
}

type Option func(*Broadcaster)

func WithChannelName(name string) Option {
	return func(b *Broadcaster) {
		b.name = name
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

// New opens the shared channel with open. A nil opener or a failing one
// leaves the broadcaster inert.
func New(open Opener, options ...Option) *Broadcaster {
	b := &Broadcaster{
		name:    DefaultChannelName,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(b)
	}

	if open == nil {
		b.logger.Warn().Msg("Cross-tab channel not supported, broadcasting disabled")
		return b
	}

	channel, err := open(b.name)
	if err != nil {
		b.logger.Warn().Err(err).Str("channel", b.name).Msg("Cross-tab channel unavailable, broadcasting disabled")
		return b
	}
	b.channel = channel
	channel.OnReceive(b.handle)
	return b
}

// Available reports whether events are actually being exchanged.
func (b *Broadcaster) Available() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.channel != nil && !b.closed
}

func (b *Broadcaster) BroadcastLogout(ctx context.Context) {
	b.send(ctx, authmodel.EventLogout)
}

func (b *Broadcaster) BroadcastLogin(ctx context.Context) {
	b.send(ctx, authmodel.EventLogin)
}

func (b *Broadcaster) OnLogout(callback func()) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return
	}
	b.onLogout = callback
}

func (b *Broadcaster) OnLogin(callback func()) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return
	}
	b.onLogin = callback
}

// Close releases the channel and the callbacks. Calling it again is a no-op.
func (b *Broadcaster) Close() error {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return nil
	}
	b.closed = true
	b.onLogout = nil
	b.onLogin = nil
	channel := b.channel
	b.lock.Unlock()

	if channel == nil {
		return nil
	}
	if err := channel.Close(); err != nil {
		b.logger.Err(err).Msg("Cross-tab channel close failed")
	}
	return nil
}

func (b *Broadcaster) send(ctx context.Context, eventType authmodel.EventType) {
	if !b.Available() {
		return
	}

	event := authmodel.BroadcastEvent{
		Type:      eventType,
		Timestamp: b.nowFunc().UnixMilli(),
	}
	if err := b.channel.Send(ctx, event); err != nil {
		if autherrors.Is(err, autherrors.ErrChannelClosed) {
			return
		}
		b.logger.Err(err).Str("type", string(eventType)).Msg("Broadcast failed")
		return
	}
	b.metrics.ObserveBroadcastSent(string(eventType))
}

func (b *Broadcaster) handle(event authmodel.BroadcastEvent) {
	b.metrics.ObserveBroadcastReceived(string(event.Type))

	b.lock.RLock()
	var callback func()
	switch event.Type {
	case authmodel.EventLogout:
		b.logger.Info().Msg("Received logout event from another tab")
		callback = b.onLogout
	case authmodel.EventLogin:
		b.logger.Info().Msg("Received login event from another tab")
		callback = b.onLogin
	default:
		// AUTH_REFRESH and unknown types: every tab refreshes on its own.
	}
	b.lock.RUnlock()

	if callback != nil {
		callback()
	}
}
