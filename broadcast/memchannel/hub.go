// Package memchannel emulates tabs sharing a channel inside one process.
package memchannel

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/broadcast"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

var _ broadcast.Channel = (*Channel)(nil)

// Hub connects every Channel opened on it under the same name.
type Hub struct {
	lock     sync.RWMutex
	channels map[string]map[*Channel]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Channel]struct{}),
	}
}

// Open joins the named channel. Its signature matches broadcast.Opener.
func (h *Hub) Open(name string) (broadcast.Channel, error) {
	c := &Channel{hub: h, name: name}

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.channels[name] == nil {
		h.channels[name] = make(map[*Channel]struct{})
	}
	h.channels[name][c] = struct{}{}
	return c, nil
}

// Listeners is the number of open channels with the given name.
func (h *Hub) Listeners(name string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.channels[name])
}

func (h *Hub) peers(sender *Channel) []*Channel {
	h.lock.RLock()
	defer h.lock.RUnlock()

	peers := make([]*Channel, 0, len(h.channels[sender.name]))
	for c := range h.channels[sender.name] {
		if c != sender {
			peers = append(peers, c)
		}
	}
	return peers
}

func (h *Hub) leave(c *Channel) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.channels[c.name], c)
	if len(h.channels[c.name]) == 0 {
		delete(h.channels, c.name)
	}
}

// Channel is one tab's end of a hub channel. Delivery is synchronous on the
// sender's goroutine; a peer without a handler drops the event.
type Channel struct {
	hub  *Hub
	name string

	lock    sync.RWMutex
	handler func(authmodel.BroadcastEvent)
	closed  bool
}

func (c *Channel) Send(_ context.Context, event authmodel.BroadcastEvent) error {
	c.lock.RLock()
	closed := c.closed
	c.lock.RUnlock()
	if closed {
		return autherrors.ErrChannelClosed
	}

	for _, peer := range c.hub.peers(c) {
		peer.deliver(event)
	}
	return nil
}

func (c *Channel) OnReceive(handler func(authmodel.BroadcastEvent)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.handler = handler
}

func (c *Channel) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.lock.Unlock()

	c.hub.leave(c)
	return nil
}

func (c *Channel) deliver(event authmodel.BroadcastEvent) {
	c.lock.RLock()
	handler := c.handler
	closed := c.closed
	c.lock.RUnlock()

	if closed || handler == nil {
		return
	}
	handler(event)
}
