package broadcast

import (
	"context"

	"github.com/jrsteele09/go-auth-client/authmodel"
)

// DefaultChannelName is the channel every tab of one origin shares.
const DefaultChannelName = "auth_channel"

// Channel is a named message channel shared by tabs. A channel never delivers
// an event back to the tab that sent it.
type Channel interface {
	Send(ctx context.Context, event authmodel.BroadcastEvent) error
	// OnReceive replaces the handler for events sent by other tabs.
	OnReceive(handler func(authmodel.BroadcastEvent))
	Close() error
}

// Opener opens the named channel. It returns an error when the transport is
// unavailable in this environment.
type Opener func(name string) (Channel, error)
