package config

// BroadcastConfig selects the cross-tab channel.
type BroadcastConfig interface {
	GetBroadcastDriver() string
	GetChannelName() string
}

type Broadcast struct {
	Driver      string `env:"BROADCAST_DRIVER, default=memory"`
	ChannelName string `env:"BROADCAST_CHANNEL, default=auth_channel"`
}

var _ BroadcastConfig = Broadcast{}

func (b Broadcast) GetBroadcastDriver() string { return b.Driver }
func (b Broadcast) GetChannelName() string     { return b.ChannelName }
