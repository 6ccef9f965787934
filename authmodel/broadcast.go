package authmodel

// EventType names a cross-tab auth notification.
type EventType string

const (
	EventLogout  EventType = "AUTH_LOGOUT"
	EventLogin   EventType = "AUTH_LOGIN"
	EventRefresh EventType = "AUTH_REFRESH"
)

// BroadcastEvent is the message exchanged between tabs.
type BroadcastEvent struct {
	Type EventType `json:"type"`
	// Timestamp is Unix milliseconds at send time.
	Timestamp int64 `json:"timestamp"`
	// Origin identifies the sending tab so transports that echo to the sender can drop it.
	Origin string `json:"origin,omitempty"`
}
