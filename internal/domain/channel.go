package domain

// Channel identifies one independently-managed stream of messages.
type Channel string

const (
	ChannelTelemetry Channel = "telemetry"
	ChannelBalance   Channel = "balance"
	ChannelSystem    Channel = "system"
	ChannelLog       Channel = "log"

	// ChannelStatus is an internal channel carrying connection state
	// transitions; it never arrives over a transport.
	ChannelStatus Channel = "status"
)

// StreamChannels lists the channels that arrive over a transport.
var StreamChannels = []Channel{ChannelTelemetry, ChannelBalance, ChannelSystem, ChannelLog}

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelTelemetry, ChannelBalance, ChannelSystem, ChannelLog, ChannelStatus:
		return true
	}
	return false
}

// ChannelState represents the connection lifecycle of a channel.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateConnected
	StateDisconnected
)

// String returns the string representation of ChannelState
func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// StatusUpdate is published on ChannelStatus whenever a channel's
// connection state changes.
type StatusUpdate struct {
	Channel Channel      `json:"channel"`
	State   ChannelState `json:"state"`
	At      int64        `json:"at"` // epoch seconds
}
