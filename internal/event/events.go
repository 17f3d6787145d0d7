package event

import "dash_go/internal/domain"

// Type discriminates dispatcher inbox events.
type Type int

const (
	TypeChannelMessage Type = iota + 1
	TypeStatus
	TypePointer
	TypeCommand
	TypeTick
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case TypeChannelMessage:
		return "CHANNEL_MESSAGE"
	case TypeStatus:
		return "STATUS"
	case TypePointer:
		return "POINTER"
	case TypeCommand:
		return "COMMAND"
	case TypeTick:
		return "TICK"
	default:
		return "UNKNOWN"
	}
}

// Event is anything that can travel through the dispatcher inbox. All core
// state mutation happens on the dispatcher goroutine, so producers only ever
// hand events over; they never touch cache or canvas state directly.
type Event interface {
	GetType() Type
}

// ChannelMessageEvent carries one raw transport message for a channel.
type ChannelMessageEvent struct {
	Channel    domain.Channel
	Data       []byte
	ReceivedAt int64 // epoch milliseconds
}

func (e *ChannelMessageEvent) GetType() Type { return TypeChannelMessage }

// StatusEvent carries a channel connection state transition.
type StatusEvent struct {
	Update domain.StatusUpdate
}

func (e *StatusEvent) GetType() Type { return TypeStatus }

// PointerPhase is the stage of a pointer/touch gesture.
type PointerPhase int

const (
	PhaseDown PointerPhase = iota + 1
	PhaseMove
	PhaseUp
)

// Touch is one active touch point in viewport pixels.
type Touch struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerEvent is a pointer/touch gesture sample from the view client.
// Coordinates are viewport pixels; OriginX/OriginY locate the canvas root in
// the viewport so the engine can invert the transform.
type PointerEvent struct {
	Phase        PointerPhase
	X, Y         float64
	OriginX      float64
	OriginY      float64
	Touches      []Touch
	WidgetID     string // widget under the pointer, "" for canvas background
	CloseControl bool   // pointer went down on the widget's close control
}

func (e *PointerEvent) GetType() Type { return TypePointer }

// CommandAction enumerates view-client commands.
type CommandAction string

const (
	ActionAddWidget     CommandAction = "add"
	ActionDuplicate     CommandAction = "duplicate"
	ActionRemoveWidget  CommandAction = "remove"
	ActionResizeWidget  CommandAction = "resize"
	ActionClearAll      CommandAction = "clear"
	ActionReplaceLayout CommandAction = "layout"
	ActionSetScale      CommandAction = "zoom"
	ActionSetTheme      CommandAction = "theme"
	ActionViewport      CommandAction = "viewport"
)

// CommandEvent is an explicit user command from the view client.
type CommandEvent struct {
	Action    CommandAction
	Kind      domain.WidgetKind // add
	Kinds     []domain.WidgetKind
	WidgetID  string // remove, duplicate, resize
	TargetKey string // add
	Scale     float64
	Theme     string
	Width     int // viewport (pixels), resize (grid units)
	Height    int
	Configs   []domain.WidgetConfig // layout
}

func (e *CommandEvent) GetType() Type { return TypeCommand }

// TickEvent fires a scheduled timer. The dispatcher resolves the timer id to
// its callback; ticks for cancelled timers are silently ignored.
type TickEvent struct {
	TimerID string
}

func (e *TickEvent) GetType() Type { return TypeTick }

// CacheUpdate is the bus payload published after a channel message has been
// merged into the cache. Keys lists the cache keys the message changed;
// subscribers wanting diffs read it, everyone else re-derives from the cache.
type CacheUpdate struct {
	Channel domain.Channel `json:"channel"`
	Keys    []string       `json:"keys,omitempty"`
}
