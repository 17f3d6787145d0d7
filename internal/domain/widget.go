package domain

// WidgetKind selects the rendering strategy for a widget. Kinds are resolved
// through a static registry at startup; there is no dynamic loading.
type WidgetKind string

const (
	WidgetMetric  WidgetKind = "metric"
	WidgetSystem  WidgetKind = "system"
	WidgetBalance WidgetKind = "balance"
	WidgetOrders  WidgetKind = "orders"
	WidgetLog     WidgetKind = "log"
	WidgetStatus  WidgetKind = "status"
)

// IsValid reports whether k is a known widget kind.
func (k WidgetKind) IsValid() bool {
	switch k {
	case WidgetMetric, WidgetSystem, WidgetBalance, WidgetOrders, WidgetLog, WidgetStatus:
		return true
	}
	return false
}

// DefaultChannel returns the channel a widget kind consumes.
func (k WidgetKind) DefaultChannel() Channel {
	switch k {
	case WidgetMetric:
		return ChannelTelemetry
	case WidgetSystem:
		return ChannelSystem
	case WidgetBalance, WidgetOrders:
		return ChannelBalance
	case WidgetLog:
		return ChannelLog
	default:
		return ChannelStatus
	}
}

// GridPos is a widget position in grid units. Coordinates are integers >= 0.
type GridPos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GridSize is a widget footprint in grid units.
type GridSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// DefaultSize returns the initial footprint for a widget kind.
func (k WidgetKind) DefaultSize() GridSize {
	switch k {
	case WidgetLog:
		return GridSize{W: 16, H: 8}
	case WidgetOrders, WidgetBalance:
		return GridSize{W: 12, H: 6}
	case WidgetSystem:
		return GridSize{W: 8, H: 6}
	default:
		return GridSize{W: 6, H: 4}
	}
}

// WidgetConfig is the persisted form of a widget: everything needed to
// recreate it on load. The mounted instance is owned by the canvas registry;
// this config is owned by the persistence adapter.
type WidgetConfig struct {
	ID        string     `json:"id"`
	Kind      WidgetKind `json:"kind"`
	Pos       GridPos    `json:"pos"`
	Size      GridSize   `json:"size"`
	Channel   Channel    `json:"channel"`
	TargetKey string     `json:"target_key,omitempty"` // empty = adopt first available key
}

// LayoutConfig is the whole persisted arrangement.
type LayoutConfig struct {
	Version int            `json:"version"`
	Widgets []WidgetConfig `json:"widgets"`
}

// LayoutVersion is the current LayoutConfig schema version.
const LayoutVersion = 1
