package widget

import (
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/service"
)

// Scheduler registers periodic callbacks that run on the dispatcher
// goroutine. The returned cancel func is idempotent.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) (cancel func())
}

// Env bundles the dependencies a widget needs. OnRender pushes a fresh
// render state toward the view clients; widgets call it after every
// update they absorb. LogWindow is the configured retention of log
// widgets; zero means the built-in default.
type Env struct {
	Cache     *service.StreamCache
	Bus       *event.Bus
	Scheduler Scheduler
	OnRender  func(id string, state RenderState)
	LogWindow int
}

// Field is one labelled value in a widget body.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Badge string `json:"badge,omitempty"`
}

// RenderState is the complete drawable state of one widget, sent to view
// clients verbatim. Fields carry tabular content; Lines carry log text.
type RenderState struct {
	ID      string            `json:"id"`
	Kind    domain.WidgetKind `json:"kind"`
	Title   string            `json:"title"`
	Fields  []Field           `json:"fields,omitempty"`
	Lines   []string          `json:"lines,omitempty"`
	Updated time.Time         `json:"updated"`
}

// Widget is a mounted dashboard tile. Mount and Destroy bracket its
// lifetime; Update absorbs one published payload between them. All
// methods run on the dispatcher goroutine.
type Widget interface {
	ID() string
	Config() domain.WidgetConfig
	Mount(env Env)
	Update(payload any)
	Destroy()
	Render() RenderState
}

// Factory builds an unmounted widget from its persisted config.
type Factory func(cfg domain.WidgetConfig) Widget

// BuiltinRegistry maps every known widget kind to its factory. The
// registry is static: kinds are compiled in, not discovered.
var BuiltinRegistry = map[domain.WidgetKind]Factory{
	domain.WidgetMetric:  func(cfg domain.WidgetConfig) Widget { return newMetricWidget(cfg) },
	domain.WidgetSystem:  func(cfg domain.WidgetConfig) Widget { return newSystemWidget(cfg) },
	domain.WidgetBalance: func(cfg domain.WidgetConfig) Widget { return newBalanceWidget(cfg) },
	domain.WidgetOrders:  func(cfg domain.WidgetConfig) Widget { return newOrdersWidget(cfg) },
	domain.WidgetLog:     func(cfg domain.WidgetConfig) Widget { return newLogWidget(cfg) },
	domain.WidgetStatus:  func(cfg domain.WidgetConfig) Widget { return newStatusWidget(cfg) },
}

// New builds a widget for the config's kind.
func New(cfg domain.WidgetConfig) (Widget, error) {
	factory, ok := BuiltinRegistry[cfg.Kind]
	if !ok {
		return nil, domain.ErrUnknownWidgetKind
	}
	return factory(cfg), nil
}
