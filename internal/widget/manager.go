package widget

import (
	"log/slog"
	"sort"

	"dash_go/internal/domain"
	"dash_go/internal/event"
)

// channelFor resolves which bus channel a widget listens on: an explicit
// config override, else the kind's default.
func channelFor(cfg domain.WidgetConfig) domain.Channel {
	if cfg.Channel != "" {
		return cfg.Channel
	}
	return cfg.Kind.DefaultChannel()
}

// Manager owns the mounted widget set and the bus subscriptions that feed
// it. All methods run on the dispatcher goroutine.
type Manager struct {
	env     Env
	widgets map[string]Widget
	subs    map[string]*event.Subscription
}

func NewManager(env Env) *Manager {
	return &Manager{
		env:     env,
		widgets: make(map[string]Widget),
		subs:    make(map[string]*event.Subscription),
	}
}

// Mount builds, mounts and subscribes a widget. Mount pushes a placeholder
// render before the subscription exists, so the view shows the tile
// immediately even when its channel is silent. Mounting an id twice returns
// the existing widget.
func (m *Manager) Mount(cfg domain.WidgetConfig) (Widget, error) {
	if existing, ok := m.widgets[cfg.ID]; ok {
		return existing, nil
	}

	w, err := New(cfg)
	if err != nil {
		return nil, err
	}

	w.Mount(m.env)
	m.widgets[cfg.ID] = w
	m.subs[cfg.ID] = m.env.Bus.Subscribe(channelFor(cfg), func(payload any) {
		w.Update(payload)
	})

	slog.Debug("Widget mounted",
		slog.String("id", cfg.ID),
		slog.String("kind", string(cfg.Kind)))
	return w, nil
}

// Destroy tears a widget down in strict order: unsubscribe first so no
// update can land mid-teardown, then cancel the widget's own resources,
// then drop it from the registry.
func (m *Manager) Destroy(id string) error {
	w, ok := m.widgets[id]
	if !ok {
		return domain.ErrWidgetNotFound
	}

	if sub, ok := m.subs[id]; ok {
		m.env.Bus.Unsubscribe(sub)
		delete(m.subs, id)
	}
	w.Destroy()
	delete(m.widgets, id)

	slog.Debug("Widget destroyed", slog.String("id", id))
	return nil
}

// DestroyAll tears down every widget.
func (m *Manager) DestroyAll() {
	for id := range m.widgets {
		_ = m.Destroy(id)
	}
}

// Widget returns a mounted widget by id.
func (m *Manager) Widget(id string) (Widget, bool) {
	w, ok := m.widgets[id]
	return w, ok
}

// Count returns the number of mounted widgets.
func (m *Manager) Count() int {
	return len(m.widgets)
}

// RenderAll returns the render state of every widget, sorted by id, for
// full-frame snapshots sent to newly connected view clients.
func (m *Manager) RenderAll() []RenderState {
	states := make([]RenderState, 0, len(m.widgets))
	for _, w := range m.widgets {
		states = append(states, w.Render())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].ID < states[j].ID
	})
	return states
}
