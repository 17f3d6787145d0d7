package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/infra"
	"dash_go/internal/server"
	"dash_go/internal/service"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []*server.Frame
}

func (s *fakeSink) Broadcast(frame *server.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) last() *server.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

type fakeStore struct {
	mu       sync.Mutex
	layout   domain.LayoutConfig
	saved    *domain.LayoutConfig
	added    []domain.WidgetConfig
	moved    map[string]domain.GridPos
	resized  map[string]domain.GridSize
	removed  []string
	cleared  bool
	settings map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		moved:    make(map[string]domain.GridPos),
		resized:  make(map[string]domain.GridSize),
		settings: make(map[string]string),
	}
}

func (s *fakeStore) LoadLayout() domain.LayoutConfig { return s.layout }

func (s *fakeStore) SaveLayout(layout domain.LayoutConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = &layout
	return nil
}

func (s *fakeStore) AddWidget(cfg domain.WidgetConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, cfg)
	return nil
}

func (s *fakeStore) UpdateWidgetPos(id string, pos domain.GridPos) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moved[id] = pos
	return nil
}

func (s *fakeStore) UpdateWidgetSize(id string, size domain.GridSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resized[id] = size
	return nil
}

func (s *fakeStore) RemoveWidget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	return nil
}

func (s *fakeStore) ClearLayout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = true
	return nil
}

func (s *fakeStore) SaveSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *fakeStore) LoadSettings() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func newTestDispatcher(store LayoutStore, sink FrameSink) *Dispatcher {
	return NewDispatcher(64, nil, service.NewStreamCache(), event.NewBus(), store, sink)
}

func TestDispatcher_ChannelMessageMergesCache(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	msg := event.AcquireChannelMessageEvent()
	msg.Channel = domain.ChannelTelemetry
	msg.Data = []byte(`{"metrics": [{"name": "cpu_load", "metric_type": {"type": "gauge", "value": 0.42}}]}`)
	d.processEvent(msg)

	entry, ok := d.cache.Metric(domain.ChannelTelemetry, "cpu_load")
	if !ok {
		t.Fatal("metric not merged into cache")
	}
	if entry.Value != 0.42 {
		t.Errorf("value = %v, want 0.42", entry.Value)
	}
}

func TestDispatcher_MalformedMessageIsContained(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	good := event.AcquireChannelMessageEvent()
	good.Channel = domain.ChannelTelemetry
	good.Data = []byte(`{"metrics": [{"name": "cpu_load", "metric_type": {"type": "gauge", "value": 1}}]}`)
	d.processEvent(good)

	bad := event.AcquireChannelMessageEvent()
	bad.Channel = domain.ChannelTelemetry
	bad.Data = []byte(`{{{`)
	d.processEvent(bad)

	// Prior cache state survives the malformed message.
	if _, ok := d.cache.Metric(domain.ChannelTelemetry, "cpu_load"); !ok {
		t.Error("cache lost state after malformed message")
	}
}

func TestDispatcher_StatusUpdatesCacheAndBus(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	var published []domain.StatusUpdate
	d.bus.Subscribe(domain.ChannelStatus, func(payload any) {
		if u, ok := payload.(*domain.StatusUpdate); ok {
			published = append(published, *u)
		}
	})

	d.processEvent(&event.StatusEvent{Update: domain.StatusUpdate{
		Channel: domain.ChannelBalance,
		State:   domain.StateConnected,
	}})

	states := d.cache.ChannelStates()
	if states[domain.ChannelBalance] != domain.StateConnected {
		t.Errorf("cached state = %v, want CONNECTED", states[domain.ChannelBalance])
	}
	if len(published) != 1 || published[0].Channel != domain.ChannelBalance {
		t.Errorf("bus publications = %+v", published)
	}
}

func TestDispatcher_AddCommandMountsAndPersists(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{
		Action: event.ActionAddWidget,
		Kind:   domain.WidgetMetric,
	})

	if d.manager.Count() != 1 {
		t.Fatalf("mounted widgets = %d, want 1", d.manager.Count())
	}
	if d.engine.Count() != 1 {
		t.Fatalf("canvas widgets = %d, want 1", d.engine.Count())
	}
	if len(store.added) != 1 {
		t.Fatalf("persisted widgets = %d, want 1", len(store.added))
	}
	if store.added[0].Kind != domain.WidgetMetric {
		t.Errorf("persisted kind = %s", store.added[0].Kind)
	}
	if store.added[0].ID == "" {
		t.Error("persisted widget has empty id")
	}
}

func TestDispatcher_BatchAddPacksBelowExisting(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)
	d.engine.SetViewport(800, 600) // 40x30 grid units

	d.processEvent(&event.CommandEvent{
		Action: event.ActionAddWidget,
		Kind:   domain.WidgetMetric,
	})
	first, _ := d.engine.Widget(store.added[0].ID)

	d.processEvent(&event.CommandEvent{
		Action: event.ActionAddWidget,
		Kinds:  []domain.WidgetKind{domain.WidgetLog, domain.WidgetOrders},
	})

	if d.engine.Count() != 3 {
		t.Fatalf("canvas widgets = %d, want 3", d.engine.Count())
	}

	// Everything from the batch lands strictly below the first widget.
	firstBottom := first.Pos.Y + first.Size.H
	for _, cfg := range store.added[1:] {
		w, _ := d.engine.Widget(cfg.ID)
		if w.Pos.Y < firstBottom {
			t.Errorf("batch widget %s at Y=%d overlaps existing content (bottom %d)",
				w.Kind, w.Pos.Y, firstBottom)
		}
	}
}

func TestDispatcher_DuplicateCopiesConfig(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{
		Action:    event.ActionAddWidget,
		Kind:      domain.WidgetMetric,
		TargetKey: "cpu_load",
	})
	srcID := store.added[0].ID

	d.processEvent(&event.CommandEvent{
		Action:   event.ActionDuplicate,
		WidgetID: srcID,
	})

	if d.manager.Count() != 2 {
		t.Fatalf("mounted widgets = %d, want 2", d.manager.Count())
	}
	dup := store.added[1]
	if dup.ID == srcID {
		t.Error("duplicate reused source id")
	}
	if dup.TargetKey != "cpu_load" {
		t.Errorf("duplicate target key = %q, want cpu_load", dup.TargetKey)
	}

	src, _ := d.engine.Widget(srcID)
	copyCfg, _ := d.engine.Widget(dup.ID)
	if src.Pos == copyCfg.Pos {
		t.Error("duplicate placed on top of source")
	}
}

func TestDispatcher_RemoveAndClear(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetLog})
	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetStatus})
	id := store.added[0].ID

	d.processEvent(&event.CommandEvent{Action: event.ActionRemoveWidget, WidgetID: id})
	if d.manager.Count() != 1 || d.engine.Count() != 1 {
		t.Fatalf("counts after remove = %d/%d, want 1/1", d.manager.Count(), d.engine.Count())
	}
	if len(store.removed) != 1 || store.removed[0] != id {
		t.Errorf("persisted removals = %v", store.removed)
	}

	// Removing again is a no-op, not a crash.
	d.processEvent(&event.CommandEvent{Action: event.ActionRemoveWidget, WidgetID: id})

	d.processEvent(&event.CommandEvent{Action: event.ActionClearAll})
	if d.manager.Count() != 0 || d.engine.Count() != 0 {
		t.Errorf("counts after clear = %d/%d, want 0/0", d.manager.Count(), d.engine.Count())
	}
	if !store.cleared {
		t.Error("clear was not persisted")
	}
}

func TestDispatcher_ReplaceLayoutCommand(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetStatus})
	oldID := store.added[0].ID

	d.processEvent(&event.CommandEvent{
		Action: event.ActionReplaceLayout,
		Configs: []domain.WidgetConfig{
			{ID: "a", Kind: domain.WidgetLog},
			{Kind: domain.WidgetMetric, Size: domain.GridSize{W: 6, H: 4}},
			{ID: "z", Kind: "sparkline"},
		},
	})

	if d.manager.Count() != 2 || d.engine.Count() != 2 {
		t.Fatalf("live widgets = %d/%d, want 2/2", d.manager.Count(), d.engine.Count())
	}
	if _, ok := d.engine.Widget(oldID); ok {
		t.Error("pre-existing widget survived layout replacement")
	}

	// The posted layout is persisted wholesale, with repaired configs.
	if store.saved == nil || len(store.saved.Widgets) != 2 {
		t.Fatalf("persisted layout = %+v, want 2 widgets", store.saved)
	}
	for _, cfg := range store.saved.Widgets {
		if cfg.ID == "" {
			t.Error("persisted widget has empty id")
		}
		if cfg.Size.W <= 0 || cfg.Size.H <= 0 {
			t.Errorf("persisted widget %s has zero size", cfg.ID)
		}
	}

	// Remounted widgets are live: the next command acts on the new state.
	d.processEvent(&event.CommandEvent{Action: event.ActionRemoveWidget, WidgetID: "a"})
	if d.manager.Count() != 1 {
		t.Errorf("widgets after remove = %d, want 1", d.manager.Count())
	}
}

func TestDispatcher_ResizeCommandPersists(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetLog})
	id := store.added[0].ID

	d.processEvent(&event.CommandEvent{
		Action:   event.ActionResizeWidget,
		WidgetID: id,
		Width:    8,
		Height:   5,
	})

	cfg, _ := d.engine.Widget(id)
	if cfg.Size.W != 8 || cfg.Size.H != 5 {
		t.Errorf("live size = %+v, want 8x5", cfg.Size)
	}
	if got := store.resized[id]; got.W != 8 || got.H != 5 {
		t.Errorf("persisted size = %+v, want 8x5", got)
	}

	// Unknown widget is a no-op, not a crash.
	d.processEvent(&event.CommandEvent{Action: event.ActionResizeWidget, WidgetID: "ghost", Width: 2, Height: 2})
}

func TestDispatcher_CloseClickRemovesWidget(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetBalance})
	id := store.added[0].ID

	d.processEvent(&event.PointerEvent{Phase: event.PhaseDown, WidgetID: id, CloseControl: true})
	d.processEvent(&event.PointerEvent{Phase: event.PhaseUp, WidgetID: id, CloseControl: true})

	if d.manager.Count() != 0 || d.engine.Count() != 0 {
		t.Errorf("widgets after close click = %d/%d, want 0/0", d.manager.Count(), d.engine.Count())
	}
	if len(store.removed) != 1 || store.removed[0] != id {
		t.Errorf("persisted removals = %v, want [%s]", store.removed, id)
	}
}

func TestDispatcher_LogWindowFromConfig(t *testing.T) {
	cfg := &infra.Config{}
	cfg.UI.LogWindow = 2
	d := NewDispatcher(64, cfg, service.NewStreamCache(), event.NewBus(), nil, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionAddWidget, Kind: domain.WidgetLog})

	for i := 1; i <= 6; i++ {
		d.bus.Publish(domain.ChannelLog, &domain.LogLine{Raw: fmt.Sprintf("line-%d", i)})
	}

	states := d.manager.RenderAll()
	if len(states) != 1 {
		t.Fatalf("rendered widgets = %d, want 1", len(states))
	}
	if len(states[0].Lines) != 2 {
		t.Fatalf("rendered lines = %d with configured window 2", len(states[0].Lines))
	}
	if states[0].Lines[1] != "line-6" {
		t.Errorf("last line = %q, want line-6", states[0].Lines[1])
	}
}

func TestDispatcher_ThemeCommandPersistsAndRestores(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionSetTheme, Theme: "light"})
	if d.theme != "light" {
		t.Errorf("live theme = %q, want light", d.theme)
	}
	if store.settings[settingTheme] != "light" {
		t.Errorf("persisted theme = %q, want light", store.settings[settingTheme])
	}

	// A fresh dispatcher picks the saved theme up over the config default.
	cfg := &infra.Config{}
	cfg.UI.Theme = "dark"
	d2 := NewDispatcher(64, cfg, service.NewStreamCache(), event.NewBus(), store, nil)
	d2.restore()
	if d2.theme != "light" {
		t.Errorf("restored theme = %q, want saved light", d2.theme)
	}
}

func TestDispatcher_ZoomCommandClamps(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	d.processEvent(&event.CommandEvent{Action: event.ActionSetScale, Scale: 9.0})
	if got := d.engine.Scale(); got != 2.0 {
		t.Errorf("scale = %v, want clamped 2.0", got)
	}
}

func TestDispatcher_PanicInHandlerIsContained(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	d.bus.Subscribe(domain.ChannelStatus, func(payload any) {
		panic("subscriber exploded")
	})

	// The bus isolates subscriber panics; the loop must survive and keep
	// processing subsequent events either way.
	d.processEvent(&event.StatusEvent{Update: domain.StatusUpdate{
		Channel: domain.ChannelLog,
		State:   domain.StateConnecting,
	}})

	d.processEvent(&event.CommandEvent{Action: event.ActionSetScale, Scale: 0.5})
	if got := d.engine.Scale(); got != 0.5 {
		t.Errorf("dispatcher stopped processing after panic: scale = %v", got)
	}
}

func TestDispatcher_RunRestoresLayoutAndBroadcasts(t *testing.T) {
	store := newFakeStore()
	store.layout = domain.LayoutConfig{
		Version: domain.LayoutVersion,
		Widgets: []domain.WidgetConfig{
			{ID: "w1", Kind: domain.WidgetMetric, Pos: domain.GridPos{X: 0, Y: 0}, Size: domain.GridSize{W: 4, H: 3}},
		},
	}
	sink := &fakeSink{}
	d := newTestDispatcher(store, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no initial frame broadcast")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	frame := sink.last()
	if len(frame.Layout) != 1 || frame.Layout[0].ID != "w1" {
		t.Errorf("restored layout = %+v", frame.Layout)
	}
	if len(frame.Widgets) != 1 {
		t.Errorf("restored widgets = %d, want 1", len(frame.Widgets))
	}

	// Restored widgets are mounted, not just drawn: a command round-trips
	// through the inbox and a fresh frame arrives.
	before := sink.count()
	d.Inbox() <- &event.CommandEvent{Action: event.ActionSetScale, Scale: 1.5}

	deadline = time.After(2 * time.Second)
	for sink.count() == before {
		select {
		case <-deadline:
			t.Fatal("no frame after command")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if got := sink.last().View.Scale; got != 1.5 {
		t.Errorf("frame scale = %v, want 1.5", got)
	}
}

func TestDispatcher_SchedulerTicks(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	fired := 0
	cancel := d.Schedule(10*time.Millisecond, func() { fired++ })
	defer cancel()

	// Pull tick events off the inbox the way Run would.
	deadline := time.After(2 * time.Second)
	for fired < 2 {
		select {
		case ev := <-d.inbox:
			d.processEvent(ev)
		case <-deadline:
			t.Fatalf("fired = %d, want >= 2", fired)
		}
	}

	cancel()
	// Ticks for a cancelled timer are ignored.
	d.processEvent(&event.TickEvent{TimerID: "gone"})
}
