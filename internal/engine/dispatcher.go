package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dash_go/internal/canvas"
	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/infra"
	"dash_go/internal/infra/feed"
	"dash_go/internal/server"
	"dash_go/internal/service"
	"dash_go/internal/storage"
	"dash_go/internal/widget"
)

// Settings keys for user preferences that survive restarts.
const (
	settingZoom  = "canvas.zoom"
	settingTheme = "ui.theme"
)

// FrameSink receives completed view frames for fan-out.
type FrameSink interface {
	Broadcast(frame *server.Frame)
}

// LayoutStore is the slice of persistence the dispatcher mutates.
type LayoutStore interface {
	LoadLayout() domain.LayoutConfig
	SaveLayout(layout domain.LayoutConfig) error
	AddWidget(cfg domain.WidgetConfig) error
	UpdateWidgetPos(id string, pos domain.GridPos) error
	UpdateWidgetSize(id string, size domain.GridSize) error
	RemoveWidget(id string) error
	ClearLayout() error
	SaveSetting(key, value string) error
	LoadSettings() (map[string]string, error)
}

var _ LayoutStore = (*storage.Storage)(nil)

// Dispatcher is the single-threaded core. Every mutation of cache, canvas
// and widget state happens on its Run goroutine; workers, pollers and the
// view server only ever hand events over through the inbox.
type Dispatcher struct {
	inbox     chan event.Event
	cache     *service.StreamCache
	bus       *event.Bus
	processor *feed.Processor
	engine    *canvas.Engine
	drag      *canvas.DragController
	manager   *widget.Manager
	store     LayoutStore
	sink      FrameSink

	theme  string
	timers map[string]*timer
	dirty  bool
}

type timer struct {
	fn   func()
	stop chan struct{}
}

// NewDispatcher wires the core. cfg, store and sink may be nil in tests.
func NewDispatcher(inboxSize int, cfg *infra.Config, cache *service.StreamCache, bus *event.Bus, store LayoutStore, sink FrameSink) *Dispatcher {
	d := &Dispatcher{
		inbox:     make(chan event.Event, inboxSize),
		cache:     cache,
		bus:       bus,
		processor: feed.NewProcessor(cache, bus),
		engine:    canvas.NewEngine(),
		store:     store,
		sink:      sink,
		timers:    make(map[string]*timer),
	}

	logWindow := 0
	if cfg != nil {
		logWindow = cfg.UI.LogWindow
		d.theme = cfg.UI.Theme
	}

	d.drag = canvas.NewDragController(d.engine, d.persistMove, d.handleClick)
	d.manager = widget.NewManager(widget.Env{
		Cache:     cache,
		Bus:       bus,
		Scheduler: d,
		OnRender:  func(id string, state widget.RenderState) { d.dirty = true },
		LogWindow: logWindow,
	})
	return d
}

// SetSink wires the frame sink. Must be called before Run; the sink and
// the dispatcher reference each other, so one side is wired late.
func (d *Dispatcher) SetSink(sink FrameSink) {
	d.sink = sink
}

// Inbox returns the event channel. External workers send events here.
func (d *Dispatcher) Inbox() chan<- event.Event {
	return d.inbox
}

// Canvas exposes the canvas engine for read-only wiring.
func (d *Dispatcher) Canvas() *canvas.Engine {
	return d.engine
}

// Run starts the event loop. This MUST be run in a single goroutine.
// The persisted layout is restored on the loop itself, before the first
// event, so restoration follows the same single-writer rule.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("🚀 Dispatcher started (single-threaded core)")

	d.restore()
	d.broadcastFrame()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping...")
			d.stopTimers()
			d.manager.DestroyAll()
			return
		case ev := <-d.inbox:
			d.processEvent(ev)
			if d.dirty {
				d.broadcastFrame()
				d.dirty = false
			}
		}
	}
}

// processEvent dispatches one event. A panic in any handler is contained
// here: the state is dumped for post-mortem and the loop keeps running,
// one broken event must not take the dashboard down.
func (d *Dispatcher) processEvent(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC in event handler",
				slog.String("event", ev.GetType().String()),
				slog.Any("panic", r))
			d.DumpState("panic_dump.json")
		}
	}()

	switch e := ev.(type) {
	case *event.ChannelMessageEvent:
		d.handleChannelMessage(e)
	case *event.StatusEvent:
		d.handleStatus(e)
	case *event.PointerEvent:
		d.drag.HandlePointer(e)
		d.dirty = true
		event.ReleasePointerEvent(e)
	case *event.CommandEvent:
		d.handleCommand(e)
	case *event.TickEvent:
		if t, ok := d.timers[e.TimerID]; ok {
			t.fn()
		}
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (d *Dispatcher) handleChannelMessage(e *event.ChannelMessageEvent) {
	defer event.ReleaseChannelMessageEvent(e)

	if err := d.processor.Process(e.Channel, e.Data); err != nil {
		infra.GlobalMetrics.RecordDecodeError()
		slog.Warn("Channel message rejected",
			slog.String("channel", string(e.Channel)),
			slog.String("preview", domain.Preview(e.Data)),
			slog.Any("error", err))
		return
	}

	if e.ReceivedAt > 0 {
		latency := time.Now().UnixMilli() - e.ReceivedAt
		infra.GlobalMetrics.RecordMessage(latency * int64(time.Millisecond))
	} else {
		infra.GlobalMetrics.RecordMessage(0)
	}
}

func (d *Dispatcher) handleStatus(e *event.StatusEvent) {
	d.cache.SetChannelState(e.Update.Channel, e.Update.State)
	d.bus.Publish(domain.ChannelStatus, &e.Update)
	d.dirty = true
}

func (d *Dispatcher) handleCommand(e *event.CommandEvent) {
	switch e.Action {
	case event.ActionAddWidget:
		kinds := e.Kinds
		if len(kinds) == 0 && e.Kind != "" {
			kinds = []domain.WidgetKind{e.Kind}
		}
		d.addWidgets(kinds, e.TargetKey)

	case event.ActionDuplicate:
		d.duplicateWidget(e.WidgetID)

	case event.ActionRemoveWidget:
		d.removeWidget(e.WidgetID)

	case event.ActionResizeWidget:
		d.resizeWidget(e.WidgetID, domain.GridSize{W: e.Width, H: e.Height})

	case event.ActionReplaceLayout:
		d.replaceLayout(e.Configs)

	case event.ActionClearAll:
		d.manager.DestroyAll()
		d.engine.Clear()
		if d.store != nil {
			if err := d.store.ClearLayout(); err != nil {
				slog.Error("Failed to clear persisted layout", slog.Any("error", err))
			}
		}
		d.dirty = true

	case event.ActionSetScale:
		applied := d.engine.SetScale(e.Scale)
		if d.store != nil {
			_ = d.store.SaveSetting(settingZoom, strconv.FormatFloat(applied, 'f', -1, 64))
		}
		d.dirty = true

	case event.ActionSetTheme:
		d.theme = e.Theme
		if d.store != nil {
			_ = d.store.SaveSetting(settingTheme, e.Theme)
		}
		d.dirty = true

	case event.ActionViewport:
		d.engine.SetViewport(e.Width, e.Height)
		d.dirty = true

	default:
		slog.Warn("Unknown command action", slog.String("action", string(e.Action)))
	}
}

// addWidgets creates widgets in order and packs them below existing
// content so a batch add never overlaps what is already on the canvas.
func (d *Dispatcher) addWidgets(kinds []domain.WidgetKind, targetKey string) {
	if len(kinds) == 0 {
		return
	}

	sizes := make([]domain.GridSize, 0, len(kinds))
	valid := make([]domain.WidgetKind, 0, len(kinds))
	for _, k := range kinds {
		if !k.IsValid() {
			slog.Warn("Ignoring unknown widget kind", slog.String("kind", string(k)))
			continue
		}
		sizes = append(sizes, k.DefaultSize())
		valid = append(valid, k)
	}
	if len(valid) == 0 {
		return
	}

	startY := 0
	if d.engine.Count() > 0 {
		startY = d.engine.MaxY() + canvas.RowMargin
	}
	widthUnits := d.engine.GridWidth()
	if widthUnits <= 0 {
		widthUnits = 40
	}
	positions := canvas.Pack(sizes, widthUnits, 0, startY)

	for i, kind := range valid {
		cfg := domain.WidgetConfig{
			ID:        uuid.NewString(),
			Kind:      kind,
			Pos:       positions[i],
			Size:      sizes[i],
			TargetKey: targetKey,
		}
		d.mountWidget(cfg, true)
	}
	d.dirty = true
}

func (d *Dispatcher) duplicateWidget(id string) {
	src, ok := d.engine.Widget(id)
	if !ok {
		slog.Warn("Duplicate requested for unknown widget", slog.String("id", id))
		return
	}

	cfg := src
	cfg.ID = uuid.NewString()
	pos := canvas.Pack([]domain.GridSize{cfg.Size}, d.engine.GridWidth(), 0, d.engine.MaxY()+canvas.RowMargin)
	cfg.Pos = pos[0]

	d.mountWidget(cfg, true)
	d.dirty = true
}

func (d *Dispatcher) mountWidget(cfg domain.WidgetConfig, persist bool) {
	if _, err := d.manager.Mount(cfg); err != nil {
		slog.Error("Failed to mount widget",
			slog.String("kind", string(cfg.Kind)),
			slog.Any("error", err))
		return
	}
	d.engine.AddWidget(cfg)

	if persist && d.store != nil {
		if err := d.store.AddWidget(cfg); err != nil {
			slog.Error("Failed to persist widget", slog.Any("error", err))
		}
	}
}

// replaceLayout swaps the entire live layout for the posted one: widgets are
// remounted and the store row set is replaced wholesale, so websocket frames
// and the persisted layout describe the same state.
func (d *Dispatcher) replaceLayout(configs []domain.WidgetConfig) {
	d.manager.DestroyAll()
	d.engine.Clear()

	kept := make([]domain.WidgetConfig, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Kind.IsValid() {
			slog.Warn("Ignoring unknown widget kind in layout", slog.String("kind", string(cfg.Kind)))
			continue
		}
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		if cfg.Size.W <= 0 || cfg.Size.H <= 0 {
			cfg.Size = cfg.Kind.DefaultSize()
		}
		d.mountWidget(cfg, false)
		kept = append(kept, cfg)
	}

	if d.store != nil {
		layout := domain.LayoutConfig{Version: domain.LayoutVersion, Widgets: kept}
		if err := d.store.SaveLayout(layout); err != nil {
			slog.Error("Failed to persist replaced layout", slog.Any("error", err))
		}
	}
	slog.Info("Layout replaced", slog.Int("widgets", len(kept)))
	d.dirty = true
}

func (d *Dispatcher) resizeWidget(id string, size domain.GridSize) {
	if !d.engine.ResizeWidget(id, size) {
		slog.Warn("Resize requested for unknown widget", slog.String("id", id))
		return
	}
	applied, _ := d.engine.Widget(id)
	if d.store != nil {
		if err := d.store.UpdateWidgetSize(id, applied.Size); err != nil {
			slog.Error("Failed to persist widget size",
				slog.String("id", id),
				slog.Any("error", err))
		}
	}
	d.dirty = true
}

// handleClick receives dragless widget clicks from the drag controller.
// Only the close control carries an action; other clicks are noise.
func (d *Dispatcher) handleClick(id string, closeControl bool) {
	if !closeControl {
		return
	}
	d.removeWidget(id)
}

func (d *Dispatcher) removeWidget(id string) {
	if err := d.manager.Destroy(id); err != nil {
		slog.Warn("Remove requested for unknown widget", slog.String("id", id))
		return
	}
	d.engine.RemoveWidget(id)
	if d.store != nil {
		if err := d.store.RemoveWidget(id); err != nil {
			slog.Error("Failed to remove persisted widget", slog.Any("error", err))
		}
	}
	d.dirty = true
}

// persistMove is the drag controller's commit callback: position changes
// are persisted only once per completed drag, not per move sample.
func (d *Dispatcher) persistMove(id string, pos domain.GridPos) {
	if d.store == nil {
		return
	}
	if err := d.store.UpdateWidgetPos(id, pos); err != nil {
		slog.Error("Failed to persist widget position",
			slog.String("id", id),
			slog.Any("error", err))
	}
}

// restore mounts the persisted layout and settings.
func (d *Dispatcher) restore() {
	if d.store == nil {
		return
	}

	layout := d.store.LoadLayout()
	for _, cfg := range layout.Widgets {
		d.mountWidget(cfg, false)
	}
	slog.Info("Layout restored", slog.Int("widgets", len(layout.Widgets)))

	settings, err := d.store.LoadSettings()
	if err != nil {
		slog.Warn("Failed to load settings", slog.Any("error", err))
		return
	}
	if raw, ok := settings[settingZoom]; ok {
		if z, err := strconv.ParseFloat(raw, 64); err == nil {
			d.engine.SetScale(z)
		}
	}
	// The saved theme wins over the config default.
	if theme, ok := settings[settingTheme]; ok && theme != "" {
		d.theme = theme
	}
}

func (d *Dispatcher) broadcastFrame() {
	if d.sink == nil {
		return
	}
	d.sink.Broadcast(&server.Frame{
		Type:      "UPDATE",
		Widgets:   d.manager.RenderAll(),
		Layout:    d.engine.Widgets(),
		View:      d.engine.ViewState(),
		Theme:     d.theme,
		Timestamp: time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------
// Scheduler implementation
// -----------------------------------------------------------------------------

// Schedule registers a periodic callback. The callback runs on the
// dispatcher goroutine via TickEvents; the ticker goroutine only ever
// touches the inbox. Ticks arriving after cancel find no timer entry and
// are silently dropped.
func (d *Dispatcher) Schedule(interval time.Duration, fn func()) func() {
	id := uuid.NewString()
	t := &timer{fn: fn, stop: make(chan struct{})}
	d.timers[id] = t

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				select {
				case d.inbox <- &event.TickEvent{TimerID: id}:
				default:
					infra.GlobalMetrics.RecordDroppedEvent()
				}
			}
		}
	}()

	var cancelled bool
	return func() {
		if cancelled {
			return
		}
		cancelled = true
		close(t.stop)
		delete(d.timers, id)
	}
}

func (d *Dispatcher) stopTimers() {
	for id, t := range d.timers {
		close(t.stop)
		delete(d.timers, id)
	}
}

// DumpState writes the core state to a file for post-mortem analysis.
func (d *Dispatcher) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Layout []domain.WidgetConfig                  `json:"layout"`
		View   canvas.ViewState                       `json:"view"`
		States map[domain.Channel]domain.ChannelState `json:"channel_states"`
	}{
		Layout: d.engine.Widgets(),
		View:   d.engine.ViewState(),
		States: d.cache.ChannelStates(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
