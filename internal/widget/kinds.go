package widget

import (
	"fmt"
	"sort"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
)

// logRetain is how many log lines a log widget shows when the config does
// not say otherwise. The backing slice is trimmed only when it doubles, so
// steady-state appends stay cheap.
const logRetain = 50

// statusRefreshInterval re-renders the status widget so connection ages
// stay current even without state changes.
const statusRefreshInterval = 5 * time.Second

type baseWidget struct {
	cfg     domain.WidgetConfig
	env     Env
	updated time.Time
}

func (b *baseWidget) ID() string                  { return b.cfg.ID }
func (b *baseWidget) Config() domain.WidgetConfig { return b.cfg }

func (b *baseWidget) push(w Widget) {
	if b.env.OnRender != nil {
		b.env.OnRender(b.cfg.ID, w.Render())
	}
}

// ---- metric ----

// metricWidget shows a single telemetry metric. Key resolution is
// fallback-then-lock: while the configured target key is absent from the
// cache the widget displays the first available key, but the moment the
// target appears the widget locks onto it and never falls back again.
type metricWidget struct {
	baseWidget
	locked bool
	key    string
}

func newMetricWidget(cfg domain.WidgetConfig) *metricWidget {
	return &metricWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *metricWidget) Mount(env Env) {
	w.env = env
	w.push(w)
}

func (w *metricWidget) Update(payload any) {
	if _, ok := payload.(*event.CacheUpdate); !ok {
		return
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *metricWidget) Destroy() {}

func (w *metricWidget) resolve() (domain.MetricEntry, bool) {
	ch := channelFor(w.cfg)

	if w.locked {
		return w.env.Cache.Metric(ch, w.key)
	}
	if w.cfg.TargetKey != "" {
		if e, ok := w.env.Cache.Metric(ch, w.cfg.TargetKey); ok {
			w.locked = true
			w.key = w.cfg.TargetKey
			return e, true
		}
	}
	// A configured target that is not cached yet is shown as an unlocked
	// fallback only; the widget keeps waiting for the configured key
	// instead of adopting the fallback as its target.
	first, ok := w.env.Cache.FirstKey(ch)
	if !ok {
		return domain.MetricEntry{}, false
	}
	if w.cfg.TargetKey == "" {
		// No configured target: adopt the first key permanently so the
		// widget does not jump between metrics as keys arrive.
		w.locked = true
		w.key = first
	}
	return w.env.Cache.Metric(ch, first)
}

func (w *metricWidget) Render() RenderState {
	state := RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   "Metric",
		Updated: w.updated,
	}

	entry, ok := w.resolve()
	if !ok {
		state.Fields = []Field{{Label: "waiting for data", Value: "-"}}
		return state
	}

	state.Title = entry.Key
	field := Field{Label: entry.Name, Value: formatEntry(entry)}
	if entry.Rate != 0 {
		field.Badge = fmt.Sprintf("%+.1f/s", entry.Rate)
	}
	state.Fields = []Field{field}
	return state
}

// ---- system ----

type systemWidget struct {
	baseWidget
}

func newSystemWidget(cfg domain.WidgetConfig) *systemWidget {
	return &systemWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *systemWidget) Mount(env Env) {
	w.env = env
	w.push(w)
}

func (w *systemWidget) Update(payload any) {
	if _, ok := payload.(*event.CacheUpdate); !ok {
		return
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *systemWidget) Destroy() {}

func (w *systemWidget) Render() RenderState {
	entries := w.env.Cache.Entries(domain.ChannelSystem)

	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, Field{Label: e.Key, Value: formatEntry(e)})
	}

	return RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   "System",
		Fields:  fields,
		Updated: w.updated,
	}
}

// ---- balance ----

type balanceWidget struct {
	baseWidget
}

func newBalanceWidget(cfg domain.WidgetConfig) *balanceWidget {
	return &balanceWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *balanceWidget) Mount(env Env) {
	w.env = env
	w.push(w)
}

func (w *balanceWidget) Update(payload any) {
	if _, ok := payload.(*event.CacheUpdate); !ok {
		return
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *balanceWidget) Destroy() {}

func (w *balanceWidget) Render() RenderState {
	balances := w.env.Cache.Balances()

	fields := make([]Field, 0, len(balances))
	for _, b := range balances {
		f := Field{Label: b.Asset, Value: b.Total.String()}
		if len(b.Wallets) > 1 {
			f.Badge = fmt.Sprintf("%d wallets", len(b.Wallets))
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		fields = []Field{{Label: "no balances", Value: "-"}}
	}

	return RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   "Balances",
		Fields:  fields,
		Updated: w.updated,
	}
}

// ---- orders ----

type ordersWidget struct {
	baseWidget
}

func newOrdersWidget(cfg domain.WidgetConfig) *ordersWidget {
	return &ordersWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *ordersWidget) Mount(env Env) {
	w.env = env
	w.push(w)
}

func (w *ordersWidget) Update(payload any) {
	if _, ok := payload.(*event.CacheUpdate); !ok {
		return
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *ordersWidget) Destroy() {}

func (w *ordersWidget) Render() RenderState {
	orders := w.env.Cache.Orders()

	fields := make([]Field, 0, len(orders))
	for _, o := range orders {
		fields = append(fields, Field{
			Label: o.Symbol,
			Value: fmt.Sprintf("%s @ %s", o.Quantity.String(), o.Price.String()),
			Badge: o.Side,
		})
	}

	return RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   fmt.Sprintf("Open Orders (%d)", len(orders)),
		Fields:  fields,
		Updated: w.updated,
	}
}

// ---- log ----

// logWidget keeps its own retention window. Log lines are never cached
// upstream, so a widget mounted later starts empty.
type logWidget struct {
	baseWidget
	retain int
	lines  []string
}

func newLogWidget(cfg domain.WidgetConfig) *logWidget {
	return &logWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *logWidget) Mount(env Env) {
	w.env = env
	w.retain = env.LogWindow
	if w.retain <= 0 {
		w.retain = logRetain
	}
	w.push(w)
}

func (w *logWidget) Update(payload any) {
	line, ok := payload.(*domain.LogLine)
	if !ok {
		return
	}

	w.lines = append(w.lines, formatLogLine(line))
	if len(w.lines) > 2*w.retain {
		w.lines = append(w.lines[:0], w.lines[len(w.lines)-w.retain:]...)
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *logWidget) Destroy() {}

func (w *logWidget) Render() RenderState {
	visible := w.lines
	if len(visible) > w.retain {
		visible = visible[len(visible)-w.retain:]
	}

	lines := make([]string, len(visible))
	copy(lines, visible)

	return RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   "Log",
		Lines:   lines,
		Updated: w.updated,
	}
}

func formatLogLine(l *domain.LogLine) string {
	if !l.IsStructured() {
		return l.Raw
	}
	var b []byte
	if l.Timestamp != "" {
		b = append(b, l.Timestamp...)
		b = append(b, ' ')
	}
	if l.Level != "" {
		b = append(b, '[')
		b = append(b, l.Level...)
		b = append(b, "] "...)
	}
	if l.Section != "" {
		b = append(b, l.Section...)
		b = append(b, ": "...)
	}
	b = append(b, l.Message...)
	return string(b)
}

// ---- status ----

// statusWidget shows per-channel connection state and refreshes on a timer
// so the display stays live even when no state changes arrive.
type statusWidget struct {
	baseWidget
	cancelTimer func()
}

func newStatusWidget(cfg domain.WidgetConfig) *statusWidget {
	return &statusWidget{baseWidget: baseWidget{cfg: cfg}}
}

func (w *statusWidget) Mount(env Env) {
	w.env = env
	if env.Scheduler != nil {
		w.cancelTimer = env.Scheduler.Schedule(statusRefreshInterval, func() {
			w.push(w)
		})
	}
	w.push(w)
}

func (w *statusWidget) Update(payload any) {
	if _, ok := payload.(*domain.StatusUpdate); !ok {
		return
	}
	w.updated = time.Now()
	w.push(w)
}

func (w *statusWidget) Destroy() {
	if w.cancelTimer != nil {
		w.cancelTimer()
		w.cancelTimer = nil
	}
}

func (w *statusWidget) Render() RenderState {
	states := w.env.Cache.ChannelStates()

	channels := make([]string, 0, len(states))
	for ch := range states {
		channels = append(channels, string(ch))
	}
	sort.Strings(channels)

	fields := make([]Field, 0, len(channels))
	for _, ch := range channels {
		fields = append(fields, Field{
			Label: ch,
			Value: states[domain.Channel(ch)].String(),
		})
	}

	return RenderState{
		ID:      w.cfg.ID,
		Kind:    w.cfg.Kind,
		Title:   "Connections",
		Fields:  fields,
		Updated: w.updated,
	}
}
