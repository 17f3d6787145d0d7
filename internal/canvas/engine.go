package canvas

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"dash_go/internal/domain"
)

const (
	// GridSize is the fixed pixel size of one grid unit.
	GridSize = 20

	// Zoom scale bounds.
	MinScale = 0.25
	MaxScale = 2.0

	// BoundsPadding is the fixed pixel padding added around the widget
	// bounding box when computing canvas content size.
	BoundsPadding = 40
)

// ViewState is the derived canvas view: zoom factor and unscaled content-fit
// pixel dimensions. It is recomputed from the widget registry and viewport
// on every structural change, never persisted.
type ViewState struct {
	Scale      float64 `json:"scale"`
	BaseWidth  int     `json:"base_width"`
	BaseHeight int     `json:"base_height"`
	ScrollX    bool    `json:"scroll_x"`
	ScrollY    bool    `json:"scroll_y"`
}

// Engine owns the canvas coordinate system and the registry of mounted
// widgets. Positions are stored in grid units; rendering multiplies by
// GridSize to get layout pixels, which the view scales by the zoom factor
// via a single root transform. Changing zoom never moves widgets in
// grid-unit space.
type Engine struct {
	mu      sync.RWMutex
	widgets map[string]*domain.WidgetConfig

	scale     float64
	viewportW int
	viewportH int
	baseW     int
	baseH     int
}

// NewEngine creates an empty canvas at zoom 1.0.
func NewEngine() *Engine {
	return &Engine{
		widgets: make(map[string]*domain.WidgetConfig),
		scale:   1.0,
	}
}

// SetViewport records the view client's viewport size in pixels.
func (e *Engine) SetViewport(w, h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewportW = w
	e.viewportH = h
	e.recomputeBounds()
}

// AddWidget registers a widget. A duplicate id is a silent no-op: the user
// never sees an error dialog for it.
func (e *Engine) AddWidget(cfg domain.WidgetConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.widgets[cfg.ID]; exists {
		slog.Debug("Duplicate widget id ignored", slog.String("id", cfg.ID))
		return
	}

	cp := cfg
	e.widgets[cfg.ID] = &cp
	e.recomputeBounds()
}

// RemoveWidget removes a widget and returns its final config.
func (e *Engine) RemoveWidget(id string) (domain.WidgetConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.widgets[id]
	if !ok {
		return domain.WidgetConfig{}, false
	}
	delete(e.widgets, id)
	e.recomputeBounds()
	return *cfg, true
}

// Widget returns a copy of a registered widget config.
func (e *Engine) Widget(id string) (domain.WidgetConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, ok := e.widgets[id]
	if !ok {
		return domain.WidgetConfig{}, false
	}
	return *cfg, true
}

// Widgets returns all registered widgets sorted by id.
func (e *Engine) Widgets() []domain.WidgetConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.WidgetConfig, 0, len(e.widgets))
	for _, cfg := range e.widgets {
		result = append(result, *cfg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Count returns the number of registered widgets.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.widgets)
}

// Clear removes every widget.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.widgets = make(map[string]*domain.WidgetConfig)
	e.recomputeBounds()
}

// MoveWidget repositions a widget in grid units, clamped to (0,0) minimum.
// There is no maximum: the canvas grows to accommodate.
func (e *Engine) MoveWidget(id string, pos domain.GridPos) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.widgets[id]
	if !ok {
		return false
	}
	if pos.X < 0 {
		pos.X = 0
	}
	if pos.Y < 0 {
		pos.Y = 0
	}
	cfg.Pos = pos
	e.recomputeBounds()
	return true
}

// ResizeWidget changes a widget's grid size, clamped to 1x1 minimum.
func (e *Engine) ResizeWidget(id string, size domain.GridSize) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.widgets[id]
	if !ok {
		return false
	}
	if size.W < 1 {
		size.W = 1
	}
	if size.H < 1 {
		size.H = 1
	}
	cfg.Size = size
	e.recomputeBounds()
	return true
}

// SetScale stores a zoom factor clamped to [MinScale, MaxScale] and returns
// the stored value.
func (e *Engine) SetScale(s float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scale = clampScale(s)
	return e.scale
}

// Scale returns the current zoom factor.
func (e *Engine) Scale() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scale
}

// ZoomBy applies a multiplicative zoom delta, clamped to bounds.
func (e *Engine) ZoomBy(factor float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scale = clampScale(e.scale * factor)
	return e.scale
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// GridToPixels converts a grid position to unscaled layout pixels.
func GridToPixels(pos domain.GridPos) (int, int) {
	return pos.X * GridSize, pos.Y * GridSize
}

// SnapPixel snaps an unscaled pixel coordinate to the nearest grid-size
// multiple. Snapping an already-aligned coordinate returns it unchanged.
func SnapPixel(v float64) int {
	return int(math.Round(v/GridSize)) * GridSize
}

// PixelsToGrid converts unscaled pixels to the nearest grid position.
func PixelsToGrid(x, y float64) domain.GridPos {
	return domain.GridPos{
		X: SnapPixel(x) / GridSize,
		Y: SnapPixel(y) / GridSize,
	}
}

// ToCanvas inverts the view transform: a viewport coordinate minus the
// canvas origin, divided by the zoom factor, is an unscaled canvas pixel
// coordinate. Used for hit-testing and drag.
func (e *Engine) ToCanvas(viewportX, viewportY, originX, originY float64) (float64, float64) {
	s := e.Scale()
	return (viewportX - originX) / s, (viewportY - originY) / s
}

// HitTest returns the widget whose pixel rectangle contains the canvas
// coordinate, if any.
func (e *Engine) HitTest(canvasX, canvasY float64) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for id, cfg := range e.widgets {
		x0 := float64(cfg.Pos.X * GridSize)
		y0 := float64(cfg.Pos.Y * GridSize)
		x1 := x0 + float64(cfg.Size.W*GridSize)
		y1 := y0 + float64(cfg.Size.H*GridSize)
		if canvasX >= x0 && canvasX < x1 && canvasY >= y0 && canvasY < y1 {
			return id, true
		}
	}
	return "", false
}

// GridWidth returns the canvas content width in grid units, used by the
// auto-layout to bound rows.
func (e *Engine) GridWidth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseW / GridSize
}

// GridHeight returns the canvas content height in grid units.
func (e *Engine) GridHeight() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseH / GridSize
}

// MaxY returns the bottom edge (in grid units) of the lowest widget.
func (e *Engine) MaxY() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	maxY := 0
	for _, cfg := range e.widgets {
		if bottom := cfg.Pos.Y + cfg.Size.H; bottom > maxY {
			maxY = bottom
		}
	}
	return maxY
}

// ViewState returns the current derived view state.
func (e *Engine) ViewState() ViewState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return ViewState{
		Scale:      e.scale,
		BaseWidth:  e.baseW,
		BaseHeight: e.baseH,
		ScrollX:    float64(e.baseW)*e.scale > float64(e.viewportW),
		ScrollY:    float64(e.baseH)*e.scale > float64(e.viewportH),
	}
}

// recomputeBounds derives the content pixel size: the maximum of the
// viewport and the widget bounding box plus fixed padding, so the
// scrollable area always exactly fits content. Must be called with the
// lock held.
func (e *Engine) recomputeBounds() {
	maxX, maxY := 0, 0
	for _, cfg := range e.widgets {
		if right := (cfg.Pos.X + cfg.Size.W) * GridSize; right > maxX {
			maxX = right
		}
		if bottom := (cfg.Pos.Y + cfg.Size.H) * GridSize; bottom > maxY {
			maxY = bottom
		}
	}

	e.baseW = maxX
	e.baseH = maxY
	if len(e.widgets) > 0 {
		e.baseW += BoundsPadding
		e.baseH += BoundsPadding
	}
	if e.viewportW > e.baseW {
		e.baseW = e.viewportW
	}
	if e.viewportH > e.baseH {
		e.baseH = e.viewportH
	}
}
