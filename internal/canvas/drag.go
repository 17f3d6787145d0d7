package canvas

import (
	"log/slog"
	"math"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
)

// clickSuppressWindow is how long after a completed drag a plain click on
// the same widget is ignored, so releasing a drag over a close button does
// not also trigger it.
const clickSuppressWindow = 250 * time.Millisecond

// DragController interprets pointer gestures against the canvas engine:
// single-pointer widget drags with grid snapping, and two-finger pinch
// zoom. All methods are called from the dispatcher goroutine only.
type DragController struct {
	engine  *Engine
	onMoved func(id string, pos domain.GridPos)
	onClick func(id string, closeControl bool)

	dragging bool
	widgetID string
	offsetX  float64
	offsetY  float64

	pinching bool
	lastDist float64

	dragEndedAt time.Time
}

// NewDragController wires a controller to the engine. onMoved fires once
// per completed drag with the widget's final snapped position; onClick fires
// for a pointer release on a widget that never became a drag, after the
// post-drag suppression window. Both callbacks are nil-safe.
func NewDragController(engine *Engine, onMoved func(id string, pos domain.GridPos), onClick func(id string, closeControl bool)) *DragController {
	return &DragController{
		engine:  engine,
		onMoved: onMoved,
		onClick: onClick,
	}
}

// HandlePointer routes a pointer event by phase.
func (d *DragController) HandlePointer(ev *event.PointerEvent) {
	switch ev.Phase {
	case event.PhaseDown:
		d.pointerDown(ev)
	case event.PhaseMove:
		d.pointerMove(ev)
	case event.PhaseUp:
		d.pointerUp(ev)
	}
}

func (d *DragController) pointerDown(ev *event.PointerEvent) {
	if len(ev.Touches) >= 2 {
		d.startPinch(ev)
		return
	}

	// Presses on a widget's close control never start a drag, so the
	// subsequent click reaches the control.
	if ev.WidgetID == "" || ev.CloseControl {
		return
	}

	cfg, ok := d.engine.Widget(ev.WidgetID)
	if !ok {
		return
	}

	cx, cy := d.engine.ToCanvas(ev.X, ev.Y, ev.OriginX, ev.OriginY)
	px, py := GridToPixels(cfg.Pos)

	d.dragging = true
	d.widgetID = ev.WidgetID
	d.offsetX = cx - float64(px)
	d.offsetY = cy - float64(py)
}

func (d *DragController) pointerMove(ev *event.PointerEvent) {
	if len(ev.Touches) >= 2 {
		if !d.pinching {
			d.startPinch(ev)
		}
		d.pinchMove(ev)
		return
	}
	if d.pinching || !d.dragging {
		return
	}

	cx, cy := d.engine.ToCanvas(ev.X, ev.Y, ev.OriginX, ev.OriginY)
	nx := SnapPixel(cx - d.offsetX)
	ny := SnapPixel(cy - d.offsetY)

	d.engine.MoveWidget(d.widgetID, domain.GridPos{
		X: nx / GridSize,
		Y: ny / GridSize,
	})
}

func (d *DragController) pointerUp(ev *event.PointerEvent) {
	if d.pinching {
		if len(ev.Touches) < 2 {
			d.pinching = false
			d.lastDist = 0
		}
		return
	}
	if !d.dragging {
		d.deliverClick(ev)
		return
	}

	d.dragging = false
	d.dragEndedAt = time.Now()

	cfg, ok := d.engine.Widget(d.widgetID)
	if ok && d.onMoved != nil {
		d.onMoved(d.widgetID, cfg.Pos)
	}
	slog.Debug("Widget drag completed",
		slog.String("id", d.widgetID),
		slog.Int("x", cfg.Pos.X),
		slog.Int("y", cfg.Pos.Y))
	d.widgetID = ""
}

// deliverClick forwards a dragless pointer release on a widget. Releases
// inside the suppression window after a drag are swallowed so a drag ending
// over a close button never triggers it.
func (d *DragController) deliverClick(ev *event.PointerEvent) {
	if d.onClick == nil || ev.WidgetID == "" {
		return
	}
	if !d.ClickAllowed() {
		slog.Debug("Click suppressed after drag", slog.String("id", ev.WidgetID))
		return
	}
	d.onClick(ev.WidgetID, ev.CloseControl)
}

// startPinch begins a pinch gesture, cancelling any in-progress drag
// without persisting it.
func (d *DragController) startPinch(ev *event.PointerEvent) {
	d.dragging = false
	d.widgetID = ""
	d.pinching = true
	d.lastDist = touchDistance(ev.Touches)
}

func (d *DragController) pinchMove(ev *event.PointerEvent) {
	dist := touchDistance(ev.Touches)
	if d.lastDist <= 0 || dist <= 0 {
		d.lastDist = dist
		return
	}
	d.engine.ZoomBy(dist / d.lastDist)
	d.lastDist = dist
}

// Dragging reports whether a single-widget drag is in progress.
func (d *DragController) Dragging() bool {
	return d.dragging
}

// ClickAllowed reports whether a click should be processed: clicks that
// land immediately after a drag ends are suppressed.
func (d *DragController) ClickAllowed() bool {
	return time.Since(d.dragEndedAt) > clickSuppressWindow
}

func touchDistance(touches []event.Touch) float64 {
	if len(touches) < 2 {
		return 0
	}
	return math.Hypot(touches[1].X-touches[0].X, touches[1].Y-touches[0].Y)
}
