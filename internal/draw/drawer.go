// Package draw turns pointer gestures into a committed geographic rectangle.
package draw

import (
	"math"

	"slopemap/internal/geom"
	"slopemap/internal/logging"
)

// DefaultEpsilon is the minimum span, in degrees, required on both axes.
const DefaultEpsilon = 0.001

// CursorCrosshair and CursorDefault are the cursor names set on the canvas.
const (
	CursorCrosshair = "crosshair"
	CursorDefault   = ""
)

// State is the drawer's position in its gesture cycle.
type State int

const (
	Idle State = iota
	Armed
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Drawing:
		return "drawing"
	}
	return "unknown"
}

// Canvas is the part of the map the drawer takes over while armed.
type Canvas interface {
	SetDragPan(enabled bool)
	SetCursor(name string)
}

// Callbacks receive the drawer's output. Any of them may be nil.
type Callbacks struct {
	// OnPreview fires on every pointer move while drawing.
	OnPreview func(geom.BBox)
	// OnCommit fires when a gesture ends with a large enough rectangle.
	OnCommit func(geom.BBox)
	// OnCancel fires when a gesture ends without a commit.
	OnCancel func()
}

// Drawer is the pointer state machine. It is not safe for concurrent use;
// all calls come from the UI event loop.
type Drawer struct {
	canvas  Canvas
	cb      Callbacks
	epsilon float64
	log     logging.Logger

	state State
	start *geom.Point
}

// Option configures a Drawer.
type Option func(*Drawer)

// WithEpsilon overrides DefaultEpsilon.
func WithEpsilon(eps float64) Option { return func(d *Drawer) { d.epsilon = eps } }

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option { return func(d *Drawer) { d.log = l } }

// New returns an Idle drawer bound to canvas.
func New(canvas Canvas, cb Callbacks, opts ...Option) *Drawer {
	d := &Drawer{
		canvas:  canvas,
		cb:      cb,
		epsilon: DefaultEpsilon,
		log:     logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Drawer) State() State { return d.state }

// Active reports whether drawing mode is on.
func (d *Drawer) Active() bool { return d.state != Idle }

// Toggle arms an idle drawer, or disarms it from any other state, discarding
// any gesture in progress.
func (d *Drawer) Toggle() {
	if d.state == Idle {
		d.state = Armed
		d.takeCanvas()
		d.log.Debug("draw mode on")
		return
	}
	d.disarm()
}

// PointerDown starts a gesture at p when armed.
func (d *Drawer) PointerDown(p geom.Point) {
	if d.state != Armed {
		return
	}
	start := p
	d.start = &start
	d.state = Drawing
}

// PointerMove emits a preview rectangle while drawing.
func (d *Drawer) PointerMove(p geom.Point) {
	if d.state != Drawing || d.start == nil {
		return
	}
	if d.cb.OnPreview != nil {
		d.cb.OnPreview(geom.NewBBox(d.start.X, d.start.Y, p.X, p.Y))
	}
}

// PointerUp ends the gesture. The rectangle is committed only when it spans
// more than epsilon on both axes; otherwise it is dropped without notice.
// Either way the drawer returns to Armed.
func (d *Drawer) PointerUp(p geom.Point) {
	if d.state != Drawing || d.start == nil {
		return
	}
	start := *d.start
	d.start = nil
	d.state = Armed

	if math.Abs(p.X-start.X) > d.epsilon && math.Abs(p.Y-start.Y) > d.epsilon {
		b := geom.NewBBox(start.X, start.Y, p.X, p.Y)
		d.log.Debug("bbox committed", logging.String("bbox", b.String()))
		if d.cb.OnCommit != nil {
			d.cb.OnCommit(b)
		}
		return
	}
	d.log.Debug("degenerate bbox discarded",
		logging.Float64("dx", p.X-start.X), logging.Float64("dy", p.Y-start.Y))
	if d.cb.OnCancel != nil {
		d.cb.OnCancel()
	}
}

// Close restores the canvas. Call on teardown.
func (d *Drawer) Close() {
	if d.state != Idle {
		d.disarm()
	}
}

func (d *Drawer) disarm() {
	wasDrawing := d.state == Drawing
	d.state = Idle
	d.start = nil
	d.releaseCanvas()
	d.log.Debug("draw mode off", logging.Bool("gesture_discarded", wasDrawing))
	if wasDrawing && d.cb.OnCancel != nil {
		d.cb.OnCancel()
	}
}

func (d *Drawer) takeCanvas() {
	if d.canvas == nil {
		return
	}
	d.canvas.SetDragPan(false)
	d.canvas.SetCursor(CursorCrosshair)
}

func (d *Drawer) releaseCanvas() {
	if d.canvas == nil {
		return
	}
	d.canvas.SetDragPan(true)
	d.canvas.SetCursor(CursorDefault)
}
