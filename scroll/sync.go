package scroll

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/rich"
)

// Defaults for the synchronizer's timing.
const (
	DefaultGuard         = 300 * time.Millisecond
	DefaultFlashDuration = time.Second
)

// Editor is the source pane as seen by the synchronizer.
type Editor interface {
	Viewport() Viewport
	SetScrollTop(top float64)
	// LineOffset returns the vertical offset of a fractional source line.
	LineOffset(line float64) float64
	// SetManualScroll enables or disables user scrolling of the pane.
	SetManualScroll(enabled bool)
}

// Preview is the rendered pane as seen by the synchronizer.
type Preview interface {
	Viewport() Viewport
	SetScrollTop(top float64)
	// Flash briefly highlights the block rendered for n.
	Flash(n *rich.Node, d time.Duration)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithMode sets the preview-driven mapping mode.
func WithMode(m Mode) Option { return func(s *Synchronizer) { s.mode = m } }

// WithGuard sets how long echo scroll events from the other pane are
// ignored after a programmatic scroll.
func WithGuard(d time.Duration) Option { return func(s *Synchronizer) { s.guard = d } }

// WithFlashDuration sets the length of the gutter-click flash.
func WithFlashDuration(d time.Duration) Option { return func(s *Synchronizer) { s.flash = d } }

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Synchronizer) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(s *Synchronizer) { s.metrics = m } }

// Synchronizer maps scroll positions between the two panes. Each call takes
// the index of the currently committed tree.
type Synchronizer struct {
	editor  Editor
	preview Preview
	mode    Mode
	guard   time.Duration
	flash   time.Duration
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Collector

	mu        sync.Mutex
	driving   Side
	guardSeq  uint64
	fallback  bool
	evaluated bool
}

// New returns a synchronizer for the given panes.
func New(editor Editor, preview Preview, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		editor:  editor,
		preview: preview,
		guard:   DefaultGuard,
		flash:   DefaultFlashDuration,
		clock:   clock.Real(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the preview-driven mapping mode.
func (s *Synchronizer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the preview-driven mapping mode.
func (s *Synchronizer) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Driving returns the side that currently owns scrolling.
func (s *Synchronizer) Driving() Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driving
}

// Fallback reports whether the preview fits its viewport, in which case
// the source pane scrolls on its own and preview sync is suspended.
func (s *Synchronizer) Fallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

// drive marks side as driving until the guard expires. It returns false if
// the other side is driving, meaning the caller's event is an echo.
func (s *Synchronizer) drive(side Side) bool {
	if s.driving != None && s.driving != side {
		return false
	}
	s.driving = side
	s.guardSeq++
	seq := s.guardSeq
	s.clock.AfterFunc(s.guard, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.guardSeq == seq {
			s.driving = None
		}
	})
	return true
}

// ContentChanged re-evaluates scrollability after a commit or relayout and
// switches the source pane's manual scrolling on or off to match. It
// returns true when the fallback is active.
func (s *Synchronizer) ContentChanged(ix *rich.Index) bool {
	pv := s.preview.Viewport()
	if ix != nil {
		pv.Content = ix.ContentHeight()
	}
	fallback := !pv.Scrollable()

	s.mu.Lock()
	changed := !s.evaluated || fallback != s.fallback
	s.fallback = fallback
	s.evaluated = true
	s.mu.Unlock()

	if changed {
		s.log.Debug("scroll fallback changed", zap.Bool("fallback", fallback))
		s.editor.SetManualScroll(fallback)
	}
	return fallback
}

// PreviewScrolled follows a scroll of the preview with the source pane. It
// returns false when the event was ignored: an echo of a programmatic
// scroll, or the preview does not scroll.
func (s *Synchronizer) PreviewScrolled(ix *rich.Index) bool {
	pv := s.preview.Viewport()
	if !pv.Scrollable() {
		return false
	}
	s.mu.Lock()
	if s.fallback || !s.drive(PreviewSide) {
		s.mu.Unlock()
		return false
	}
	mode := s.mode
	s.mu.Unlock()

	ev := s.editor.Viewport()
	top := pv.Fraction() * ev.MaxScroll()
	if mode == ModeAnchored {
		if pos, ok := ix.LinePosAt(pv.Top); ok {
			top = ev.Clamp(s.editor.LineOffset(pos))
		} else {
			s.log.Debug("anchored sync missed, using fraction")
		}
	}
	s.editor.SetScrollTop(top)
	s.metrics.Synced("preview")
	return true
}

// PreviewClicked scrolls the source pane so that the line rendered nearest
// the click lands at the same height y in the source viewport. It returns
// the source line.
func (s *Synchronizer) PreviewClicked(ix *rich.Index, y float64) (int, bool) {
	pv := s.preview.Viewport()
	target := pv.Top + y
	e, ok := ix.Nearest(target)
	if !ok {
		return 0, false
	}
	line := float64(e.LineStart())
	if target >= e.Top && target < e.Bottom() {
		if pos, ok := ix.LinePosAt(target); ok {
			line = pos
		}
	}

	s.mu.Lock()
	ok = s.drive(PreviewSide)
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	ev := s.editor.Viewport()
	s.editor.SetScrollTop(ev.Clamp(s.editor.LineOffset(line) - y))
	s.metrics.Synced("click")
	return int(line), true
}

// GutterClicked scrolls the preview so that the block rendered for line
// sits at the height clickY where the gutter was clicked, and flashes it.
func (s *Synchronizer) GutterClicked(ix *rich.Index, line int, clickY float64) bool {
	offset, e, ok := ix.OffsetOf(line)
	if !ok {
		s.log.Debug("gutter line has no rendered block", zap.Int("line", line))
		return false
	}
	s.mu.Lock()
	ok = s.drive(EditorSide)
	s.mu.Unlock()
	if !ok {
		return false
	}
	pv := s.preview.Viewport()
	pv.Content = ix.ContentHeight()
	s.preview.SetScrollTop(pv.Clamp(offset - clickY))
	s.preview.Flash(e.Node, s.flash)
	s.metrics.Synced("gutter")
	s.log.Debug("gutter sync",
		zap.Int("line", line),
		zap.Stringer("node", e.Node),
		zap.Float64("offset", offset))
	return true
}

// EditorScrolled reports whether a scroll of the source pane should be
// applied. Echoes of programmatic scrolls are dropped, and the source pane
// only scrolls on its own while the fallback is active.
func (s *Synchronizer) EditorScrolled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driving == PreviewSide {
		return false
	}
	return s.fallback
}
