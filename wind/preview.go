// Package wind composes the render engine into a two-pane markdown window:
// a source editor on one side and its rendered preview on the other.
package wind

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/rich"
	"github.com/rjkroege/markpane/scroll"
)

// View is the rendered preview surface.
type View interface {
	scroll.Preview
	// Replace swaps the displayed document. The view must not modify t.
	Replace(t *rich.Tree, ix *rich.Index)
}

// Pane owns the committed snapshot shown in a View and keeps the view's
// scroll offset steady each time the snapshot is replaced.
type Pane struct {
	view   View
	layout rich.LayoutOptions
	log    *zap.Logger

	mu   sync.Mutex
	snap *Snapshot
}

// NewPane returns a pane drawing into view.
func NewPane(view View, layout rich.LayoutOptions, log *zap.Logger) *Pane {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pane{view: view, layout: layout, log: log}
}

// Commit lays out t, replaces the view's document with it and restores
// the scroll offset the view had before the swap, clamped to the new
// content. Heights measured for unchanged blocks of the previous snapshot
// carry over. The first tree and trees marked Large return the view to the
// top instead. Commit takes ownership of t.
func (p *Pane) Commit(t *rich.Tree) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	top := p.view.Viewport().Top
	prev := p.snap
	if prev == nil || t.Large {
		top = 0
	} else if n := rich.CarryHeights(prev.Tree, t); n > 0 {
		p.log.Debug("carried block heights", zap.Int("blocks", n))
	}
	return p.swapLocked(t, top)
}

// Relayout applies heights measured after the last commit, keyed by nodes
// of the current snapshot, and redisplays it at the same scroll offset. It
// returns nil when none of the nodes belong to the current snapshot.
func (p *Pane) Relayout(heights map[*rich.Node]float64) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil
	}
	apply := make(map[*rich.Node]float64, len(heights))
	for n, h := range heights {
		if _, ok := p.snap.Index.Lookup(n); ok && n.Height != h {
			apply[n] = h
		}
	}
	if len(apply) == 0 {
		return nil
	}
	return p.swapLocked(p.snap.Tree.WithHeights(apply), p.view.Viewport().Top)
}

// SetLayout changes the preview geometry and lays the current snapshot out
// again at the same scroll offset.
func (p *Pane) SetLayout(o rich.LayoutOptions) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layout = o
	if p.snap == nil {
		return nil
	}
	return p.swapLocked(p.snap.Tree, p.view.Viewport().Top)
}

func (p *Pane) swapLocked(t *rich.Tree, top float64) *Snapshot {
	ix := rich.Layout(t, p.layout)
	p.snap = &Snapshot{Tree: t, Index: ix}
	p.view.Replace(t, ix)

	vp := p.view.Viewport()
	vp.Content = ix.ContentHeight()
	restored := math.Min(math.Max(top, 0), vp.MaxScroll())
	p.view.SetScrollTop(restored)
	p.log.Debug("preview replaced",
		zap.Uint64("generation", t.Generation),
		zap.Float64("top", restored),
		zap.Float64("height", vp.Content))
	return p.snap
}

// Snapshot returns the displayed snapshot, or nil before the first commit.
func (p *Pane) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Index returns the geometric index of the displayed snapshot.
func (p *Pane) Index() *rich.Index {
	if s := p.Snapshot(); s != nil {
		return s.Index
	}
	return nil
}
