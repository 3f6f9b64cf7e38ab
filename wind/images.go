package wind

import (
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/rich"
)

// maxImageRows bounds the rows an image may occupy in the preview.
const maxImageRows = 24

// imageHeights returns the measured heights of t's images that are already
// cached. With load set, images not yet cached start loading and relayout
// the preview when they arrive.
func (w *Window) imageHeights(t *rich.Tree, load bool) map[*rich.Node]float64 {
	heights := make(map[*rich.Node]float64)
	t.Root.Walk(func(n *rich.Node, _ int) bool {
		if n.Kind != rich.KindImage || n.Src == "" {
			return true
		}
		path := w.resolve(n.Src)
		var ci rich.CachedImage
		if load {
			ci, _ = w.images.LoadAsync(path, w.imageLoaded)
		} else {
			ci, _ = w.images.Get(path)
		}
		if h, ok := w.imageHeight(ci); ok {
			heights[n] = h
		}
		return true
	})
	return heights
}

func (w *Window) imageHeight(ci rich.CachedImage) (float64, bool) {
	if ci.Loading || ci.Path == "" {
		return 0, false
	}
	lh := w.layout.LineHeight
	if lh <= 0 {
		lh = 1
	}
	if ci.Err != nil {
		return lh, true
	}
	rows := math.Min(math.Max(1, math.Ceil(float64(ci.Height)/lh)), maxImageRows)
	return rows * lh, true
}

// imageLoaded runs when a background image measurement finishes.
func (w *Window) imageLoaded(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.pane.Snapshot()
	if snap == nil {
		return
	}
	if ci, ok := w.images.Get(path); ok && ci.Err != nil {
		w.log.Info("image unavailable", zap.String("image", path), zap.Error(ci.Err))
	}
	if next := w.pane.Relayout(w.imageHeights(snap.Tree, false)); next != nil {
		w.sync.ContentChanged(next.Index)
	}
}

// resolve interprets an image reference relative to the document.
func (w *Window) resolve(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(filepath.Dir(w.path), src)
}
