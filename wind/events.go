package wind

import (
	"context"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/locate"
	"github.com/rjkroege/markpane/rich"
)

// Edited schedules a render of the editor's new contents.
func (w *Window) Edited(text string) error {
	return w.sched.Mutate(text)
}

// Resync reloads the document after it changed outside the editor. It is
// ignored while the user is typing in the editor, so an external write
// never clobbers unsaved input. It reports whether the text was applied.
func (w *Window) Resync(text string) bool {
	if w.editor.HasFocus() {
		w.log.Debug("resync skipped, editor has focus")
		return false
	}
	if text == w.editor.Source() {
		return false
	}
	w.editor.SetText(text)
	if err := w.sched.Mutate(text); err != nil {
		w.log.Warn("resync", zap.Error(err))
		return false
	}
	return true
}

// PreviewScrolled follows a user scroll of the preview in the editor.
func (w *Window) PreviewScrolled() bool {
	return w.sync.PreviewScrolled(w.pane.Index())
}

// EditorScrolled reports whether a user scroll of the editor is honoured.
func (w *Window) EditorScrolled() bool {
	return w.sync.EditorScrolled()
}

// PreviewClicked scrolls the editor so the source of the block at preview
// offset y lines up with the click. It returns that source line.
func (w *Window) PreviewClicked(y float64) (int, bool) {
	return w.sync.PreviewClicked(w.pane.Index(), y)
}

// GutterClicked scrolls the preview to source line, keeping it at clickY,
// and flashes the block found there.
func (w *Window) GutterClicked(line int, clickY float64) bool {
	return w.sync.GutterClicked(w.pane.Index(), line, clickY)
}

// PreviewSelected highlights the source of text selected in the preview.
func (w *Window) PreviewSelected(sel locate.Selection) (locate.Highlight, bool) {
	snap := w.pane.Snapshot()
	if snap == nil {
		return locate.Highlight{}, false
	}
	return w.locator.LocateSelection(snap.Tree, sel)
}

// PreviewWordClicked highlights the source of the word under a click in
// the preview.
func (w *Window) PreviewWordClicked(c locate.Click) (locate.Highlight, bool) {
	snap := w.pane.Snapshot()
	if snap == nil {
		return locate.Highlight{}, false
	}
	return w.locator.LocateClick(snap.Tree, c)
}

// SetDiagramTransform records a user pan or zoom of diagram n. The state
// lives with the cached raster and, when a store is configured, survives
// the session.
func (w *Window) SetDiagramTransform(ctx context.Context, n *rich.Node, t rich.Transform) error {
	w.sched.Cache().SetTransform(n.Source, t)
	if w.store == nil {
		return nil
	}
	return w.store.Put(ctx, DiagramID(w.path, n), t)
}
