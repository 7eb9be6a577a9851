package queue

import (
	"context"

	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/review"
)

// Visible returns copies of the items shown in the queue.
func (e *Engine) Visible() []review.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.visibleLocked()
	out := make([]review.Item, len(idx))
	for i, j := range idx {
		out[i] = e.state.Items[j].Clone()
	}
	return out
}

// visibleLocked returns the indexes of visible items. Ignored items are
// hidden when showIgnoredInQueue is off.
func (e *Engine) visibleLocked() []int {
	out := make([]int, 0, len(e.state.Items))
	for i := range e.state.Items {
		if !e.state.Settings.ShowIgnoredInQueue && e.state.Items[i].Hidden() {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Select selects the item with the given id. An empty id clears the selection.
func (e *Engine) Select(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == "" {
		e.state.SelectedID = nil
	} else {
		if e.state.FindItem(id) < 0 {
			return errors.NewNotFound(id)
		}
		e.state.SelectedID = review.Str(id)
	}
	e.persistLocked(ctx)
	return nil
}

// SelectRelative moves the selection delta steps through the visible items,
// wrapping at both ends. It returns the new selection, or nil when nothing
// is visible.
func (e *Engine) SelectRelative(ctx context.Context, delta int) *review.Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	visible := e.visibleLocked()
	n := len(visible)
	if n == 0 {
		return nil
	}

	base := 0
	if sel := e.state.SelectedID; sel != nil {
		for pos, i := range visible {
			if e.state.Items[i].ID == *sel {
				base = pos
				break
			}
		}
	}
	next := ((base+delta)%n + n) % n
	it := &e.state.Items[visible[next]]
	e.state.SelectedID = review.Str(it.ID)
	e.persistLocked(ctx)

	c := it.Clone()
	return &c
}

// SetShowIgnored toggles whether ignored items are listed. A selection that
// becomes hidden moves to the first visible item.
func (e *Engine) SetShowIgnored(ctx context.Context, show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Settings.ShowIgnoredInQueue = show
	e.fixSelectionLocked()
	e.persistLocked(ctx)
}

// fixSelectionLocked moves a hidden or dangling selection to the first
// visible item, or clears it when nothing is visible.
func (e *Engine) fixSelectionLocked() {
	sel := e.state.SelectedID
	if sel == nil {
		return
	}
	visible := e.visibleLocked()
	for _, i := range visible {
		if e.state.Items[i].ID == *sel {
			return
		}
	}
	if len(visible) == 0 {
		e.state.SelectedID = nil
		return
	}
	e.state.SelectedID = review.Str(e.state.Items[visible[0]].ID)
}
