package queue

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/review"
)

// startHydration runs a background content lookup for items. Must be called
// with e.mu held; the pass itself waits for the lock.
func (e *Engine) startHydration(ctx context.Context, items []review.Item) {
	if e.content == nil {
		return
	}
	targets := make([]review.Item, len(items))
	copy(targets, items)

	e.hydrating.Add(1)
	go func() {
		defer e.hydrating.Done()
		e.hydrate(context.WithoutCancel(ctx), targets)
	}()
}

// WaitHydration blocks until every started hydration pass has finished.
func (e *Engine) WaitHydration(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.hydrating.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hydrate fills author, content and popularity for targets. Values already
// known on a sibling with the same mapcode are copied first; only mapcodes
// still missing data are fetched. A result applies to the items whose
// mapcode is exactly its decimal id, as the queue is when it arrives.
func (e *Engine) hydrate(ctx context.Context, targets []review.Item) {
	var keys []string
	seen := make(map[string]bool)
	targetIDs := make(map[string]bool, len(targets))
	for _, it := range targets {
		targetIDs[it.ID] = true
		if _, ok := mapcode.NumericID(it.Mapcode); ok && !seen[it.Mapcode] {
			seen[it.Mapcode] = true
			keys = append(keys, it.Mapcode)
		}
	}
	if len(keys) == 0 {
		return
	}

	e.mu.Lock()
	groups := e.groupByMapcodeLocked()
	propagated := false
	var missing []int64
	requested := make(map[int64]bool)
	for _, key := range keys {
		group := groups[key]
		if propagateDonor(group) {
			propagated = true
		}
		if complete(group) {
			continue
		}
		if n, _ := mapcode.NumericID(key); !requested[n] {
			requested[n] = true
			missing = append(missing, n)
		}
	}
	if propagated {
		e.persistLocked(ctx)
	}
	issued := e.timestamp()
	e.mu.Unlock()

	if len(missing) == 0 {
		return
	}

	res, err := e.content.FetchContent(ctx, missing)
	if err != nil {
		e.logger.Debug("content lookup failed", zap.Error(err), zap.Int("ids", len(missing)))
		return
	}
	if res == nil || res.Error {
		e.logger.Debug("content lookup returned an error flag", zap.Int("ids", len(missing)))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	alive := false
	for i := range e.state.Items {
		if targetIDs[e.state.Items[i].ID] {
			alive = true
			break
		}
	}
	if !alive {
		return
	}

	now := e.timestamp()
	changed := 0
	groups = e.groupByMapcodeLocked()
	for _, entry := range res.Data {
		for _, it := range groups[strconv.FormatInt(entry.ID, 10)] {
			if applyEntry(it, entry, it.UpdatedAt.After(issued)) {
				it.UpdatedAt = now
				changed++
			}
		}
	}
	if changed > 0 {
		e.persistLocked(ctx)
		e.logger.Debug("hydrated items", zap.Int("changed", changed))
	}
}

// groupByMapcodeLocked groups the items that have a content-lookup id by
// their exact mapcode.
func (e *Engine) groupByMapcodeLocked() map[string][]*review.Item {
	groups := make(map[string][]*review.Item)
	for i := range e.state.Items {
		it := &e.state.Items[i]
		if _, ok := mapcode.NumericID(it.Mapcode); ok {
			groups[it.Mapcode] = append(groups[it.Mapcode], it)
		}
	}
	return groups
}

// propagateDonor copies known fields from the first populated item of group
// onto siblings that lack them.
func propagateDonor(group []*review.Item) bool {
	var donor *review.Item
	for _, it := range group {
		if hasText(it.XML) || hasText(it.Author) || it.P != nil {
			donor = it
			break
		}
	}
	if donor == nil {
		return false
	}

	changed := false
	for _, it := range group {
		if !hasText(it.Author) && hasText(donor.Author) {
			it.Author = review.Str(*donor.Author)
			changed = true
		}
		if !hasText(it.XML) && hasText(donor.XML) {
			it.XML = review.Str(*donor.XML)
			changed = true
		}
		if it.P == nil && donor.P != nil {
			p := *donor.P
			it.P = &p
			changed = true
		}
	}
	return changed
}

// complete reports whether every item of a non-empty group has author and content.
func complete(group []*review.Item) bool {
	if len(group) == 0 {
		return false
	}
	for _, it := range group {
		if !hasText(it.Author) || !hasText(it.XML) {
			return false
		}
	}
	return true
}

// applyEntry merges a lookup result into it. Empty or missing values never
// overwrite; when fresh is set, fields already populated are kept.
func applyEntry(it *review.Item, entry remote.ContentEntry, fresh bool) bool {
	changed := false
	if entry.Author != "" && !(fresh && hasText(it.Author)) && (it.Author == nil || *it.Author != entry.Author) {
		it.Author = review.Str(entry.Author)
		changed = true
	}
	if entry.XML != "" && !(fresh && hasText(it.XML)) && (it.XML == nil || *it.XML != entry.XML) {
		it.XML = review.Str(entry.XML)
		changed = true
	}
	if entry.P != nil && !(fresh && it.P != nil) && (it.P == nil || *it.P != *entry.P) {
		p := *entry.P
		it.P = &p
		changed = true
	}
	return changed
}

func hasText(s *string) bool {
	return s != nil && *s != ""
}
