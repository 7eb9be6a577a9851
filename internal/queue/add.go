package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/review"
)

// Candidate is a raw item offered to the queue. Only Mapcode is required;
// set fields override the defaults of a new item.
type Candidate struct {
	Mapcode         string
	Author          *string
	XML             *string
	P               *float64
	Submitter       *string
	ImportedIgnored *bool
	ImportedReason  *string
	CommandsUsed    []review.CommandMode
	Review          *string
	Decision        *category.Decision
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddOutput reports the items accepted by an add.
type AddOutput struct {
	Added  int           `json:"added"`
	Items  []review.Item `json:"items"`
	Status string        `json:"status"`
}

// AddItems validates, deduplicates and appends candidates, then starts
// hydration for the accepted items.
func (e *Engine) AddItems(ctx context.Context, candidates []Candidate, source string) *AddOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addItemsLocked(ctx, candidates, source)
}

// AddMapcodes deduplicates codes keeping order, then adds them.
func (e *Engine) AddMapcodes(ctx context.Context, codes []string, source string) *AddOutput {
	codes = mapcode.DedupeKeepOrder(codes)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(codes) == 0 {
		e.setStatus("Nothing to add.")
		return &AddOutput{Items: []review.Item{}, Status: e.status}
	}
	return e.addItemsLocked(ctx, codeCandidates(codes), source)
}

// AddText parses mapcodes out of free text and adds them.
func (e *Engine) AddText(ctx context.Context, text, source string) *AddOutput {
	return e.AddMapcodes(ctx, mapcode.ParseMany(text), source)
}

func (e *Engine) addItemsLocked(ctx context.Context, candidates []Candidate, source string) *AddOutput {
	out := &AddOutput{Items: []review.Item{}}
	if len(candidates) == 0 {
		e.setStatus("Nothing to add.")
		out.Status = e.status
		return out
	}

	now := e.timestamp()
	for _, c := range candidates {
		mc, ok := mapcode.Normalize(c.Mapcode)
		if !ok {
			continue
		}
		if e.state.Settings.Dedupe && !e.acceptsDuplicateLocked(mc, c.Submitter) {
			continue
		}
		it := c.item(e.newID(), mc, now)
		e.state.Items = append(e.state.Items, it)
		out.Items = append(out.Items, it.Clone())
	}
	out.Added = len(out.Items)

	if e.state.SelectedID == nil {
		if visible := e.visibleLocked(); len(visible) > 0 {
			e.state.SelectedID = review.Str(e.state.Items[visible[0]].ID)
		}
	}
	e.persistLocked(ctx)
	e.setStatus(fmt.Sprintf("Added %d mapcode(s) (%s).", out.Added, source))
	out.Status = e.status

	if out.Added > 0 {
		e.startHydration(ctx, out.Items)
	}
	return out
}

// acceptsDuplicateLocked reports whether mc may be added with dedupe on. A
// mapcode already queued is accepted again only for a new, non-empty submitter.
func (e *Engine) acceptsDuplicateLocked(mc string, submitter *string) bool {
	exists := false
	for i := range e.state.Items {
		if e.state.Items[i].Mapcode == mc {
			exists = true
			break
		}
	}
	if !exists {
		return true
	}

	sub := ""
	if submitter != nil {
		sub = strings.TrimSpace(*submitter)
	}
	if sub == "" {
		return false
	}
	for i := range e.state.Items {
		it := &e.state.Items[i]
		if it.Mapcode != mc {
			continue
		}
		if it.Submitter != nil && *it.Submitter == sub {
			return false
		}
	}
	return true
}

func (c Candidate) item(id, mc string, now time.Time) review.Item {
	it := review.NewItem(id, mc, now)
	it.Author = c.Author
	it.XML = c.XML
	it.P = c.P
	it.Submitter = c.Submitter
	it.ImportedIgnored = c.ImportedIgnored
	it.ImportedReason = c.ImportedReason
	if c.CommandsUsed != nil {
		it.CommandsUsed = append([]review.CommandMode{}, c.CommandsUsed...)
	}
	if c.Review != nil {
		it.Review = *c.Review
	}
	it.Decision = c.Decision
	if !c.CreatedAt.IsZero() {
		it.CreatedAt = c.CreatedAt.UTC()
	}
	if !c.UpdatedAt.IsZero() {
		it.UpdatedAt = c.UpdatedAt.UTC()
	}
	it = it.Clone()
	it.Reconcile()
	return it
}
