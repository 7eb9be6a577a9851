package queue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/review"
)

// UpdateSelected applies mut to the selected item, bumps its updatedAt and
// restores its invariants. It reports false when nothing is selected.
func (e *Engine) UpdateSelected(ctx context.Context, mut func(it *review.Item)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateSelectedLocked(ctx, mut) != nil
}

// updateSelectedLocked returns a copy of the updated item, or nil when
// nothing is selected. An item the mutation hides loses the selection.
func (e *Engine) updateSelectedLocked(ctx context.Context, mut func(it *review.Item)) *review.Item {
	it := e.selectedLocked()
	if it == nil {
		return nil
	}
	mut(it)
	it.UpdatedAt = e.timestamp()
	it.Reconcile()
	out := it.Clone()

	e.fixSelectionLocked()
	e.persistLocked(ctx)
	return &out
}

// SetDecision sets or clears the decision of the selected item. The decision
// must be allowed by the active session's category.
func (e *Engine) SetDecision(ctx context.Context, d *category.Decision) (*review.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d != nil {
		if !d.Valid() {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown decision %q", *d))
		}
		if s := e.state.Session; s != nil {
			if cat, ok := category.Find(s.Category); ok && !cat.Allows(*d) {
				return nil, errors.NewDecisionNotAllowed(string(*d), cat.Code)
			}
		}
	}

	out := e.updateSelectedLocked(ctx, func(it *review.Item) {
		it.Decision = nil
		if d != nil {
			it.Decision = review.DecisionPtr(*d)
		}
	})
	if out == nil {
		return nil, errors.NewInvalidRequest("no item selected")
	}
	return out, nil
}

// SetReview replaces the review comment of the selected item.
func (e *Engine) SetReview(ctx context.Context, text string) (*review.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.updateSelectedLocked(ctx, func(it *review.Item) { it.Review = text })
	if out == nil {
		return nil, errors.NewInvalidRequest("no item selected")
	}
	return out, nil
}

// RecordCommand sends the load command of the selected item and, on
// success, appends the command mode to its log. The send runs without the
// engine lock.
func (e *Engine) RecordCommand(ctx context.Context, sender CommandSender, source string) (string, error) {
	e.mu.Lock()
	it := e.selectedLocked()
	if it == nil {
		e.setStatus("No mapcode selected.")
		e.mu.Unlock()
		return "", errors.NewInvalidRequest("no mapcode selected")
	}
	id := it.ID
	mode := e.state.Settings.CommandMode
	cmd := mode.Command(it.Mapcode)
	e.mu.Unlock()

	err := sender.Send(ctx, cmd)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setStatus(fmt.Sprintf("Failed to send (%s): %v", source, err))
		return "", errors.NewUpstream("command sender", err)
	}
	if i := e.state.FindItem(id); i >= 0 {
		item := &e.state.Items[i]
		item.CommandsUsed = append(item.CommandsUsed, mode)
		item.UpdatedAt = e.timestamp()
		e.persistLocked(ctx)
	}
	e.setStatus(fmt.Sprintf("Sent (%s): %s", source, cmd))
	return cmd, nil
}

// UpdateSettings applies mut to the settings. An invalid command mode is
// rejected and nothing changes.
func (e *Engine) UpdateSettings(ctx context.Context, mut func(s *review.Settings)) (review.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Settings.Clone()
	mut(&next)
	if !next.CommandMode.Valid() {
		return e.state.Settings.Clone(), errors.NewInvalidRequest(fmt.Sprintf("unknown command mode %q", next.CommandMode))
	}
	e.state.Settings = next
	e.fixSelectionLocked()
	e.persistLocked(ctx)
	return next.Clone(), nil
}

// AuthOutput reports a token validation.
type AuthOutput struct {
	OK     bool             `json:"ok"`
	User   *remote.AuthUser `json:"user,omitempty"`
	Status string           `json:"status"`
}

// Authenticate validates token and stores it with the user id on success.
// A rejected token clears the stored credentials; a transport failure
// leaves them as they were.
func (e *Engine) Authenticate(ctx context.Context, validator TokenValidator, token string) (*AuthOutput, error) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return nil, errors.NewInvalidRequest("token is required")
	}

	res, err := validator.ValidateToken(ctx, tok)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.setStatus(fmt.Sprintf("Failed to validate token: %v", err))
		return nil, errors.NewUpstream("auth", err)
	}
	if res == nil || !res.OK || res.User == nil {
		e.state.Settings.AuthToken = nil
		e.state.Settings.AuthUserID = nil
		e.persistLocked(ctx)
		msg := "Invalid token."
		if res != nil && res.Error != "" {
			msg = "Invalid token. " + res.Error
		}
		e.setStatus(msg)
		return &AuthOutput{Status: e.status}, nil
	}

	e.state.Settings.AuthToken = review.Str(tok)
	e.state.Settings.AuthUserID = review.Str(res.User.ID)
	e.persistLocked(ctx)
	e.setStatus("Token is valid.")
	e.logger.Info("authenticated", zap.String("user_id", res.User.ID))
	return &AuthOutput{OK: true, User: res.User, Status: e.status}, nil
}

// ClearAuth forgets the stored token and user id.
func (e *Engine) ClearAuth(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Settings.AuthToken = nil
	e.state.Settings.AuthUserID = nil
	e.persistLocked(ctx)
}

// ExportOutput reports a backup export.
type ExportOutput struct {
	Cancelled bool   `json:"cancelled"`
	Path      string `json:"path,omitempty"`
	Items     int    `json:"items"`
}

// Export writes a backup of the current state. Nothing is mutated.
func (e *Engine) Export(ctx context.Context, saver Saver, includeXML bool) (*ExportOutput, error) {
	if saver == nil {
		return nil, errors.NewInvalidRequest("a saver is required to export")
	}

	e.mu.Lock()
	now := e.timestamp()
	payload := export.Build(e.state, now, export.Options{IncludeXML: includeXML})
	cat := ""
	if e.state.Session != nil {
		cat = e.state.Session.Category
	}
	e.mu.Unlock()

	path, err := saver.Save(ctx, export.DefaultFileName(export.KindBackup, cat, now), payload)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if path == "" {
		return &ExportOutput{Cancelled: true}, nil
	}
	e.setStatus(fmt.Sprintf("Exported: %s", path))
	return &ExportOutput{Path: path, Items: len(payload.Items)}, nil
}
