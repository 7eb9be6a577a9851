package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/report"
	"github.com/hpungsan/mapreview/internal/review"
)

// StartSession tears down any active session and starts a new one for a
// reviewed category. An empty method defaults to textarea.
func (e *Engine) StartSession(ctx context.Context, categoryCode string, method review.InputMethod) (*review.Session, error) {
	cat, ok := category.Find(categoryCode)
	if !ok || !cat.Reviewed {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("category %q cannot be reviewed", categoryCode))
	}
	if method == "" {
		method = review.InputTextarea
	}
	if !method.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown input method %q", method))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Items = []review.Item{}
	e.state.SelectedID = nil
	e.state.Session = &review.Session{
		Category:    cat.Code,
		InputMethod: method,
		StartedAt:   e.timestamp(),
	}
	e.state.ReviewOpen = true
	e.persistLocked(ctx)
	e.setStatus(fmt.Sprintf("Session started (%s).", cat.Code))
	return e.state.Session.Clone(), nil
}

// FinishCheck reports whether the session can be finished.
type FinishCheck struct {
	Active    bool     `json:"active"`
	Total     int      `json:"total"`
	Remaining int      `json:"remaining"`
	Mapcodes  []string `json:"mapcodes"`
	CanFinish bool     `json:"can_finish"`
}

// CheckFinish counts the undecided items.
func (e *Engine) CheckFinish() FinishCheck {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkFinishLocked()
}

func (e *Engine) checkFinishLocked() FinishCheck {
	c := FinishCheck{
		Active:   e.state.Session != nil,
		Total:    len(e.state.Items),
		Mapcodes: []string{},
	}
	for i := range e.state.Items {
		if e.state.Items[i].Decision == nil {
			c.Mapcodes = append(c.Mapcodes, e.state.Items[i].Mapcode)
		}
	}
	c.Remaining = len(c.Mapcodes)
	c.CanFinish = c.Active && c.Total > 0 && c.Remaining == 0
	return c
}

// FinishInput carries the collaborators used to finish a session.
// Submitter may be nil when no session service is configured. Votecrew and
// Private are passed through to the submission.
type FinishInput struct {
	Saver     Saver
	Submitter ReviewSubmitter
	Votecrew  bool
	Private   bool
}

// FinishOutput distinguishes the local save from the remote submission.
type FinishOutput struct {
	Cancelled  bool   `json:"cancelled"`
	Category   string `json:"category,omitempty"`
	SavedPath  string `json:"saved_path,omitempty"`
	Submitted  bool   `json:"submitted"`
	HTTPStatus int    `json:"http_status"`
	Message    string `json:"message,omitempty"`
	Status     string `json:"status"`
}

// Outcome converts the result for the session report.
func (o *FinishOutput) Outcome() *report.Outcome {
	return &report.Outcome{
		SavedPath:  o.SavedPath,
		Submitted:  o.Submitted,
		HTTPStatus: o.HTTPStatus,
		Message:    o.Message,
	}
}

// Finish saves the session export, submits it, and closes the session. Every
// item must have a decision. A cancelled save leaves everything as it was.
// Submission is best effort: its failure is reported, not returned.
func (e *Engine) Finish(ctx context.Context, input FinishInput) (*FinishOutput, error) {
	if input.Saver == nil {
		return nil, errors.NewInvalidRequest("a saver is required to finish")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Session == nil {
		return nil, errors.NewNoSession()
	}
	check := e.checkFinishLocked()
	if check.Total == 0 {
		return nil, errors.NewInvalidRequest("add maps to the queue before finishing")
	}
	if check.Remaining > 0 {
		return nil, errors.NewUndecidedItems(check.Mapcodes)
	}

	cat := e.state.Session.Category
	now := e.timestamp()
	payload := export.Build(e.state, now, export.Options{IncludeXML: false})

	path, err := input.Saver.Save(ctx, export.DefaultFileName(export.KindSession, cat, now), payload)
	if err != nil {
		e.setStatus(fmt.Sprintf("Failed to finish review: %v", err))
		return nil, err
	}
	if path == "" {
		return &FinishOutput{Cancelled: true, Category: cat, Status: e.status}, nil
	}

	out := &FinishOutput{Category: cat, SavedPath: path}
	if input.Submitter == nil {
		out.Message = "session service not configured"
	} else {
		token := ""
		if t := e.state.Settings.AuthToken; t != nil {
			token = *t
		}
		res, err := input.Submitter.SubmitReview(ctx, cat, payload, remote.SubmitOptions{
			UserToken:     token,
			Votecrew:      input.Votecrew,
			PostAsPrivate: input.Private,
		})
		switch {
		case err != nil:
			out.Message = err.Error()
			e.logger.Warn("review submission failed", zap.String("category", cat), zap.Error(err))
		case res != nil:
			out.Submitted = res.OK
			out.HTTPStatus = res.Status
			if res.Error != nil {
				out.Message = *res.Error
			} else if res.Body != nil {
				out.Message = *res.Body
			}
		}
	}

	e.endSessionLocked(ctx)
	e.setStatus(fmt.Sprintf("Session saved: %s", path))
	out.Status = e.status
	return out, nil
}

// CancelInput optionally exports the session before it is discarded.
type CancelInput struct {
	Saver Saver
}

// CancelOutput reports a cancel.
type CancelOutput struct {
	Aborted   bool   `json:"aborted"`
	SavedPath string `json:"saved_path,omitempty"`
	Status    string `json:"status"`
}

// Cancel discards the active session. With a Saver the session is exported
// first; cancelling that save aborts the cancel.
func (e *Engine) Cancel(ctx context.Context, input CancelInput) (*CancelOutput, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Session == nil {
		return nil, errors.NewNoSession()
	}

	out := &CancelOutput{}
	if input.Saver != nil {
		now := e.timestamp()
		payload := export.Build(e.state, now, export.Options{IncludeXML: false})
		path, err := input.Saver.Save(ctx, export.DefaultFileName(export.KindSession, e.state.Session.Category, now), payload)
		if err != nil {
			e.setStatus(fmt.Sprintf("Failed to export JSON: %v", err))
			return nil, err
		}
		if path == "" {
			out.Aborted = true
			out.Status = e.status
			return out, nil
		}
		out.SavedPath = path
	}

	e.endSessionLocked(ctx)
	if out.SavedPath != "" {
		e.setStatus("Session exported and closed.")
	} else {
		e.setStatus("Session cancelled.")
	}
	out.Status = e.status
	return out, nil
}

// LeaveToHome hides the review screen. The session and queue stay intact.
func (e *Engine) LeaveToHome(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ReviewOpen = false
	e.persistLocked(ctx)
	if e.state.Session != nil {
		e.setStatus("Left session (still active).")
	}
}

// ReturnToSession reopens the review screen of the active session.
func (e *Engine) ReturnToSession(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Session == nil {
		return errors.NewNoSession()
	}
	e.state.ReviewOpen = true
	e.persistLocked(ctx)
	return nil
}
