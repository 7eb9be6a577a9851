// Package queue is the review queue and session engine. It owns the
// application state and is the only writer of it; every exported method runs
// under one mutex and persists after mutating.
package queue

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/review"
	"github.com/hpungsan/mapreview/internal/state"
)

// ContentFetcher looks up author, content and popularity by numeric map id.
type ContentFetcher interface {
	FetchContent(ctx context.Context, ids []int64) (*remote.ContentResponse, error)
}

// SessionFetcher downloads the open session of a category.
type SessionFetcher interface {
	FetchSession(ctx context.Context, categoryType string) (*remote.SessionResult, error)
}

// ReviewSubmitter posts a finished session.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, categoryType string, payload *export.Payload, opts remote.SubmitOptions) (*remote.SubmitResult, error)
}

// TokenValidator checks a personal user token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*remote.AuthResult, error)
}

// Saver writes an export document. An empty path with a nil error means the
// user cancelled.
type Saver interface {
	Save(ctx context.Context, suggested string, payload any) (string, error)
}

// CommandSender delivers an outbound command line.
type CommandSender interface {
	Send(ctx context.Context, command string) error
}

// Options configures an Engine.
type Options struct {
	Store   *state.Store   // nil keeps state in memory only
	Content ContentFetcher // nil disables hydration
	Logger  *zap.Logger
	GOOS    string // platform defaults when Store is nil; default runtime.GOOS

	Now   func() time.Time
	NewID func() string
}

// Engine owns the queue, the session, the selection and the settings.
type Engine struct {
	mu      sync.Mutex
	state   *review.AppState
	status  string
	store   *state.Store
	content ContentFetcher
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	hydrating sync.WaitGroup
}

// New loads the persisted state and returns an engine over it.
func New(ctx context.Context, opts Options) *Engine {
	e := &Engine{
		store:   opts.Store,
		content: opts.Content,
		logger:  opts.Logger,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = review.NewID
	}

	if e.store != nil {
		e.state = e.store.Load(ctx)
	} else {
		goos := opts.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		e.state = review.FreshState(goos)
	}
	return e
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *review.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Status returns the last status line.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() review.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Settings.Clone()
}

// Selected returns a copy of the selected item, or nil.
func (e *Engine) Selected() *review.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	if it := e.selectedLocked(); it != nil {
		c := it.Clone()
		return &c
	}
	return nil
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

func (e *Engine) setStatus(msg string) {
	e.status = msg
	e.logger.Debug("status", zap.String("status", msg))
}

// persistLocked saves the state. Failures are logged; the in-memory state
// stays authoritative.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, e.state); err != nil {
		e.logger.Warn("state save failed", zap.Error(err))
	}
}

func (e *Engine) selectedLocked() *review.Item {
	if e.state.SelectedID == nil {
		return nil
	}
	if i := e.state.FindItem(*e.state.SelectedID); i >= 0 {
		return &e.state.Items[i]
	}
	return nil
}

// endSessionLocked clears the session and the queue.
func (e *Engine) endSessionLocked(ctx context.Context) {
	e.state.Session = nil
	e.state.Items = []review.Item{}
	e.state.SelectedID = nil
	e.state.ReviewOpen = false
	e.persistLocked(ctx)
}
