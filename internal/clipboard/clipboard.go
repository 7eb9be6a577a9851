// Package clipboard reads and writes the system clipboard and watches it for
// new text.
package clipboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/debounce"
)

const (
	// PollInterval is how often the watcher reads the clipboard.
	PollInterval = 600 * time.Millisecond

	// CaptureDelay is the quiet period before captured text is processed.
	CaptureDelay = 250 * time.Millisecond
)

// Reader reads clipboard text.
type Reader interface {
	ReadText() (string, error)
}

// Writer replaces clipboard text.
type Writer interface {
	WriteText(text string) error
}

// System is the OS clipboard.
type System struct{}

// ReadText returns the current clipboard text.
func (System) ReadText() (string, error) { return clipboard.ReadAll() }

// WriteText replaces the clipboard contents.
func (System) WriteText(text string) error { return clipboard.WriteAll(text) }

// Available reports whether the platform clipboard can be used.
func Available() bool { return !clipboard.Unsupported }

// Watcher polls a Reader and reports text changes.
type Watcher struct {
	r        Reader
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher. A zero interval means PollInterval.
func NewWatcher(r Reader, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{r: r, interval: interval, logger: logger}
}

// Run polls until ctx is done, calling emit with trimmed, non-empty text
// whenever it differs from the last emitted text. The first non-empty read
// is emitted too.
func (w *Watcher) Run(ctx context.Context, emit func(text string)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last string
	for {
		text, err := w.r.ReadText()
		if err != nil {
			w.logger.Debug("clipboard read failed", zap.Error(err))
		} else if t := strings.TrimSpace(text); t != "" && t != last {
			last = t
			emit(t)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Capture debounces clipboard text before handing it to a sink. Text equal
// to the last processed text is dropped.
type Capture struct {
	deb  *debounce.Debouncer
	sink func(text string)

	mu      sync.Mutex
	pending string
	last    string
}

// NewCapture creates a Capture with the given quiet period.
func NewCapture(delay time.Duration, sink func(text string)) *Capture {
	return &Capture{deb: debounce.New(delay), sink: sink}
}

// Offer schedules text for processing, replacing any text still waiting.
func (c *Capture) Offer(text string) {
	t := strings.TrimSpace(text)
	if t == "" {
		return
	}
	c.mu.Lock()
	c.pending = t
	c.mu.Unlock()
	c.deb.Call(c.flush)
}

// Stop drops any text still waiting.
func (c *Capture) Stop() {
	c.deb.Stop()
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}

func (c *Capture) flush() {
	c.mu.Lock()
	next := c.pending
	c.pending = ""
	if next == "" || next == c.last {
		c.mu.Unlock()
		return
	}
	c.last = next
	c.mu.Unlock()
	c.sink(next)
}
