// Package massaction sends one command per mapcode on a timer, for bulk
// category changes.
package massaction

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/mapcode"
)

const (
	MinInterval     = 100 * time.Millisecond
	MaxInterval     = time.Second
	DefaultInterval = 300 * time.Millisecond
	intervalStep    = 100 * time.Millisecond
)

// Sender delivers one outbound command line.
type Sender interface {
	Send(ctx context.Context, command string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, command string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, command string) error { return f(ctx, command) }

// Status is a snapshot of the runner.
type Status struct {
	Total    int           `json:"total"`
	Done     int           `json:"done"`
	Current  *string       `json:"current"`
	Last     *string       `json:"last"`
	Running  bool          `json:"running"`
	InFlight bool          `json:"in_flight"`
	Finished bool          `json:"finished"`
	Interval time.Duration `json:"-"`
	Message  string        `json:"message"`

	IntervalMillis int64 `json:"interval_ms"`
}

// Runner walks a mapcode list, sending one command per entry. At most one
// command is outstanding at any time.
type Runner struct {
	sender Sender
	logger *zap.Logger

	mu       sync.Mutex
	target   *Target
	codes    []string
	index    int
	lastSent int
	running  bool
	inFlight bool
	interval time.Duration
	message  string

	// gen changes whenever the list or position is replaced, so a send that
	// completes afterwards does not move the new position.
	gen uint64

	runCtx   context.Context
	stop     chan struct{}
	loopDone chan struct{}
	sends    sync.WaitGroup
}

// NewRunner creates an idle runner.
func NewRunner(sender Sender, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sender:   sender,
		logger:   logger,
		lastSent: -1,
		interval: ClampInterval(interval),
		message:  "Load a list and choose a category.",
	}
}

// ClampInterval rounds d to a 100ms step within [MinInterval, MaxInterval].
// Zero means DefaultInterval.
func ClampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultInterval
	}
	steps := math.Round(float64(d) / float64(intervalStep))
	out := time.Duration(steps) * intervalStep
	return max(MinInterval, min(MaxInterval, out))
}

// Load stops the loop and replaces the list with the deduplicated codes.
func (r *Runner) Load(codes []string, source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.codes = mapcode.DedupeKeepOrder(codes)
	r.gen++
	r.index = 0
	r.lastSent = -1
	r.message = fmt.Sprintf("Loaded %d map(s) from %s.", len(r.codes), source)
	return len(r.codes)
}

// Clear stops the loop and empties the list.
func (r *Runner) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.codes = nil
	r.gen++
	r.index = 0
	r.lastSent = -1
	r.message = "Cleared."
}

// SetTarget selects what is sent for each entry.
func (r *Runner) SetTarget(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = &t
}

// SetInterval changes the tick interval and returns the clamped value.
// A running loop restarts at the new pace without losing its position.
func (r *Runner) SetInterval(d time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = ClampInterval(d)
	if r.running {
		close(r.stop)
		r.startLocked(r.runCtx)
	}
	return r.interval
}

// Play starts the loop. Playing an already running loop is a no-op.
func (r *Runner) Play(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return err
	}
	if r.index >= len(r.codes) {
		r.message = "Already finished. Reset or load a new list."
		return errors.NewInvalidRequest(r.message)
	}
	if r.running {
		return nil
	}
	r.running = true
	r.startLocked(ctx)
	r.message = "Running."
	return nil
}

// Pause stops the loop. An in-flight command still completes.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.stopLocked()
		r.message = "Paused."
	}
}

// Reset rewinds to the start of the list. It is refused while the loop runs
// or a command is in flight.
func (r *Runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.inFlight {
		r.message = "Pause first to reset."
		return errors.NewLoopRunning("reset")
	}
	r.gen++
	r.index = 0
	r.lastSent = -1
	r.message = "Reset."
	return nil
}

// Next sends the next unsent entry and advances. It returns the command, or
// "" when nothing was sent.
func (r *Runner) Next(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return "", nil
	}
	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return "", err
	}
	if r.index >= len(r.codes) {
		r.message = "Done."
		r.mu.Unlock()
		return "", nil
	}
	idx := r.index
	r.mu.Unlock()
	return r.sendAt(ctx, idx, "manual")
}

// Prev steps back one entry and sends it again.
func (r *Runner) Prev(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return "", nil
	}
	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return "", err
	}
	if r.lastSent < 0 {
		r.message = "Nothing sent yet."
		r.mu.Unlock()
		return "", nil
	}
	idx := max(r.lastSent-1, 0)
	r.mu.Unlock()
	return r.sendAt(ctx, idx, "prev")
}

// PlayCurrent sends the last sent entry again, or the next one when nothing
// has been sent.
func (r *Runner) PlayCurrent(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.lastSent < 0 {
		r.mu.Unlock()
		return r.Next(ctx)
	}
	if r.inFlight {
		r.mu.Unlock()
		return "", nil
	}
	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return "", err
	}
	idx := r.lastSent
	r.mu.Unlock()
	return r.sendAt(ctx, idx, "replay")
}

// Status returns a snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		Total:    len(r.codes),
		Done:     min(r.index, len(r.codes)),
		Running:  r.running,
		InFlight: r.inFlight,
		Finished: len(r.codes) > 0 && r.index >= len(r.codes),
		Interval: r.interval,
		Message:  r.message,

		IntervalMillis: r.interval.Milliseconds(),
	}
	if r.index < len(r.codes) {
		c := r.codes[r.index]
		s.Current = &c
	}
	if r.lastSent >= 0 && r.lastSent < len(r.codes) {
		l := r.codes[r.lastSent]
		s.Last = &l
	}
	return s
}

// Wait blocks until the loop stops and no command is in flight.
func (r *Runner) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		done := r.loopDone
		running := r.running
		r.mu.Unlock()

		if !running || done == nil {
			break
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		r.sends.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) readyLocked() error {
	if r.target == nil {
		return errors.NewInvalidRequest("choose a category or command prefix first")
	}
	if len(r.codes) == 0 {
		r.message = "No maps loaded."
		return errors.NewInvalidRequest(r.message)
	}
	return nil
}

func (r *Runner) startLocked(ctx context.Context) {
	r.runCtx = ctx
	r.stop = make(chan struct{})
	r.loopDone = make(chan struct{})
	go r.loop(ctx, r.stop, r.loopDone, r.interval)
}

func (r *Runner) stopLocked() {
	if r.running {
		close(r.stop)
		r.running = false
	}
}

func (r *Runner) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.stop == stop {
				r.running = false
				r.message = "Stopped."
			}
			r.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			if r.tick(ctx, stop) {
				return
			}
		}
	}
}

// tick sends the next entry unless a command is still in flight. It reports
// true when the list is exhausted and the loop has stopped.
func (r *Runner) tick(ctx context.Context, stop <-chan struct{}) bool {
	r.mu.Lock()
	if r.stop != stop || !r.running {
		r.mu.Unlock()
		return true
	}
	if r.inFlight {
		r.mu.Unlock()
		return false
	}
	if r.index >= len(r.codes) {
		r.running = false
		r.message = "Done."
		r.mu.Unlock()
		return true
	}
	idx := r.index
	r.inFlight = true
	r.sends.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.sends.Done()
		r.deliver(ctx, idx, "auto")
	}()
	return false
}

// sendAt performs a manual send of entry idx.
func (r *Runner) sendAt(ctx context.Context, idx int, label string) (string, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return "", nil
	}
	r.inFlight = true
	r.sends.Add(1)
	r.mu.Unlock()

	defer r.sends.Done()
	return r.deliver(ctx, idx, label)
}

// deliver sends entry idx. inFlight must already be set; it is cleared here.
// The position advances past idx whether or not the send succeeded.
func (r *Runner) deliver(ctx context.Context, idx int, label string) (string, error) {
	r.mu.Lock()
	if idx >= len(r.codes) {
		r.inFlight = false
		r.mu.Unlock()
		return "", nil
	}
	gen := r.gen
	cmd := r.target.Command(r.codes[idx])
	r.mu.Unlock()

	err := r.sender.Send(ctx, cmd)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false
	if gen == r.gen {
		r.lastSent = idx
		r.index = idx + 1
	}
	if err != nil {
		r.message = fmt.Sprintf("%s: failed (%v)", label, err)
		r.logger.Warn("mass action send failed", zap.String("command", cmd), zap.Error(err))
		return cmd, errors.NewUpstream("command sender", err)
	}
	r.message = fmt.Sprintf("%s: sent %s", label, cmd)
	r.logger.Debug("mass action sent", zap.String("command", cmd), zap.String("mode", label))
	return cmd, nil
}
