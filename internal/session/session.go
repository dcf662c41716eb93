// Package session implements the per-open-document edit session: local
// edit buffering, undo/redo history, debounced autosave, and best-effort
// flush on close.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ellsworth/fable/internal/apperr"
)

// State is the controller's position in the autosave state machine.
type State string

const (
	// StateClean means liveContent == lastPersistedContent.
	StateClean State = "clean"
	// StateDirty means the buffer diverged and the debounce timer is armed.
	StateDirty State = "dirty"
	// StateSaving means a persist call is in flight.
	StateSaving State = "saving"
	// StateSaveFailed means the last persist failed; the timer is re-armed
	// with backoff and the buffer is still dirty.
	StateSaveFailed State = "save_failed"
)

// Persister is the persistence call invoked after the debounce window.
// It must be safely retryable: persisting identical content twice is a
// no-op for the caller.
type Persister interface {
	Persist(ctx context.Context, documentID, content string) error
}

// PersistFunc adapts a function to the Persister interface.
type PersistFunc func(ctx context.Context, documentID, content string) error

func (f PersistFunc) Persist(ctx context.Context, documentID, content string) error {
	return f(ctx, documentID, content)
}

// Config holds the tunables of a controller.
type Config struct {
	// DebounceWindow is the quiescence period after the last edit before
	// a save is attempted.
	DebounceWindow time.Duration
	// HistoryLimit bounds the undo history; the oldest entry is dropped
	// on overflow.
	HistoryLimit int
	// MaxBackoff caps the retry delay after persist failures.
	MaxBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// Controller owns the ephemeral edit state of one open document. All
// mutation goes through its methods (single writer); the zero value is not
// usable, construct with NewController.
type Controller struct {
	documentID string
	persist    Persister
	cfg        Config

	mu            sync.Mutex
	state         State
	live          string
	lastPersisted string
	history       []string
	cursor        int
	timer         *time.Timer
	saving        bool
	inflight      chan struct{}
	closed        bool
	backoff       time.Duration
}

// NewController creates a controller for a document whose persisted body
// is initialContent. The history is seeded with the initial content so a
// single edit can be undone back to the pre-edit state.
func NewController(documentID, initialContent string, persist Persister, cfg Config) *Controller {
	return &Controller{
		documentID:    documentID,
		persist:       persist,
		cfg:           cfg.withDefaults(),
		state:         StateClean,
		live:          initialContent,
		lastPersisted: initialContent,
		history:       []string{initialContent},
		cursor:        0,
	}
}

// Snapshot is an observable copy of the controller state.
type Snapshot struct {
	DocumentID    string `json:"documentId"`
	State         State  `json:"state"`
	Live          string `json:"liveContent"`
	LastPersisted string `json:"-"`
	HistoryLen    int    `json:"historyLength"`
	Cursor        int    `json:"historyCursor"`
	CanUndo       bool   `json:"canUndo"`
	CanRedo       bool   `json:"canRedo"`
}

// Snapshot returns the current state for inspection.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		DocumentID:    c.documentID,
		State:         c.state,
		Live:          c.live,
		LastPersisted: c.lastPersisted,
		HistoryLen:    len(c.history),
		Cursor:        c.cursor,
		CanUndo:       c.cursor > 0,
		CanRedo:       c.cursor < len(c.history)-1,
	}
}

// Apply records an edit: the live buffer is replaced, the new content is
// pushed onto the history (truncating any redo tail), and the debounce
// timer is cancelled and re-armed.
func (c *Controller) Apply(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrSessionClosed
	}
	if content == c.live {
		return nil
	}

	c.live = content
	// Editing after undo discards the redo tail.
	c.history = append(c.history[:c.cursor+1], content)
	if len(c.history) > c.cfg.HistoryLimit {
		drop := len(c.history) - c.cfg.HistoryLimit
		c.history = append(c.history[:0:0], c.history[drop:]...)
	}
	c.cursor = len(c.history) - 1

	c.backoff = 0
	c.evaluateDirtyLocked(true)
	return nil
}

// Undo steps the cursor back one history entry without pushing a new one.
// Returns the live content after the step.
func (c *Controller) Undo() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", apperr.ErrSessionClosed
	}
	if c.cursor > 0 {
		c.cursor--
		c.live = c.history[c.cursor]
		c.evaluateDirtyLocked(false)
	}
	return c.live, nil
}

// Redo steps the cursor forward one history entry.
func (c *Controller) Redo() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", apperr.ErrSessionClosed
	}
	if c.cursor < len(c.history)-1 {
		c.cursor++
		c.live = c.history[c.cursor]
		c.evaluateDirtyLocked(false)
	}
	return c.live, nil
}

// evaluateDirtyLocked applies the dirty-check to the current buffer.
// rearm forces the debounce timer to restart; otherwise a timer is armed
// only when dirty and none is pending.
func (c *Controller) evaluateDirtyLocked(rearm bool) {
	if c.live == c.lastPersisted {
		if !c.saving {
			c.state = StateClean
		}
		return
	}
	if !c.saving {
		c.state = StateDirty
	}
	if rearm {
		c.stopTimerLocked()
	}
	if c.timer == nil {
		c.armTimerLocked(c.cfg.DebounceWindow)
	}
}

func (c *Controller) armTimerLocked(d time.Duration) {
	c.timer = time.AfterFunc(d, c.timerFired)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) timerFired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	if c.closed || c.saving {
		// An in-flight save re-evaluates dirtiness when it resolves.
		return
	}
	if c.live == c.lastPersisted {
		c.state = StateClean
		return
	}
	c.startSaveLocked()
}

// startSaveLocked issues the persist call for the current live content.
// At most one save is in flight per document.
func (c *Controller) startSaveLocked() {
	captured := c.live
	c.saving = true
	c.state = StateSaving
	done := make(chan struct{})
	c.inflight = done

	go func() {
		err := c.persist.Persist(context.Background(), c.documentID, captured)
		c.saveDone(captured, err)
		close(done)
	}()
}

func (c *Controller) saveDone(captured string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	c.inflight = nil

	if err != nil {
		// Live content is never dropped on persist failure; retry with
		// backoff via the re-armed timer.
		c.state = StateSaveFailed
		if c.backoff == 0 {
			c.backoff = c.cfg.DebounceWindow
		} else {
			c.backoff *= 2
			if c.backoff > c.cfg.MaxBackoff {
				c.backoff = c.cfg.MaxBackoff
			}
		}
		if !c.closed {
			c.stopTimerLocked()
			c.armTimerLocked(c.backoff)
		}
		return
	}

	// lastPersisted is the value captured when the save was issued; edits
	// typed during the in-flight save keep the session dirty.
	c.lastPersisted = captured
	c.backoff = 0
	if c.live == c.lastPersisted {
		c.state = StateClean
		return
	}
	c.state = StateDirty
	if !c.closed {
		c.stopTimerLocked()
		c.armTimerLocked(c.cfg.DebounceWindow)
	}
}

// Close cancels the pending timer, flushes unsaved content best-effort,
// and discards the session. The session is unusable afterward regardless
// of the flush outcome.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimerLocked()
	inflight := c.inflight
	c.mu.Unlock()

	// Let an in-flight save resolve before deciding whether a final
	// flush is needed.
	if inflight != nil {
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	dirty := c.live != c.lastPersisted
	captured := c.live
	c.mu.Unlock()
	if !dirty {
		return nil
	}

	err := c.persist.Persist(ctx, c.documentID, captured)
	if err == nil {
		c.mu.Lock()
		c.lastPersisted = captured
		c.state = StateClean
		c.mu.Unlock()
	}
	return err
}
