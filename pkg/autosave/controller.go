// Package autosave drives debounced persistence of an open note: dirty-state
// detection against the loaded baseline, a save-status state machine, manual
// save triggers, and the one-shot tag-suggestion request after a successful
// save.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// Status is the save-status state machine:
// Idle -> Saving -> Saved | Error, Saved -> Saving on the next change,
// Error -> Saving on retry.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// DefaultDebounce is the quiet period after a dirty change before a save
// fires.
const DefaultDebounce = 3 * time.Second

// DefaultSuggestMinContent is the minimum plain-content length before a
// tag-suggestion job is worth submitting.
const DefaultSuggestMinContent = 120

// Controller tracks one open note. Each open editor owns its controller so
// debounce timers never collide across notes.
type Controller struct {
	mu sync.Mutex

	gw     gateway.Gateway
	log    *logrus.Logger
	noteID string

	debounce time.Duration
	timer    *time.Timer
	closed   bool

	initialTitle   string
	initialContent string
	initialState   string
	title          string
	content        string
	state          string

	status  Status
	savedAt time.Time
	saving  bool

	tagCount          int
	suggestMinContent int
	suggestPending    bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the autosave debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithSuggestMinContent overrides the suggestion content threshold.
func WithSuggestMinContent(n int) Option {
	return func(c *Controller) { c.suggestMinContent = n }
}

// NewController creates a controller baselined on a freshly loaded note.
func NewController(gw gateway.Gateway, note *models.NoteDocument, opts ...Option) *Controller {
	c := &Controller{
		gw:                gw,
		log:               logrus.New(),
		noteID:            note.ID,
		debounce:          DefaultDebounce,
		initialTitle:      note.Title,
		initialContent:    note.Content,
		initialState:      note.SerializedState,
		title:             note.Title,
		content:           note.Content,
		state:             note.SerializedState,
		status:            StatusIdle,
		tagCount:          len(note.Tags),
		suggestMinContent: DefaultSuggestMinContent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current save status and, when Saved, the time of the
// last successful save.
func (c *Controller) Status() (Status, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.savedAt
}

// Dirty reports whether the current fields differ from the loaded baseline.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

func (c *Controller) dirtyLocked() bool {
	return c.title != c.initialTitle ||
		c.content != c.initialContent ||
		c.state != c.initialState
}

// SetTagCount updates the known tag count, used to gate tag suggestions.
func (c *Controller) SetTagCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagCount = n
}

// Update records a field change. A change that makes the note dirty
// (re)arms the debounce timer — it is cancelled and restarted, never
// stacked. A change that reverts the note to its baseline disarms the timer
// and settles the status without any network call.
func (c *Controller) Update(title, content, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.title = title
	c.content = content
	c.state = state

	if !c.dirtyLocked() {
		// The user typed and then reverted. Settle without a network call.
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.status = StatusSaved
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

// fire runs when the debounce window elapses. A failed save is not retried
// automatically; the next edit or a manual save retries.
func (c *Controller) fire() {
	c.mu.Lock()
	c.timer = nil
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if err := c.save(context.Background()); err != nil {
		c.log.WithError(err).WithField("note", c.noteID).Warn("autosave failed")
	}
}

// SaveNow saves immediately, bypassing the debounce (the manual save
// shortcut). A save already in flight makes this a no-op.
func (c *Controller) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.save(ctx)
}

func (c *Controller) save(ctx context.Context) error {
	c.mu.Lock()
	if c.saving {
		c.mu.Unlock()
		return nil
	}
	if !c.dirtyLocked() {
		c.status = StatusSaved
		c.mu.Unlock()
		return nil
	}

	title, content, state := c.title, c.content, c.state
	c.saving = true
	c.status = StatusSaving
	c.mu.Unlock()

	note, err := c.gw.UpdateNote(ctx, c.noteID, gateway.NotePatch{
		Title:           &title,
		Content:         &content,
		SerializedState: &state,
	})

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.status = StatusError
		c.mu.Unlock()
		return fmt.Errorf("save note %s: %w", c.noteID, err)
	}

	c.initialTitle = title
	c.initialContent = content
	c.initialState = state
	c.status = StatusSaved
	c.savedAt = time.Now()
	if note != nil {
		c.tagCount = len(note.Tags)
	}

	suggest := len(content) >= c.suggestMinContent &&
		c.tagCount == 0 &&
		!c.suggestPending
	if suggest {
		c.suggestPending = true
	}
	c.mu.Unlock()

	if suggest {
		go c.requestSuggestions(content)
	}
	return nil
}

// requestSuggestions submits the one-shot tag-suggestion job. Fire and
// forget: cooldowns and failures are silent, and the suggested tags arrive
// through the note's tag set when the collaborator finishes.
func (c *Controller) requestSuggestions(content string) {
	jobID, err := c.gw.SuggestTags(context.Background(), c.noteID)
	if err != nil {
		c.mu.Lock()
		if !errors.Is(err, gateway.ErrCooldown) {
			// Allow a later save to try again.
			c.suggestPending = false
		}
		c.mu.Unlock()
		c.log.WithError(err).WithField("note", c.noteID).Debug("tag suggestion request failed")
		return
	}
	c.log.WithFields(logrus.Fields{"note": c.noteID, "job": jobID}).Debug("tag suggestion job submitted")
}

// Close cancels any pending debounce without a final forced save. Explicit
// navigation away accepts losing the unflushed edit window.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
