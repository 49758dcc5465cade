// Package annotate reconciles content-derived annotations against the
// server. Two independent streams are extracted from the live document on a
// shared debounce: inline tag markers, and cross-note mentions. Each stream
// diffs against its last-known persisted set and issues minimal batched
// add/remove calls, with a per-stream in-flight guard so the editor's own
// mutation of decorated nodes cannot re-trigger a sync loop.
package annotate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tangle/pkg/doc"
	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// DefaultDebounce is the quiet period after the last edit before extraction
// runs.
const DefaultDebounce = 500 * time.Millisecond

// Engine owns the annotation sync for one open note. Each open editor gets
// its own engine so debounce timers never collide across notes.
type Engine struct {
	mu sync.Mutex

	gw     gateway.Gateway
	log    *logrus.Logger
	noteID string

	debounce time.Duration
	timer    *time.Timer
	pending  *doc.Node
	closed   bool

	// Per-stream state. Keys: lowercase tag name, link target note id.
	persistedTags  map[string]models.Tag
	persistedLinks map[string]models.Link
	tagsInFlight   bool
	linksInFlight  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an annotation sync engine for a note, seeded with the
// note's persisted tag and link sets.
func NewEngine(gw gateway.Gateway, noteID string, tags []models.Tag, links []models.Link, opts ...Option) *Engine {
	e := &Engine{
		gw:       gw,
		log:      logrus.New(),
		noteID:   noteID,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.SetPersisted(tags, links)
	return e
}

// SetPersisted replaces the last-known persisted sets, e.g. after the note
// was reloaded.
func (e *Engine) SetPersisted(tags []models.Tag, links []models.Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persistedTags = make(map[string]models.Tag, len(tags))
	for _, t := range tags {
		e.persistedTags[strings.ToLower(t.Name)] = t
	}
	e.persistedLinks = make(map[string]models.Link, len(links))
	for _, l := range links {
		e.persistedLinks[l.ToNoteID] = l
	}
}

// PersistedTags returns the last-known persisted tag set.
func (e *Engine) PersistedTags() []models.Tag {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Tag, 0, len(e.persistedTags))
	for _, t := range e.persistedTags {
		out = append(out, t)
	}
	return out
}

// PersistedLinks returns the last-known persisted link set.
func (e *Engine) PersistedLinks() []models.Link {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Link, 0, len(e.persistedLinks))
	for _, l := range e.persistedLinks {
		out = append(out, l)
	}
	return out
}

// DocumentChanged records the latest document state and (re)arms the shared
// debounce timer. Rapid successive edits coalesce into one extraction using
// the final state.
func (e *Engine) DocumentChanged(d *doc.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pending = d
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.fire)
}

// fire runs when the debounce window elapses.
func (e *Engine) fire() {
	e.mu.Lock()
	d := e.pending
	e.pending = nil
	closed := e.closed
	e.mu.Unlock()
	if closed || d == nil {
		return
	}
	e.Sync(context.Background(), d)
}

// Sync extracts both annotation streams from the document and reconciles
// each against its persisted set. The streams run independently: a tag sync
// in flight never blocks a mention sync. Network failures are logged and
// absorbed; the next edit reconciles again from the live document.
func (e *Engine) Sync(ctx context.Context, d *doc.Node) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.syncTags(ctx, d.TagMarkers())
	}()
	go func() {
		defer wg.Done()
		e.syncLinks(ctx, d.NoteMentions())
	}()
	wg.Wait()
}

// syncTags reconciles the tag stream. Only UserAdded tags are auto-removed
// when their marker disappears; AI-suggested tags stay until the user
// removes them deliberately.
func (e *Engine) syncTags(ctx context.Context, markers []doc.TagMarker) {
	e.mu.Lock()
	if e.tagsInFlight {
		// Re-entrant extraction while a sync is in flight: drop it to
		// prevent a feedback loop.
		e.mu.Unlock()
		return
	}

	extracted := make(map[string]string, len(markers))
	for _, m := range markers {
		extracted[strings.ToLower(m.Value)] = m.Value
	}

	var toAdd, toRemove []string
	for key, value := range extracted {
		if _, ok := e.persistedTags[key]; !ok {
			toAdd = append(toAdd, value)
		}
	}
	for key, tag := range e.persistedTags {
		if _, ok := extracted[key]; ok {
			continue
		}
		if tag.Origin != models.OriginUserAdded {
			continue
		}
		toRemove = append(toRemove, tag.Name)
	}

	if len(toAdd) == 0 && len(toRemove) == 0 {
		e.mu.Unlock()
		return
	}
	e.tagsInFlight = true
	e.mu.Unlock()

	var authoritative []models.Tag
	var synced bool
	var err error
	if len(toRemove) > 0 {
		authoritative, err = e.gw.RemoveTags(ctx, e.noteID, toRemove)
		synced = err == nil
	}
	if err == nil && len(toAdd) > 0 {
		authoritative, err = e.gw.AddTags(ctx, e.noteID, toAdd)
		synced = err == nil
	}

	e.mu.Lock()
	e.tagsInFlight = false
	if synced {
		e.persistedTags = make(map[string]models.Tag, len(authoritative))
		for _, t := range authoritative {
			e.persistedTags[strings.ToLower(t.Name)] = t
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.log.WithError(err).WithField("note", e.noteID).Warn("tag sync failed, will retry on next edit")
	}
}

// syncLinks reconciles the mention stream against the persisted link set.
func (e *Engine) syncLinks(ctx context.Context, mentions []doc.Mention) {
	e.mu.Lock()
	if e.linksInFlight {
		e.mu.Unlock()
		return
	}

	mentioned := make(map[string]bool, len(mentions))
	for _, m := range mentions {
		mentioned[m.TargetID] = true
	}

	var toAdd, toRemove []string
	for id := range mentioned {
		if _, ok := e.persistedLinks[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range e.persistedLinks {
		if !mentioned[id] {
			toRemove = append(toRemove, id)
		}
	}

	if len(toAdd) == 0 && len(toRemove) == 0 {
		e.mu.Unlock()
		return
	}
	e.linksInFlight = true
	e.mu.Unlock()

	var authoritative []models.Link
	var synced bool
	var err error
	if len(toRemove) > 0 {
		authoritative, err = e.gw.RemoveLinks(ctx, e.noteID, toRemove)
		synced = err == nil
	}
	if err == nil && len(toAdd) > 0 {
		authoritative, err = e.gw.AddLinks(ctx, e.noteID, toAdd)
		synced = err == nil
	}

	e.mu.Lock()
	e.linksInFlight = false
	if synced {
		e.persistedLinks = make(map[string]models.Link, len(authoritative))
		for _, l := range authoritative {
			e.persistedLinks[l.ToNoteID] = l
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.log.WithError(err).WithField("note", e.noteID).Warn("link sync failed, will retry on next edit")
	}
}

// Close cancels any pending debounce without a final sync. Losing an
// unflushed extraction on explicit navigation is the accepted tradeoff; the
// next open reconciles from the live document anyway.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil
}
