// Package editor ties one open note's components together: the loaded
// document, its annotation sync engine, and its autosave controller. Every
// open note gets its own session, so debounce timers never collide between
// editors.
package editor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tangle/pkg/annotate"
	"tangle/pkg/autosave"
	"tangle/pkg/doc"
	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// Session is one note opened for editing.
type Session struct {
	Note   *models.NoteDocument
	Engine *annotate.Engine
	Saver  *autosave.Controller
}

// Options tunes the session's components. Zero values take the package
// defaults.
type Options struct {
	Log             *logrus.Logger
	AnnotateOptions []annotate.Option
	AutosaveOptions []autosave.Option
}

// Open fetches the note and wires up its engine and controller.
func Open(ctx context.Context, gw gateway.Gateway, noteID string, opts Options) (*Session, error) {
	note, err := gw.Note(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("open note %s: %w", noteID, err)
	}

	aOpts := opts.AnnotateOptions
	sOpts := opts.AutosaveOptions
	if opts.Log != nil {
		aOpts = append(aOpts, annotate.WithLogger(opts.Log))
		sOpts = append(sOpts, autosave.WithLogger(opts.Log))
	}

	return &Session{
		Note:   note,
		Engine: annotate.NewEngine(gw, note.ID, note.Tags, note.Links, aOpts...),
		Saver:  autosave.NewController(gw, note, sOpts...),
	}, nil
}

// Apply feeds an edited document into the session: the autosave controller
// sees the new title/content/state, and the annotation engine sees the new
// document for extraction.
func (s *Session) Apply(title string, d *doc.Node) error {
	serialized, err := d.Serialize()
	if err != nil {
		return err
	}
	s.Saver.Update(title, d.PlainText(), serialized)
	s.Engine.DocumentChanged(d)
	return nil
}

// SaveNow forces an immediate save and a synchronous annotation sync from
// the given document, bypassing both debounce windows. Used by the CLI where
// the process exits right after editing.
func (s *Session) SaveNow(ctx context.Context, d *doc.Node) error {
	if err := s.Saver.SaveNow(ctx); err != nil {
		return err
	}
	s.Engine.Sync(ctx, d)
	return nil
}

// Close cancels pending debounce timers without a final forced save.
func (s *Session) Close() {
	s.Engine.Close()
	s.Saver.Close()
}
