// Package gatewaytest provides an in-memory Gateway for tests. It models
// just enough of the server: a folder hierarchy with computed counts, note
// lists per folder, tag and link sets per note, and a suggestion job table.
// Calls are counted per method, and any method can be forced to fail.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// Fake is an in-memory gateway.Gateway.
type Fake struct {
	mu sync.Mutex

	folders map[string]*gateway.Folder
	notes   map[string][]models.NoteRef // folder id, "" = uncategorized
	docs    map[string]*models.NoteDocument
	tags    map[string][]models.Tag
	links   map[string][]models.Link

	calls    map[string]int
	errs     map[string]error
	lastArgs map[string][]string

	cooldown  bool
	jobs      map[string]*gateway.SuggestionResult
	jobSeq    int
	folderSeq int

	// OnCall, when set, runs at the start of every gateway method with the
	// method name, before the fake takes its own lock.
	OnCall func(method string)
}

var _ gateway.Gateway = (*Fake)(nil)

// New creates an empty fake gateway.
func New() *Fake {
	return &Fake{
		folders:  make(map[string]*gateway.Folder),
		notes:    make(map[string][]models.NoteRef),
		docs:     make(map[string]*models.NoteDocument),
		tags:     make(map[string][]models.Tag),
		links:    make(map[string][]models.Link),
		calls:    make(map[string]int),
		errs:     make(map[string]error),
		lastArgs: make(map[string][]string),
		jobs:     make(map[string]*gateway.SuggestionResult),
	}
}

// AddFolder seeds a folder. An empty parentID makes it a root.
func (f *Fake) AddFolder(id, name, parentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder := &gateway.Folder{ID: id, Name: name}
	if parentID != "" {
		folder.ParentID = &parentID
	}
	f.folders[id] = folder
}

// AddNote seeds a note reference in a folder ("" = uncategorized).
func (f *Fake) AddNote(folderID string, ref models.NoteRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref.FolderID = folderID
	f.notes[folderID] = append(f.notes[folderID], ref)
}

// SetDoc seeds a full note document.
func (f *Fake) SetDoc(doc *models.NoteDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *doc
	f.docs[d.ID] = &d
	f.tags[d.ID] = append([]models.Tag(nil), doc.Tags...)
	f.links[d.ID] = append([]models.Link(nil), doc.Links...)
}

// FailWith forces a method (by name, e.g. "Children") to return err.
// A nil err clears the failure.
func (f *Fake) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// SetCooldown makes SuggestTags return ErrCooldown.
func (f *Fake) SetCooldown(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cooldown = on
}

// CompleteJob marks a suggestion job as finished with the given tags.
func (f *Fake) CompleteJob(jobID string, tags []models.Tag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = &gateway.SuggestionResult{
		JobID: jobID,
		State: gateway.JobCompleted,
		Tags:  tags,
	}
}

// Calls returns how many times a method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Tags returns the current tag set of a note.
func (f *Fake) Tags(noteID string) []models.Tag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tag(nil), f.tags[noteID]...)
}

// Links returns the current link set of a note.
func (f *Fake) Links(noteID string) []models.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Link(nil), f.links[noteID]...)
}

// LastArgs records the argument list of the most recent call per method.
func (f *Fake) LastArgs(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastArgs[method]
}

func (f *Fake) enter(method string, args ...string) error {
	if f.OnCall != nil {
		f.OnCall(method)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	f.lastArgs[method] = args
	return f.errs[method]
}

// snapshot returns a shallow copy of a folder with live counts and no
// embedded children or notes, matching a shallow listing.
func (f *Fake) snapshot(folder *gateway.Folder) *gateway.Folder {
	out := *folder
	out.Children = nil
	out.Notes = nil
	out.ChildFolderCount = 0
	for _, other := range f.folders {
		if other.ParentID != nil && *other.ParentID == folder.ID {
			out.ChildFolderCount++
		}
	}
	out.NoteCount = len(f.notes[folder.ID])
	return &out
}

func (f *Fake) Roots(ctx context.Context, includeNotes, includeFullTree bool) ([]*gateway.Folder, error) {
	if err := f.enter("Roots"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.Folder
	for _, folder := range f.folders {
		if folder.ParentID == nil {
			out = append(out, f.snapshot(folder))
		}
	}
	return out, nil
}

func (f *Fake) Children(ctx context.Context, parentID string, includeNotes bool) ([]*gateway.Folder, error) {
	if err := f.enter("Children", parentID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.Folder
	for _, folder := range f.folders {
		if folder.ParentID != nil && *folder.ParentID == parentID {
			out = append(out, f.snapshot(folder))
		}
	}
	return out, nil
}

func (f *Fake) FolderNotes(ctx context.Context, folderID string) ([]models.NoteRef, error) {
	if err := f.enter("FolderNotes", folderID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.NoteRef(nil), f.notes[folderID]...), nil
}

func (f *Fake) CreateFolder(ctx context.Context, name, color, parentID string) (*gateway.Folder, error) {
	if err := f.enter("CreateFolder", name, parentID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folderSeq++
	folder := &gateway.Folder{
		ID:    fmt.Sprintf("folder-%d", f.folderSeq),
		Name:  name,
		Color: color,
	}
	if parentID != "" {
		folder.ParentID = &parentID
	}
	f.folders[folder.ID] = folder
	return f.snapshot(folder), nil
}

func (f *Fake) UpdateFolder(ctx context.Context, id string, patch gateway.FolderPatch) (*gateway.Folder, error) {
	if err := f.enter("UpdateFolder", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	if patch.Name != nil {
		folder.Name = *patch.Name
	}
	if patch.Color != nil {
		folder.Color = *patch.Color
	}
	if patch.MoveToRoot {
		folder.ParentID = nil
	} else if patch.ParentID != nil {
		pid := *patch.ParentID
		folder.ParentID = &pid
	}
	return f.snapshot(folder), nil
}

func (f *Fake) DeleteFolder(ctx context.Context, id string) error {
	if err := f.enter("DeleteFolder", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folders, id)
	delete(f.notes, id)
	return nil
}

func (f *Fake) Note(ctx context.Context, id string) (*models.NoteDocument, error) {
	if err := f.enter("Note", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	out := *doc
	out.Tags = append([]models.Tag(nil), f.tags[id]...)
	out.Links = append([]models.Link(nil), f.links[id]...)
	return &out, nil
}

func (f *Fake) UpdateNote(ctx context.Context, id string, patch gateway.NotePatch) (*models.NoteDocument, error) {
	if err := f.enter("UpdateNote", id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[id]
	if !ok {
		doc = &models.NoteDocument{ID: id}
		f.docs[id] = doc
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	if patch.SerializedState != nil {
		doc.SerializedState = *patch.SerializedState
	}

	if patch.MoveToUncategorized || patch.FolderID != nil {
		target := ""
		if !patch.MoveToUncategorized && patch.FolderID != nil {
			target = *patch.FolderID
		}
		ref := models.NoteRef{ID: id, Title: doc.Title}
		for folderID, refs := range f.notes {
			for i, r := range refs {
				if r.ID == id {
					ref = r
					f.notes[folderID] = append(refs[:i:i], refs[i+1:]...)
					break
				}
			}
		}
		ref.FolderID = target
		f.notes[target] = append(f.notes[target], ref)
		doc.FolderID = target
	}

	out := *doc
	out.Tags = append([]models.Tag(nil), f.tags[id]...)
	out.Links = append([]models.Link(nil), f.links[id]...)
	return &out, nil
}

func (f *Fake) DeleteNote(ctx context.Context, id string) error {
	if err := f.enter("DeleteNote", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	for folderID, refs := range f.notes {
		for i, r := range refs {
			if r.ID == id {
				f.notes[folderID] = append(refs[:i:i], refs[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *Fake) AddTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error) {
	if err := f.enter("AddTags", names...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		if f.hasTag(noteID, name) {
			continue
		}
		f.tags[noteID] = append(f.tags[noteID], models.Tag{
			ID:     "tag-" + strings.ToLower(name),
			Name:   name,
			Origin: models.OriginUserAdded,
		})
	}
	return append([]models.Tag(nil), f.tags[noteID]...), nil
}

func (f *Fake) RemoveTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error) {
	if err := f.enter("RemoveTags", names...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[strings.ToLower(name)] = true
	}
	kept := f.tags[noteID][:0]
	for _, t := range f.tags[noteID] {
		if !drop[strings.ToLower(t.Name)] {
			kept = append(kept, t)
		}
	}
	f.tags[noteID] = kept
	return append([]models.Tag(nil), kept...), nil
}

func (f *Fake) AddLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error) {
	if err := f.enter("AddLinks", targetNoteIDs...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, target := range targetNoteIDs {
		if f.hasLink(noteID, target) {
			continue
		}
		link := models.Link{ID: "link-" + target, ToNoteID: target}
		if doc, ok := f.docs[target]; ok {
			link.ToNoteTitle = doc.Title
		}
		f.links[noteID] = append(f.links[noteID], link)
	}
	return append([]models.Link(nil), f.links[noteID]...), nil
}

func (f *Fake) RemoveLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error) {
	if err := f.enter("RemoveLinks", targetNoteIDs...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(targetNoteIDs))
	for _, id := range targetNoteIDs {
		drop[id] = true
	}
	kept := f.links[noteID][:0]
	for _, l := range f.links[noteID] {
		if !drop[l.ToNoteID] {
			kept = append(kept, l)
		}
	}
	f.links[noteID] = kept
	return append([]models.Link(nil), kept...), nil
}

func (f *Fake) SuggestTags(ctx context.Context, noteID string) (string, error) {
	if err := f.enter("SuggestTags", noteID); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cooldown {
		return "", gateway.ErrCooldown
	}
	f.jobSeq++
	jobID := fmt.Sprintf("job-%d", f.jobSeq)
	f.jobs[jobID] = &gateway.SuggestionResult{JobID: jobID, State: gateway.JobPending}
	return jobID, nil
}

func (f *Fake) SuggestionStatus(ctx context.Context, jobID string) (*gateway.SuggestionResult, error) {
	if err := f.enter("SuggestionStatus", jobID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.jobs[jobID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	out := *result
	return &out, nil
}

func (f *Fake) hasTag(noteID, name string) bool {
	for _, t := range f.tags[noteID] {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func (f *Fake) hasLink(noteID, target string) bool {
	for _, l := range f.links[noteID] {
		if l.ToNoteID == target {
			return true
		}
	}
	return false
}
