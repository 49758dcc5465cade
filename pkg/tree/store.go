package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"tangle/pkg/cache"
	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// ErrFolderNotFound is returned when an operation names a folder that is not
// in the loaded tree.
var ErrFolderNotFound = errors.New("folder not found in tree")

// ErrUnsafeMove is returned when a folder move cannot be validated against
// the loaded tree: the target is the source, a loaded descendant of the
// source, or the source's subtree is not loaded deeply enough to rule out a
// cycle.
var ErrUnsafeMove = errors.New("move rejected: would create a cycle or cannot be validated")

// Store owns the in-memory folder/note hierarchy. It is the single writer of
// tree structure; move and delete flows go through its operations so the
// ordering and sorting invariants are enforced in one place.
//
// Folders load lazily: a node's children and notes are fetched on first
// expansion, and until then only the server-reported counts are trustworthy.
type Store struct {
	mu sync.Mutex

	gw     gateway.Gateway
	state  *cache.Store
	userID string
	log    *logrus.Logger

	roots       []*models.TreeNode
	rootsLoaded bool

	uncategorized       []models.NoteRef
	uncategorizedLoaded bool
}

// Option configures a Store.
type Option func(*Store)

// WithStateCache attaches the advisory expansion/notes cache, scoped to a
// user identity.
func WithStateCache(c *cache.Store, userID string) Option {
	return func(s *Store) {
		s.state = c
		s.userID = userID
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a tree store backed by the given gateway.
func NewStore(gw gateway.Gateway, opts ...Option) *Store {
	s := &Store{gw: gw, log: logrus.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roots returns the current root folders. The returned slice must be treated
// as read-only.
func (s *Store) Roots() []*models.TreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roots
}

// Uncategorized returns the loaded notes that belong to no folder.
func (s *Store) Uncategorized() []models.NoteRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uncategorized
}

// LoadRoots fetches the root folders and restores cached tree shape: folders
// the user had expanded are re-expanded (fetching their children), and cached
// note lists are reused instead of refetched. Fails open: on a root fetch
// failure the tree is left empty and the error is returned.
func (s *Store) LoadRoots(ctx context.Context) ([]*models.TreeNode, error) {
	folders, err := s.gw.Roots(ctx, false, false)
	if err != nil {
		s.mu.Lock()
		s.roots = nil
		s.rootsLoaded = false
		s.mu.Unlock()
		return nil, fmt.Errorf("load root folders: %w", err)
	}

	nodes := make([]*models.TreeNode, 0, len(folders))
	for _, f := range folders {
		nodes = append(nodes, nodeFromFolder(f))
	}
	sortLevel(nodes)

	expanded := s.cachedExpansion()

	s.mu.Lock()
	s.roots = nodes
	s.rootsLoaded = true
	s.mu.Unlock()

	if len(expanded) > 0 {
		s.restoreExpansion(ctx, nodes, expanded)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roots, nil
}

// cachedExpansion reads the persisted expanded-folder set, treating any cache
// failure as a cold start.
func (s *Store) cachedExpansion() map[string]bool {
	if s.state == nil {
		return nil
	}
	if err := s.state.CleanupExpired(s.userID); err != nil {
		s.log.WithError(err).Debug("state cache cleanup failed")
	}
	expanded, err := s.state.ExpandedFolders(s.userID)
	if err != nil {
		s.log.WithError(err).Warn("could not read cached expansion state")
		return nil
	}
	return expanded
}

// restoreExpansion re-expands previously expanded folders level by level,
// loading children as needed. Failures are non-fatal: the folder is simply
// left collapsed.
func (s *Store) restoreExpansion(ctx context.Context, nodes []*models.TreeNode, expanded map[string]bool) {
	for _, n := range nodes {
		if !expanded[n.ID] {
			continue
		}
		if err := s.Toggle(ctx, n.ID); err != nil {
			s.log.WithError(err).WithField("folder", n.ID).Warn("could not restore expanded folder")
			continue
		}
		s.mu.Lock()
		children := n.ChildFolders
		s.mu.Unlock()
		s.restoreExpansion(ctx, children, expanded)
	}
}

// Toggle flips a folder's expanded state. Expanding a folder whose contents
// were never loaded fetches them first; the Loading flag makes a second
// toggle during an in-flight load a no-op rather than a duplicate fetch. On
// fetch failure the folder reverts to collapsed and the error is returned.
func (s *Store) Toggle(ctx context.Context, folderID string) error {
	s.mu.Lock()
	node, _ := s.findFolder(folderID)
	if node == nil {
		s.mu.Unlock()
		return fmt.Errorf("toggle %s: %w", folderID, ErrFolderNotFound)
	}
	if node.Loading {
		s.mu.Unlock()
		return nil
	}

	if node.Expanded {
		node.Expanded = false
		s.mu.Unlock()
		s.persistExpansion()
		return nil
	}

	node.Expanded = true
	needChildren := !node.ChildrenLoaded && node.ChildFolderCount > 0
	needNotes := !node.NotesLoaded && node.NoteCount > 0

	// Serve notes from the cache when a fresh snapshot exists.
	if needNotes && s.state != nil {
		if notes, ok := s.state.FolderNotes(s.userID, folderID); ok {
			node.Notes = notes
			node.NotesLoaded = true
			needNotes = false
		}
	}

	if !needChildren && !needNotes {
		node.ChildrenLoaded = true
		node.NotesLoaded = true
		s.mu.Unlock()
		s.persistExpansion()
		return nil
	}

	node.Loading = true
	s.mu.Unlock()

	var (
		children []*gateway.Folder
		notes    []models.NoteRef
		err      error
	)
	if needChildren {
		children, err = s.gw.Children(ctx, folderID, false)
	}
	if err == nil && needNotes {
		notes, err = s.gw.FolderNotes(ctx, folderID)
	}

	s.mu.Lock()
	node.Loading = false
	if err != nil {
		node.Expanded = false
		s.mu.Unlock()
		return fmt.Errorf("load folder %s: %w", folderID, err)
	}

	if needChildren {
		node.ChildFolders = mergeFolderLevel(node.ChildFolders, children, folderID)
	}
	if needNotes {
		node.Notes = notes
	}
	node.ChildrenLoaded = true
	node.NotesLoaded = true
	s.mu.Unlock()

	s.persistExpansion()
	if needNotes {
		s.persistNotes(folderID, notes)
	}
	return nil
}

// LoadUncategorized fetches the notes that belong to no folder, serving a
// fresh cache snapshot when one exists.
func (s *Store) LoadUncategorized(ctx context.Context) ([]models.NoteRef, error) {
	if s.state != nil {
		if notes, ok := s.state.FolderNotes(s.userID, ""); ok {
			s.mu.Lock()
			s.uncategorized = notes
			s.uncategorizedLoaded = true
			s.mu.Unlock()
			return notes, nil
		}
	}

	notes, err := s.gw.FolderNotes(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load uncategorized notes: %w", err)
	}

	s.mu.Lock()
	s.uncategorized = notes
	s.uncategorizedLoaded = true
	s.mu.Unlock()

	s.persistNotes("", notes)
	return notes, nil
}

// InsertFolder places a created folder into the tree: into the root list when
// parentID is empty, otherwise into the matching parent's children. The
// parent is expanded so the new folder is visible, and the level is re-sorted.
func (s *Store) InsertFolder(parentID string, f *gateway.Folder) error {
	node := nodeFromFolder(f)

	s.mu.Lock()
	if parentID == "" {
		node.ParentID = ""
		s.roots = append(s.roots, node)
		sortLevel(s.roots)
		s.mu.Unlock()
		return nil
	}

	parent, _ := s.findFolder(parentID)
	if parent == nil {
		s.mu.Unlock()
		return fmt.Errorf("insert into %s: %w", parentID, ErrFolderNotFound)
	}
	node.ParentID = parentID
	parent.ChildFolders = append(parent.ChildFolders, node)
	parent.ChildFolderCount++
	parent.Expanded = true
	sortLevel(parent.ChildFolders)
	s.mu.Unlock()

	s.persistExpansion()
	return nil
}

// RenameOrRecolor updates a folder's display fields in place, re-sorting its
// level when the name changed.
func (s *Store) RenameOrRecolor(folderID, name, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, parent := s.findFolder(folderID)
	if node == nil {
		return fmt.Errorf("rename %s: %w", folderID, ErrFolderNotFound)
	}

	renamed := name != "" && name != node.Name
	if renamed {
		node.Name = name
	}
	if color != "" {
		node.Color = color
	}

	if renamed {
		if parent != nil {
			sortLevel(parent.ChildFolders)
		} else {
			sortLevel(s.roots)
		}
	}
	return nil
}

// RemoveFolder removes a folder from wherever it currently resides in the
// tree. Returns false if the folder was not found.
func (s *Store) RemoveFolder(folderID string) bool {
	s.mu.Lock()
	node, parent := s.findFolder(folderID)
	if node == nil {
		s.mu.Unlock()
		return false
	}

	if parent != nil {
		parent.ChildFolders = removeNode(parent.ChildFolders, folderID)
		if parent.ChildFolderCount > 0 {
			parent.ChildFolderCount--
		}
	} else {
		s.roots = removeNode(s.roots, folderID)
	}
	s.mu.Unlock()

	s.persistExpansion()
	return true
}

// RemoveNote removes a note reference from wherever it currently resides:
// a folder's note list or the uncategorized list. Returns false if the note
// was not found.
func (s *Store) RemoveNote(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder := s.folderHoldingNote(noteID); folder != nil {
		folder.Notes = removeNoteRef(folder.Notes, noteID)
		if folder.NoteCount > 0 {
			folder.NoteCount--
		}
		return true
	}

	for _, n := range s.uncategorized {
		if n.ID == noteID {
			s.uncategorized = removeNoteRef(s.uncategorized, noteID)
			return true
		}
	}
	return false
}

// MoveFolder moves a folder under a new parent (empty string means top
// level). The move is validated against the loaded tree, executed through the
// gateway, and then the affected levels are reloaded from the server rather
// than spliced speculatively: partial-load flags and counts are too easy to
// corrupt otherwise.
func (s *Store) MoveFolder(ctx context.Context, folderID, newParentID string) error {
	s.mu.Lock()
	node, _ := s.findFolder(folderID)
	if node == nil {
		s.mu.Unlock()
		return fmt.Errorf("move %s: %w", folderID, ErrFolderNotFound)
	}
	oldParentID := node.ParentID

	if newParentID == oldParentID {
		s.mu.Unlock()
		return nil
	}
	if newParentID != "" {
		if newParentID == folderID {
			s.mu.Unlock()
			return ErrUnsafeMove
		}
		descendants, complete := s.collectDescendantIDs(node)
		if !complete || descendants[newParentID] {
			s.mu.Unlock()
			return ErrUnsafeMove
		}
		if target, _ := s.findFolder(newParentID); target == nil {
			s.mu.Unlock()
			return fmt.Errorf("move to %s: %w", newParentID, ErrFolderNotFound)
		}
	}
	s.mu.Unlock()

	patch := gateway.FolderPatch{MoveToRoot: newParentID == ""}
	if newParentID != "" {
		patch.ParentID = &newParentID
	}
	if _, err := s.gw.UpdateFolder(ctx, folderID, patch); err != nil {
		return fmt.Errorf("move folder %s: %w", folderID, err)
	}

	if err := s.reloadLevel(ctx, oldParentID); err != nil {
		return err
	}
	if err := s.reloadLevel(ctx, newParentID); err != nil {
		return err
	}
	s.persistExpansion()
	return nil
}

// MoveNote moves a note to a folder (empty string means uncategorized),
// then reloads the affected note lists from the server. A note that is not
// in the loaded tree (its folder was never expanded) is still moved; only
// the loaded lists are reloaded afterwards.
func (s *Store) MoveNote(ctx context.Context, noteID, newFolderID string) error {
	s.mu.Lock()
	var oldFolderID string
	located := false
	if folder := s.folderHoldingNote(noteID); folder != nil {
		oldFolderID = folder.ID
		located = true
	} else if s.noteIsUncategorized(noteID) {
		located = true
	}
	if located && oldFolderID == newFolderID {
		s.mu.Unlock()
		return nil
	}
	if newFolderID != "" {
		if target, _ := s.findFolder(newFolderID); target == nil {
			s.mu.Unlock()
			return fmt.Errorf("move to %s: %w", newFolderID, ErrFolderNotFound)
		}
	}
	s.mu.Unlock()

	patch := gateway.NotePatch{MoveToUncategorized: newFolderID == ""}
	if newFolderID != "" {
		patch.FolderID = &newFolderID
	}
	if _, err := s.gw.UpdateNote(ctx, noteID, patch); err != nil {
		return fmt.Errorf("move note %s: %w", noteID, err)
	}

	if located {
		if err := s.reloadNotes(ctx, oldFolderID); err != nil {
			return err
		}
	}
	if err := s.reloadNotes(ctx, newFolderID); err != nil {
		return err
	}
	return nil
}

// reloadLevel refetches one level of the tree from the server and re-merges
// it, preserving the loaded subtree state of surviving nodes. An empty
// parentID reloads the root level; levels that were never loaded are skipped.
func (s *Store) reloadLevel(ctx context.Context, parentID string) error {
	if parentID == "" {
		folders, err := s.gw.Roots(ctx, false, false)
		if err != nil {
			return fmt.Errorf("reload roots: %w", err)
		}
		s.mu.Lock()
		s.roots = mergeFolderLevel(s.roots, folders, "")
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	parent, _ := s.findFolder(parentID)
	loaded := parent != nil && parent.ChildrenLoaded
	s.mu.Unlock()
	if !loaded {
		return nil
	}

	folders, err := s.gw.Children(ctx, parentID, false)
	if err != nil {
		return fmt.Errorf("reload children of %s: %w", parentID, err)
	}

	s.mu.Lock()
	if parent, _ := s.findFolder(parentID); parent != nil {
		parent.ChildFolders = mergeFolderLevel(parent.ChildFolders, folders, parentID)
		parent.ChildFolderCount = len(folders)
	}
	s.mu.Unlock()
	return nil
}

// reloadNotes refetches a folder's note list (or the uncategorized list for
// an empty folderID) when it was loaded before.
func (s *Store) reloadNotes(ctx context.Context, folderID string) error {
	s.mu.Lock()
	var loaded bool
	if folderID == "" {
		loaded = s.uncategorizedLoaded
	} else if node, _ := s.findFolder(folderID); node != nil {
		loaded = node.NotesLoaded
	}
	s.mu.Unlock()
	if !loaded {
		return nil
	}

	notes, err := s.gw.FolderNotes(ctx, folderID)
	if err != nil {
		return fmt.Errorf("reload notes of %q: %w", folderID, err)
	}

	s.mu.Lock()
	if folderID == "" {
		s.uncategorized = notes
	} else if node, _ := s.findFolder(folderID); node != nil {
		node.Notes = notes
		node.NoteCount = len(notes)
	}
	s.mu.Unlock()

	s.persistNotes(folderID, notes)
	return nil
}

// persistExpansion snapshots the expanded-folder set to the state cache.
func (s *Store) persistExpansion() {
	if s.state == nil {
		return
	}
	ids := s.ExpandedIDs()
	if err := s.state.SaveExpandedFolders(s.userID, ids); err != nil {
		s.log.WithError(err).Warn("could not persist expansion state")
	}
}

// persistNotes snapshots a folder's note list to the state cache.
func (s *Store) persistNotes(folderID string, notes []models.NoteRef) {
	if s.state == nil {
		return
	}
	if err := s.state.SaveFolderNotes(s.userID, folderID, notes); err != nil {
		s.log.WithError(err).Warn("could not persist notes snapshot")
	}
}
