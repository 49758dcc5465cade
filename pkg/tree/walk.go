package tree

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"tangle/pkg/gateway"
	"tangle/pkg/models"
)

// sortLevel keeps folders at a single level in a stable, case-insensitive
// name order.
func sortLevel(nodes []*models.TreeNode) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(nodes, func(i, j int) bool {
		return c.CompareString(nodes[i].Name, nodes[j].Name) < 0
	})
}

// nodeFromFolder converts a gateway folder into a tree node, recursing into
// any children the server included.
func nodeFromFolder(f *gateway.Folder) *models.TreeNode {
	node := &models.TreeNode{
		ID:               f.ID,
		Kind:             models.KindFolder,
		Name:             f.Name,
		Color:            f.Color,
		ChildFolderCount: f.ChildFolderCount,
		NoteCount:        f.NoteCount,
	}
	if f.ParentID != nil {
		node.ParentID = *f.ParentID
	}
	if f.Children != nil {
		for _, child := range f.Children {
			cn := nodeFromFolder(child)
			cn.ParentID = f.ID
			node.ChildFolders = append(node.ChildFolders, cn)
		}
		sortLevel(node.ChildFolders)
		node.ChildrenLoaded = true
	}
	if f.Notes != nil {
		node.Notes = f.Notes
		node.NotesLoaded = true
	}
	return node
}

// mergeFolderLevel reconciles one level of the tree with a fresh server
// listing. Surviving nodes keep their loaded subtree state (children, notes,
// expansion) while display fields and counts are refreshed; new folders are
// added and vanished ones dropped.
func mergeFolderLevel(existing []*models.TreeNode, fresh []*gateway.Folder, parentID string) []*models.TreeNode {
	byID := make(map[string]*models.TreeNode, len(existing))
	for _, n := range existing {
		byID[n.ID] = n
	}

	merged := make([]*models.TreeNode, 0, len(fresh))
	for _, f := range fresh {
		if prev, ok := byID[f.ID]; ok {
			prev.Name = f.Name
			prev.Color = f.Color
			prev.ChildFolderCount = f.ChildFolderCount
			prev.NoteCount = f.NoteCount
			prev.ParentID = parentID
			merged = append(merged, prev)
			continue
		}
		node := nodeFromFolder(f)
		node.ParentID = parentID
		merged = append(merged, node)
	}
	sortLevel(merged)
	return merged
}

// removeNode drops the node with the given id from a level.
func removeNode(nodes []*models.TreeNode, id string) []*models.TreeNode {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// removeNoteRef drops the note with the given id from a note list.
func removeNoteRef(notes []models.NoteRef, id string) []models.NoteRef {
	out := notes[:0]
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// findFolder walks the loaded tree for a folder, returning the node and its
// parent (nil parent for a root). Callers must hold s.mu.
func (s *Store) findFolder(id string) (node, parent *models.TreeNode) {
	var walk func(nodes []*models.TreeNode, p *models.TreeNode) (*models.TreeNode, *models.TreeNode)
	walk = func(nodes []*models.TreeNode, p *models.TreeNode) (*models.TreeNode, *models.TreeNode) {
		for _, n := range nodes {
			if n.ID == id {
				return n, p
			}
			if found, fp := walk(n.ChildFolders, n); found != nil {
				return found, fp
			}
		}
		return nil, nil
	}
	return walk(s.roots, nil)
}

// folderHoldingNote returns the loaded folder whose note list contains the
// note, or nil. Callers must hold s.mu.
func (s *Store) folderHoldingNote(noteID string) *models.TreeNode {
	var walk func(nodes []*models.TreeNode) *models.TreeNode
	walk = func(nodes []*models.TreeNode) *models.TreeNode {
		for _, n := range nodes {
			for _, ref := range n.Notes {
				if ref.ID == noteID {
					return n
				}
			}
			if found := walk(n.ChildFolders); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(s.roots)
}

// noteIsUncategorized reports whether the note is in the loaded uncategorized
// list. Callers must hold s.mu.
func (s *Store) noteIsUncategorized(noteID string) bool {
	for _, n := range s.uncategorized {
		if n.ID == noteID {
			return true
		}
	}
	return false
}

// collectDescendantIDs gathers the folder ids below a node using loaded data
// only. complete is false when any folder in the subtree claims children that
// were never fetched, meaning the set cannot be trusted for cycle checks.
// Callers must hold s.mu.
func (s *Store) collectDescendantIDs(node *models.TreeNode) (ids map[string]bool, complete bool) {
	ids = make(map[string]bool)
	complete = true

	var walk func(n *models.TreeNode)
	walk = func(n *models.TreeNode) {
		if !n.ChildrenLoaded && n.ChildFolderCount > 0 {
			complete = false
			return
		}
		for _, child := range n.ChildFolders {
			ids[child.ID] = true
			walk(child)
		}
	}
	walk(node)
	return ids, complete
}

// FindFolder returns the loaded folder with the given id, or nil.
func (s *Store) FindFolder(id string) *models.TreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, _ := s.findFolder(id)
	return node
}

// DescendantFolderIDs returns the set of loaded descendant folder ids of a
// folder. complete is false when the subtree is not fully loaded, in which
// case the set must not be used to rule out cycles.
func (s *Store) DescendantFolderIDs(folderID string) (ids map[string]bool, complete bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, _ := s.findFolder(folderID)
	if node == nil {
		return nil, false, ErrFolderNotFound
	}
	ids, complete = s.collectDescendantIDs(node)
	return ids, complete, nil
}

// NoteLocation returns the folder id currently holding a note. ok is false
// when the note is not in the loaded tree; an empty folder id with ok=true
// means the note is uncategorized.
func (s *Store) NoteLocation(noteID string) (folderID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder := s.folderHoldingNote(noteID); folder != nil {
		return folder.ID, true
	}
	if s.noteIsUncategorized(noteID) {
		return "", true
	}
	return "", false
}

// LoadedNotes returns every note reference currently loaded anywhere in the
// tree, including the uncategorized list.
func (s *Store) LoadedNotes() []models.NoteRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notes []models.NoteRef
	var walk func(nodes []*models.TreeNode)
	walk = func(nodes []*models.TreeNode) {
		for _, n := range nodes {
			notes = append(notes, n.Notes...)
			walk(n.ChildFolders)
		}
	}
	walk(s.roots)
	notes = append(notes, s.uncategorized...)
	return notes
}

// ExpandedIDs returns the ids of all expanded folders in the loaded tree.
func (s *Store) ExpandedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	var walk func(nodes []*models.TreeNode)
	walk = func(nodes []*models.TreeNode) {
		for _, n := range nodes {
			if n.Expanded {
				ids = append(ids, n.ID)
			}
			walk(n.ChildFolders)
		}
	}
	walk(s.roots)
	return ids
}
