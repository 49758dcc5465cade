package models

import "time"

// NodeKind categorizes the two kinds of nodes in the organization tree.
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindNote   NodeKind = "note"
)

// TagOrigin records how a tag became attached to a note.
type TagOrigin string

const (
	// OriginUserAdded marks tags the user typed or attached themselves.
	OriginUserAdded TagOrigin = "user"
	// OriginAISuggested marks tags attached by the suggestion collaborator.
	// These are never auto-removed by content edits.
	OriginAISuggested TagOrigin = "ai"
)

// TreeNode is a folder in the in-memory hierarchy. Notes hang off folders as
// lightweight NoteRef entries rather than full nodes.
//
// A node with ChildrenLoaded == false must not be trusted for exact child
// membership; only ChildFolderCount and NoteCount are authoritative until the
// children have been fetched.
type TreeNode struct {
	ID       string
	Kind     NodeKind
	Name     string
	Color    string
	ParentID string // "" means top level

	ChildFolders []*TreeNode
	Notes        []NoteRef

	// Server-reported totals. May exceed what is loaded.
	ChildFolderCount int
	NoteCount        int

	Expanded       bool
	ChildrenLoaded bool
	NotesLoaded    bool
	Loading        bool
}

// HasContents reports whether the server claims this folder contains
// anything, regardless of what has been loaded so far.
func (n *TreeNode) HasContents() bool {
	return n.ChildFolderCount > 0 || n.NoteCount > 0
}

// NoteRef is the lightweight note descriptor used in the tree.
type NoteRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FolderID  string    `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag is a note-scoped association. The same tag name is shared across notes
// by identity, not duplicated per note.
type Tag struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color,omitempty"`
	Origin     TagOrigin `json:"origin"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Link is a directed cross-note reference. Links are note-scoped and do not
// affect folder placement.
type Link struct {
	ID          string `json:"id"`
	ToNoteID    string `json:"to_note_id"`
	ToNoteTitle string `json:"to_note_title"`
}

// NoteDocument is the fully loaded note used once a note is opened for
// editing, as opposed to the NoteRef used in the tree.
type NoteDocument struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	SerializedState string    `json:"serialized_state"`
	FolderID        string    `json:"folder_id,omitempty"`
	Tags            []Tag     `json:"tags"`
	Links           []Link    `json:"links"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TagNames returns the names of the document's tags, preserving order.
func (d *NoteDocument) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Name)
	}
	return names
}
