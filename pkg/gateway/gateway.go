package gateway

import (
	"context"
	"errors"
	"fmt"

	"tangle/pkg/models"
)

// Gateway defines the interface for the remote folder/note service. The HTTP
// client is one implementation; engine packages accept the interface so they
// can be exercised against fakes.
type Gateway interface {
	// Roots fetches the top-level folders.
	Roots(ctx context.Context, includeNotes, includeFullTree bool) ([]*Folder, error)
	// Children fetches the immediate child folders of a folder.
	Children(ctx context.Context, parentID string, includeNotes bool) ([]*Folder, error)
	// FolderNotes fetches the notes of a folder. An empty folderID means the
	// uncategorized notes.
	FolderNotes(ctx context.Context, folderID string) ([]models.NoteRef, error)

	// CreateFolder creates a folder. An empty parentID creates it at the top
	// level.
	CreateFolder(ctx context.Context, name, color, parentID string) (*Folder, error)
	// UpdateFolder applies a partial update (rename, recolor, move).
	UpdateFolder(ctx context.Context, id string, patch FolderPatch) (*Folder, error)
	// DeleteFolder soft-deletes a folder.
	DeleteFolder(ctx context.Context, id string) error

	// Note fetches the full note document.
	Note(ctx context.Context, id string) (*models.NoteDocument, error)
	// UpdateNote applies a partial update (title, content, state, move).
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*models.NoteDocument, error)
	// DeleteNote soft-deletes a note.
	DeleteNote(ctx context.Context, id string) error

	// AddTags attaches tags by name and returns the note's authoritative tag
	// set. The server may normalize names and dedupe.
	AddTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error)
	// RemoveTags detaches tags by name and returns the authoritative tag set.
	RemoveTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error)
	// AddLinks creates outgoing links and returns the authoritative link set.
	AddLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error)
	// RemoveLinks removes outgoing links and returns the authoritative link set.
	RemoveLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error)

	// SuggestTags submits a tag-suggestion job for a note and returns the job
	// id. Returns ErrCooldown when the collaborator refuses a new job.
	SuggestTags(ctx context.Context, noteID string) (string, error)
	// SuggestionStatus polls a suggestion job.
	SuggestionStatus(ctx context.Context, jobID string) (*SuggestionResult, error)
}

// Folder is the wire representation of a folder.
type Folder struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Color            string           `json:"color,omitempty"`
	ParentID         *string          `json:"parent_id"`
	ChildFolderCount int              `json:"child_folder_count"`
	NoteCount        int              `json:"note_count"`
	Children         []*Folder        `json:"children,omitempty"`
	Notes            []models.NoteRef `json:"notes,omitempty"`
}

// FolderPatch describes a partial folder update. Nil fields are unchanged.
// MoveToRoot moves the folder to the top level; it takes precedence over
// ParentID.
type FolderPatch struct {
	Name       *string
	Color      *string
	ParentID   *string
	MoveToRoot bool
}

// NotePatch describes a partial note update. Nil fields are unchanged.
// MoveToUncategorized detaches the note from its folder; it takes precedence
// over FolderID.
type NotePatch struct {
	Title               *string
	Content             *string
	SerializedState     *string
	FolderID            *string
	MoveToUncategorized bool
}

// JobState is the lifecycle state of a suggestion job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// SuggestionResult is the polled state of a tag-suggestion job.
type SuggestionResult struct {
	JobID string       `json:"job_id"`
	State JobState     `json:"state"`
	Tags  []models.Tag `json:"tags,omitempty"`
	Error string       `json:"error,omitempty"`
}

// ErrCooldown is returned when the suggestion collaborator refuses a new job
// because one ran too recently.
var ErrCooldown = errors.New("suggestion job on cooldown")

// ErrNotFound is returned when the server reports the entity does not exist.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: unexpected status %d", e.Status)
}

// IsConflict reports whether err is a stale-state rejection from the server.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 409
}
