// Package dragdrop validates drag-and-drop reorganization of the folder/note
// tree and forwards accepted drops to the tree store. It never mutates tree
// nodes itself.
package dragdrop

import (
	"context"

	"github.com/sirupsen/logrus"

	"tangle/pkg/models"
	"tangle/pkg/tree"
)

// Payload describes the node being dragged.
type Payload struct {
	Kind models.NodeKind
	ID   string
	// ParentID is the folder currently holding the node; empty means top
	// level (for folders) or uncategorized (for notes).
	ParentID string
}

// TargetKind distinguishes the drop zones.
type TargetKind string

const (
	// TargetFolder is a folder node acting as a drop target.
	TargetFolder TargetKind = "folder"
	// TargetRoot is the root-level affordance accepting folders.
	TargetRoot TargetKind = "root"
	// TargetUncategorized is the region accepting notes with no folder.
	TargetUncategorized TargetKind = "uncategorized"
)

// Target describes a drop zone. ID is set only for TargetFolder.
type Target struct {
	Kind TargetKind
	ID   string
}

// Coordinator validates drops against the loaded tree and executes accepted
// ones through the store's move operations.
type Coordinator struct {
	store *tree.Store
	log   *logrus.Logger
}

// New creates a coordinator over the given store.
func New(store *tree.Store, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.New()
	}
	return &Coordinator{store: store, log: log}
}

// CanDrop evaluates the acceptance rule at drag-enter time. It is purely
// local and never calls the gateway, so it is safe to invoke on every hover.
func (c *Coordinator) CanDrop(src Payload, target Target) bool {
	switch src.Kind {
	case models.KindFolder:
		return c.canDropFolder(src, target)
	case models.KindNote:
		return c.canDropNote(src, target)
	default:
		return false
	}
}

func (c *Coordinator) canDropFolder(src Payload, target Target) bool {
	switch target.Kind {
	case TargetRoot:
		// Moving to top level is a no-op for a folder already there.
		return src.ParentID != ""
	case TargetFolder:
		if target.ID == src.ID {
			return false
		}
		if target.ID == src.ParentID {
			return false
		}
		descendants, complete, err := c.store.DescendantFolderIDs(src.ID)
		if err != nil {
			return false
		}
		// An unloaded subtree cannot rule out a cycle, so the move is
		// treated as unsafe.
		if !complete {
			c.log.WithField("folder", src.ID).Debug("rejecting move: subtree not fully loaded")
			return false
		}
		return !descendants[target.ID]
	default:
		return false
	}
}

func (c *Coordinator) canDropNote(src Payload, target Target) bool {
	switch target.Kind {
	case TargetFolder:
		return target.ID != src.ParentID
	case TargetUncategorized:
		return src.ParentID != ""
	default:
		return false
	}
}

// Drop executes an accepted drop through the tree store. Invalid drops are
// rejected locally without reaching the gateway.
func (c *Coordinator) Drop(ctx context.Context, src Payload, target Target) error {
	if !c.CanDrop(src, target) {
		return tree.ErrUnsafeMove
	}

	switch src.Kind {
	case models.KindFolder:
		newParentID := ""
		if target.Kind == TargetFolder {
			newParentID = target.ID
		}
		return c.store.MoveFolder(ctx, src.ID, newParentID)
	case models.KindNote:
		newFolderID := ""
		if target.Kind == TargetFolder {
			newFolderID = target.ID
		}
		return c.store.MoveNote(ctx, src.ID, newFolderID)
	default:
		return tree.ErrUnsafeMove
	}
}
