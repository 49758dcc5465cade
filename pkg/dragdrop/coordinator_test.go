package dragdrop

import (
	"context"
	"testing"

	"tangle/pkg/gateway/gatewaytest"
	"tangle/pkg/models"
	"tangle/pkg/tree"
)

// buildStore loads a small hierarchy:
//
//	a/ (expanded)
//	  b/ (expanded)
//	    c/
//	  n1
//	x/ (never expanded, claims one child)
//	  y/
func buildStore(t *testing.T) (*tree.Store, *gatewaytest.Fake) {
	t.Helper()
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")
	gw.AddFolder("c", "C", "b")
	gw.AddFolder("x", "X", "")
	gw.AddFolder("y", "Y", "x")
	gw.AddNote("a", models.NoteRef{ID: "n1", Title: "Note"})

	s := tree.NewStore(gw)
	ctx := context.Background()
	if _, err := s.LoadRoots(ctx); err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if err := s.Toggle(ctx, id); err != nil {
			t.Fatalf("Toggle(%s): %v", id, err)
		}
	}
	return s, gw
}

func TestCanDropFolder(t *testing.T) {
	s, _ := buildStore(t)
	c := New(s, nil)

	tests := []struct {
		name   string
		src    Payload
		target Target
		want   bool
	}{
		{"onto itself", folder("a", ""), folderTarget("a"), false},
		{"onto current parent", folder("b", "a"), folderTarget("a"), false},
		{"onto own child", folder("a", ""), folderTarget("b"), false},
		{"onto own grandchild", folder("a", ""), folderTarget("c"), false},
		{"root folder onto root", folder("a", ""), Target{Kind: TargetRoot}, false},
		{"nested folder onto root", folder("b", "a"), Target{Kind: TargetRoot}, true},
		{"onto unrelated folder", folder("b", "a"), folderTarget("x"), true},
		{"unloaded subtree anywhere", folder("x", ""), folderTarget("a"), false},
		{"folder onto uncategorized", folder("b", "a"), Target{Kind: TargetUncategorized}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CanDrop(tt.src, tt.target); got != tt.want {
				t.Errorf("CanDrop(%+v, %+v) = %v, want %v", tt.src, tt.target, got, tt.want)
			}
		})
	}
}

func TestCanDropNote(t *testing.T) {
	s, _ := buildStore(t)
	c := New(s, nil)

	tests := []struct {
		name   string
		src    Payload
		target Target
		want   bool
	}{
		{"into another folder", note("n1", "a"), folderTarget("b"), true},
		{"into current folder", note("n1", "a"), folderTarget("a"), false},
		{"to uncategorized", note("n1", "a"), Target{Kind: TargetUncategorized}, true},
		{"uncategorized to uncategorized", note("n2", ""), Target{Kind: TargetUncategorized}, false},
		{"uncategorized into folder", note("n2", ""), folderTarget("a"), true},
		{"note onto root zone", note("n1", "a"), Target{Kind: TargetRoot}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CanDrop(tt.src, tt.target); got != tt.want {
				t.Errorf("CanDrop(%+v, %+v) = %v, want %v", tt.src, tt.target, got, tt.want)
			}
		})
	}
}

func TestDropRejectionNeverReachesGateway(t *testing.T) {
	s, gw := buildStore(t)
	c := New(s, nil)

	err := c.Drop(context.Background(), folder("a", ""), folderTarget("c"))
	if err != tree.ErrUnsafeMove {
		t.Fatalf("Drop = %v, want ErrUnsafeMove", err)
	}
	if n := gw.Calls("UpdateFolder"); n != 0 {
		t.Fatalf("UpdateFolder called %d times for a rejected drop", n)
	}
}

func TestDropExecutesFolderMove(t *testing.T) {
	s, gw := buildStore(t)
	c := New(s, nil)

	if err := c.Drop(context.Background(), folder("b", "a"), folderTarget("x")); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if n := gw.Calls("UpdateFolder"); n != 1 {
		t.Fatalf("UpdateFolder called %d times, want 1", n)
	}
	if s.FindFolder("a").ChildFolderCount != 0 {
		t.Errorf("old parent still claims children after the move")
	}
}

func TestDropExecutesNoteMove(t *testing.T) {
	s, gw := buildStore(t)
	c := New(s, nil)

	if err := c.Drop(context.Background(), note("n1", "a"), Target{Kind: TargetUncategorized}); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if n := gw.Calls("UpdateNote"); n != 1 {
		t.Fatalf("UpdateNote called %d times, want 1", n)
	}
	if len(s.FindFolder("a").Notes) != 0 {
		t.Errorf("note still listed under its old folder")
	}
}

func folder(id, parentID string) Payload {
	return Payload{Kind: models.KindFolder, ID: id, ParentID: parentID}
}

func note(id, parentID string) Payload {
	return Payload{Kind: models.KindNote, ID: id, ParentID: parentID}
}

func folderTarget(id string) Target {
	return Target{Kind: TargetFolder, ID: id}
}
