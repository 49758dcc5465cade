package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangle/pkg/cache"
	"tangle/pkg/gateway/gatewaytest"
	"tangle/pkg/models"
)

func rootNames(s *Store) []string {
	var names []string
	for _, n := range s.Roots() {
		names = append(names, n.Name)
	}
	return names
}

func TestLoadRootsSortsCaseInsensitively(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("f-banana", "banana", "")
	gw.AddFolder("f-apple", "Apple", "")
	gw.AddFolder("f-cherry", "cherry", "")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Apple", "banana", "cherry"}, rootNames(s))
}

func TestLoadRootsFailsOpen(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("f1", "Work", "")
	gw.FailWith("Roots", errors.New("gateway down"))

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.Roots())
}

func TestToggleLoadsContentsLazily(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("parent", "Parent", "")
	gw.AddFolder("child-a", "A", "parent")
	gw.AddFolder("child-b", "B", "parent")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	node := s.FindFolder("parent")
	require.NotNil(t, node)
	assert.False(t, node.Expanded)
	assert.False(t, node.ChildrenLoaded)
	assert.Equal(t, 2, node.ChildFolderCount)

	require.NoError(t, s.Toggle(context.Background(), "parent"))
	assert.True(t, node.Expanded)
	assert.True(t, node.ChildrenLoaded)
	assert.Len(t, node.ChildFolders, 2)
	assert.Equal(t, 1, gw.Calls("Children"))
	assert.Equal(t, 0, gw.Calls("FolderNotes"), "no notes to fetch")

	// Collapse and re-expand without refetching.
	require.NoError(t, s.Toggle(context.Background(), "parent"))
	assert.False(t, node.Expanded)
	require.NoError(t, s.Toggle(context.Background(), "parent"))
	assert.True(t, node.Expanded)
	assert.Equal(t, 1, gw.Calls("Children"))
}

func TestToggleFetchesNotesOnce(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("inbox", "Inbox", "")
	gw.AddNote("inbox", models.NoteRef{ID: "n1", Title: "Groceries"})
	gw.AddNote("inbox", models.NoteRef{ID: "n2", Title: "Ideas"})

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Toggle(context.Background(), "inbox"))

	node := s.FindFolder("inbox")
	require.NotNil(t, node)
	assert.Len(t, node.Notes, 2)
	assert.Equal(t, 1, gw.Calls("FolderNotes"))
	assert.Equal(t, 0, gw.Calls("Children"), "no child folders to fetch")
}

func TestToggleRevertsOnFetchFailure(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("parent", "Parent", "")
	gw.AddFolder("child", "Child", "parent")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	gw.FailWith("Children", errors.New("gateway down"))
	require.Error(t, s.Toggle(context.Background(), "parent"))

	node := s.FindFolder("parent")
	assert.False(t, node.Expanded)
	assert.False(t, node.ChildrenLoaded)

	// The failure is not sticky.
	gw.FailWith("Children", nil)
	require.NoError(t, s.Toggle(context.Background(), "parent"))
	assert.True(t, node.Expanded)
	assert.Len(t, node.ChildFolders, 1)
}

func TestToggleDuringLoadIsNoop(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("parent", "Parent", "")
	gw.AddFolder("child", "Child", "parent")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	// Re-enter Toggle while the children fetch is in flight. The Loading
	// flag must make the second toggle a no-op, not a duplicate fetch.
	gw.OnCall = func(method string) {
		if method == "Children" {
			gw.OnCall = nil
			require.NoError(t, s.Toggle(context.Background(), "parent"))
		}
	}
	require.NoError(t, s.Toggle(context.Background(), "parent"))

	assert.Equal(t, 1, gw.Calls("Children"))
	assert.True(t, s.FindFolder("parent").Expanded)
}

func TestMoveFolderRejectsSelfAndDescendants(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")
	gw.AddFolder("c", "C", "b")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Toggle(context.Background(), "a"))
	require.NoError(t, s.Toggle(context.Background(), "b"))

	assert.ErrorIs(t, s.MoveFolder(context.Background(), "a", "a"), ErrUnsafeMove)
	assert.ErrorIs(t, s.MoveFolder(context.Background(), "a", "b"), ErrUnsafeMove)
	assert.ErrorIs(t, s.MoveFolder(context.Background(), "a", "c"), ErrUnsafeMove)
	assert.Equal(t, 0, gw.Calls("UpdateFolder"), "rejected moves must not reach the gateway")
}

func TestMoveFolderRejectsUnvalidatableSubtree(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")
	gw.AddFolder("target", "Target", "")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	// a claims children but they were never loaded, so a cycle through b
	// cannot be ruled out.
	assert.ErrorIs(t, s.MoveFolder(context.Background(), "a", "target"), ErrUnsafeMove)
	assert.Equal(t, 0, gw.Calls("UpdateFolder"))

	// Once the subtree is loaded the same move is safe.
	require.NoError(t, s.Toggle(context.Background(), "a"))
	require.NoError(t, s.MoveFolder(context.Background(), "a", "target"))
	assert.Equal(t, 1, gw.Calls("UpdateFolder"))
}

func TestMoveFolderToRootReloadsBothLevels(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "Alpha", "")
	gw.AddFolder("b", "Beta", "a")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Toggle(context.Background(), "a"))

	require.NoError(t, s.MoveFolder(context.Background(), "b", ""))

	assert.Equal(t, []string{"Alpha", "Beta"}, rootNames(s))
	a := s.FindFolder("a")
	assert.Empty(t, a.ChildFolders)
	assert.Equal(t, 0, a.ChildFolderCount)
}

func TestMoveFolderSameParentIsNoop(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Toggle(context.Background(), "a"))

	require.NoError(t, s.MoveFolder(context.Background(), "b", "a"))
	assert.Equal(t, 0, gw.Calls("UpdateFolder"))
}

func TestMoveNoteRoundTrip(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("work", "Work", "")
	gw.AddNote("work", models.NoteRef{ID: "n1", Title: "Standup"})

	s := NewStore(gw)
	ctx := context.Background()
	_, err := s.LoadRoots(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, "work"))
	_, err = s.LoadUncategorized(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MoveNote(ctx, "n1", ""))
	assert.Empty(t, s.FindFolder("work").Notes)
	require.Len(t, s.Uncategorized(), 1)
	assert.Equal(t, "n1", s.Uncategorized()[0].ID)

	require.NoError(t, s.MoveNote(ctx, "n1", "work"))
	assert.Empty(t, s.Uncategorized())
	require.Len(t, s.FindFolder("work").Notes, 1)
	assert.Equal(t, "n1", s.FindFolder("work").Notes[0].ID)
}

func TestMoveNoteUnknownNoteStillMoves(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("work", "Work", "")
	gw.AddNote("archive", models.NoteRef{ID: "n9", Title: "Old"})

	s := NewStore(gw)
	ctx := context.Background()
	_, err := s.LoadRoots(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, "work"))

	// n9 lives in a folder that was never expanded. The move still goes
	// through; only the loaded target list is reloaded.
	require.NoError(t, s.MoveNote(ctx, "n9", "work"))
	assert.Equal(t, 1, gw.Calls("UpdateNote"))
	require.Len(t, s.FindFolder("work").Notes, 1)
	assert.Equal(t, "n9", s.FindFolder("work").Notes[0].ID)
}

func TestInsertFolderExpandsParentAndSorts(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "Zebra", "a")

	s := NewStore(gw)
	ctx := context.Background()
	_, err := s.LoadRoots(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, "a"))
	require.NoError(t, s.Toggle(ctx, "a")) // collapse again

	created, err := gw.CreateFolder(ctx, "apple", "", "a")
	require.NoError(t, err)
	require.NoError(t, s.InsertFolder("a", created))

	a := s.FindFolder("a")
	assert.True(t, a.Expanded, "parent expands so the new folder is visible")
	require.Len(t, a.ChildFolders, 2)
	assert.Equal(t, "apple", a.ChildFolders[0].Name)
	assert.Equal(t, "Zebra", a.ChildFolders[1].Name)
	assert.Equal(t, 2, a.ChildFolderCount)
}

func TestRenameResortsLevel(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "Apple", "")
	gw.AddFolder("b", "Banana", "")

	s := NewStore(gw)
	_, err := s.LoadRoots(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.RenameOrRecolor("a", "Zucchini", ""))
	assert.Equal(t, []string{"Banana", "Zucchini"}, rootNames(s))
}

func TestRemoveFolderAndNote(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")
	gw.AddNote("a", models.NoteRef{ID: "n1", Title: "Note"})

	s := NewStore(gw)
	ctx := context.Background()
	_, err := s.LoadRoots(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, "a"))

	assert.True(t, s.RemoveNote("n1"))
	assert.False(t, s.RemoveNote("n1"))
	a := s.FindFolder("a")
	assert.Empty(t, a.Notes)
	assert.Equal(t, 0, a.NoteCount)

	assert.True(t, s.RemoveFolder("b"))
	assert.False(t, s.RemoveFolder("b"))
	assert.Empty(t, a.ChildFolders)
	assert.Equal(t, 0, a.ChildFolderCount)
}

func TestExpansionAndNotesRestoredAcrossSessions(t *testing.T) {
	gw := gatewaytest.New()
	gw.AddFolder("a", "A", "")
	gw.AddFolder("b", "B", "a")
	gw.AddNote("a", models.NoteRef{ID: "n1", Title: "Pinned"})

	state, err := cache.New(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	ctx := context.Background()

	first := NewStore(gw, WithStateCache(state, "u1"))
	_, err = first.LoadRoots(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Toggle(ctx, "a"))
	assert.Equal(t, 1, gw.Calls("Children"))
	assert.Equal(t, 1, gw.Calls("FolderNotes"))

	// A later session restores the expanded shape. Children are refetched,
	// the fresh notes snapshot is served from the cache.
	second := NewStore(gw, WithStateCache(state, "u1"))
	_, err = second.LoadRoots(ctx)
	require.NoError(t, err)

	a := second.FindFolder("a")
	require.NotNil(t, a)
	assert.True(t, a.Expanded)
	assert.Len(t, a.ChildFolders, 1)
	require.Len(t, a.Notes, 1)
	assert.Equal(t, "n1", a.Notes[0].ID)
	assert.Equal(t, 2, gw.Calls("Children"))
	assert.Equal(t, 1, gw.Calls("FolderNotes"), "notes served from cache")
}
