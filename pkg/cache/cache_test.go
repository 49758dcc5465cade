package cache

import (
	"testing"
	"time"

	"tangle/pkg/models"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExpandedFoldersOverwrite(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveExpandedFolders("u1", []string{"a", "b"}); err != nil {
		t.Fatalf("SaveExpandedFolders: %v", err)
	}
	if err := s.SaveExpandedFolders("u1", []string{"b", "c"}); err != nil {
		t.Fatalf("SaveExpandedFolders: %v", err)
	}

	got, err := s.ExpandedFolders("u1")
	if err != nil {
		t.Fatalf("ExpandedFolders: %v", err)
	}
	if len(got) != 2 || !got["b"] || !got["c"] {
		t.Errorf("ExpandedFolders = %v, want {b, c}", got)
	}
	if got["a"] {
		t.Errorf("stale folder survived the overwrite")
	}
}

func TestExpandedFoldersScopedByUser(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveExpandedFolders("u1", []string{"a"}); err != nil {
		t.Fatalf("SaveExpandedFolders: %v", err)
	}

	got, err := s.ExpandedFolders("u2")
	if err != nil {
		t.Fatalf("ExpandedFolders: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("u2 sees u1's expansion state: %v", got)
	}
}

func TestFolderNotesRoundTrip(t *testing.T) {
	s := newTestStore(t)

	notes := []models.NoteRef{
		{ID: "n1", Title: "First", FolderID: "f1"},
		{ID: "n2", Title: "Second", FolderID: "f1"},
	}
	if err := s.SaveFolderNotes("u1", "f1", notes); err != nil {
		t.Fatalf("SaveFolderNotes: %v", err)
	}

	got, ok := s.FolderNotes("u1", "f1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(got) != 2 || got[0].ID != "n1" || got[1].Title != "Second" {
		t.Errorf("FolderNotes = %v", got)
	}

	if _, ok := s.FolderNotes("u1", "other"); ok {
		t.Error("unexpected hit for an unknown folder")
	}
}

func TestFolderNotesExpire(t *testing.T) {
	s := newTestStore(t, WithNotesTTL(10*time.Millisecond))

	if err := s.SaveFolderNotes("u1", "f1", []models.NoteRef{{ID: "n1"}}); err != nil {
		t.Fatalf("SaveFolderNotes: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok := s.FolderNotes("u1", "f1"); ok {
		t.Error("expired snapshot served as a hit")
	}

	if err := s.CleanupExpired("u1"); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM folder_notes WHERE user_id = ?`, "u1").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("cleanup left %d expired rows", count)
	}
}

func TestCorruptSnapshotIsAMiss(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	if _, err := s.db.Exec(`
		INSERT INTO folder_notes (user_id, folder_id, notes, captured_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		"u1", "f1", "{not json", now, now.Add(time.Hour),
	); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	if _, ok := s.FolderNotes("u1", "f1"); ok {
		t.Fatal("corrupt snapshot served as a hit")
	}

	// The corrupt row is dropped, not retried forever.
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM folder_notes`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("corrupt row still present")
	}
}

func TestFolderNotesUncategorizedKey(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveFolderNotes("u1", "", []models.NoteRef{{ID: "n1", Title: "Loose"}}); err != nil {
		t.Fatalf("SaveFolderNotes: %v", err)
	}
	got, ok := s.FolderNotes("u1", "")
	if !ok || len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("FolderNotes(\"\") = %v, %v", got, ok)
	}
}
