package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tangle/pkg/models"
)

// DefaultNotesTTL bounds the staleness of cached folder note lists. Tuning
// parameter, not a correctness requirement.
const DefaultNotesTTL = 5 * time.Minute

// Store persists tree shape between sessions: which folders each user had
// expanded, and recently loaded note lists per folder with an expiry.
//
// The store is advisory only. Callers must function with it absent, and a
// corrupt row is treated as a cache miss.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithNotesTTL overrides the time-to-live for cached note lists.
func WithNotesTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New opens (or creates) the state database under dataDir.
func New(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "state.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, ttl: DefaultNotesTTL}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		return nil, fmt.Errorf("initialize state store: %w", err)
	}
	return s, nil
}

// init creates the database schema
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS expanded_folders (
		user_id   TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		PRIMARY KEY (user_id, folder_id)
	);

	CREATE TABLE IF NOT EXISTS folder_notes (
		user_id     TEXT NOT NULL,
		folder_id   TEXT NOT NULL,
		notes       TEXT NOT NULL,
		captured_at TIMESTAMP NOT NULL,
		expires_at  TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, folder_id)
	);

	CREATE INDEX IF NOT EXISTS idx_folder_notes_expiry ON folder_notes(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveExpandedFolders overwrites the expanded-folder set for a user.
func (s *Store) SaveExpandedFolders(userID string, ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM expanded_folders WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO expanded_folders (user_id, folder_id) VALUES (?, ?)`,
			userID, id,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ExpandedFolders returns the persisted expanded-folder set for a user.
func (s *Store) ExpandedFolders(userID string) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT folder_id FROM expanded_folders WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// SaveFolderNotes snapshots a folder's note list with the configured TTL.
// An empty folderID keys the uncategorized notes.
func (s *Store) SaveFolderNotes(userID, folderID string, notes []models.NoteRef) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO folder_notes (user_id, folder_id, notes, captured_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, folderID, string(data), now, now.Add(s.ttl),
	)
	return err
}

// FolderNotes returns a cached note list, or ok=false on a miss. Expired and
// corrupt entries are misses.
func (s *Store) FolderNotes(userID, folderID string) ([]models.NoteRef, bool) {
	var data string
	var expiresAt time.Time
	err := s.db.QueryRow(
		`SELECT notes, expires_at FROM folder_notes WHERE user_id = ? AND folder_id = ?`,
		userID, folderID,
	).Scan(&data, &expiresAt)
	if err != nil {
		return nil, false
	}
	if time.Now().After(expiresAt) {
		return nil, false
	}

	var notes []models.NoteRef
	if err := json.Unmarshal([]byte(data), &notes); err != nil {
		// Corrupt snapshot. Drop it and report a miss.
		s.db.Exec(`DELETE FROM folder_notes WHERE user_id = ? AND folder_id = ?`, userID, folderID)
		return nil, false
	}
	return notes, true
}

// CleanupExpired removes stale note snapshots for a user.
func (s *Store) CleanupExpired(userID string) error {
	_, err := s.db.Exec(
		`DELETE FROM folder_notes WHERE user_id = ? AND expires_at < ?`,
		userID, time.Now(),
	)
	return err
}

// Close closes the state database
func (s *Store) Close() error {
	return s.db.Close()
}
