package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists smoothed emotion transitions to SQLite.
type Store struct {
	db *sql.DB
}

// TransitionRecord is one smoothed-label change for a capture client.
type TransitionRecord struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Emotion   string    `json:"emotion"`
	Previous  string    `json:"previous,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New opens (or creates) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS emotion_transitions (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			emotion TEXT NOT NULL,
			previous TEXT,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_client_time ON emotion_transitions(client_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_time ON emotion_transitions(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveTransition saves an emotion transition.
func (s *Store) SaveTransition(rec *TransitionRecord) error {
	query := `INSERT INTO emotion_transitions (id, client_id, emotion, previous, timestamp)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, rec.ID, rec.ClientID, rec.Emotion, rec.Previous, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// ListTransitions returns transitions, newest first, with optional filtering.
func (s *Store) ListTransitions(clientID string, since *time.Time, limit int) ([]*TransitionRecord, error) {
	query := `SELECT id, client_id, emotion, previous, timestamp
		FROM emotion_transitions WHERE 1=1`
	args := []interface{}{}

	if clientID != "" {
		query += " AND client_id = ?"
		args = append(args, clientID)
	}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *since)
	}

	query += " ORDER BY timestamp DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var records []*TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		var previous sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.Emotion, &previous, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		rec.Previous = previous.String
		records = append(records, &rec)
	}
	return records, nil
}

// DeleteOldTransitions deletes transitions older than the specified time.
func (s *Store) DeleteOldTransitions(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM emotion_transitions WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old transitions: %w", err)
	}
	return result.RowsAffected()
}

// RunRetention deletes transitions older than maxAge every interval until
// the context is canceled. Run it as a goroutine from main.
func (s *Store) RunRetention(ctx context.Context, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.DeleteOldTransitions(time.Now().Add(-maxAge))
			if err != nil {
				log.Printf("[History] Retention sweep failed: %v", err)
			} else if deleted > 0 {
				log.Printf("[History] Retention sweep deleted %d transitions", deleted)
			}
		}
	}
}
