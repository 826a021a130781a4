// Package sqlite provides SQLite-backed analytics persistence for combat events.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection used for combat analytics.
type Store struct {
	conn *sql.DB
}

// CombatEventRow represents one persisted combat event.
type CombatEventRow struct {
	ID        int64
	Kind      string
	Actor     string
	Source    string
	Ability   string
	Value     float64
	CreatedAt time.Time
}

// Open opens (or creates) the SQLite database at path.
//
// Precondition: path must be a writable file path.
// Postcondition: Returns a migrated Store or a non-nil error.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps the batched writer from blocking readers.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS combat_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		actor TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		ability TEXT NOT NULL DEFAULT '',
		value REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_combat_events_kind ON combat_events(kind);
	CREATE INDEX IF NOT EXISTS idx_combat_events_actor ON combat_events(actor);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// InsertEvents writes a batch of combat events in a single transaction.
//
// Precondition: every event must have a non-empty Kind and Actor.
// Postcondition: All events are persisted, or none are.
func (s *Store) InsertEvents(events []CombatEventRow) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO combat_events (kind, actor, source, ability, value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Kind, e.Actor, e.Source, e.Ability, e.Value, e.CreatedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event: %w", err)
		}
	}
	return tx.Commit()
}

// CountEvents returns the number of persisted events of the given kind.
// An empty kind counts all events.
func (s *Store) CountEvents(kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = s.conn.QueryRow(`SELECT COUNT(*) FROM combat_events`).Scan(&n)
	} else {
		err = s.conn.QueryRow(`SELECT COUNT(*) FROM combat_events WHERE kind = ?`, kind).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// AbilityUsage returns per-ability use counts, most used first.
func (s *Store) AbilityUsage() (map[string]int, error) {
	rows, err := s.conn.Query(
		`SELECT ability, COUNT(*) FROM combat_events
		 WHERE kind = ? GROUP BY ability ORDER BY COUNT(*) DESC`,
		EventAbilityUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ability usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var ability string
		var count int
		if err := rows.Scan(&ability, &count); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		usage[ability] = count
	}
	return usage, rows.Err()
}
