package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/snippet"
)

// Current schema version.
const schemaVersion = "1"

// SQLite is a SQLite-backed store. Access is serialized with a mutex since
// SQLite allows a single writer at a time.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name        TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			restricted  INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			collection  TEXT NOT NULL REFERENCES collections(name),
			"trigger"   TEXT NOT NULL,
			body        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS variables (
			snippet_id    TEXT NOT NULL REFERENCES snippets(id),
			position      INTEGER NOT NULL,
			name          TEXT NOT NULL,
			prompt        TEXT NOT NULL DEFAULT '',
			default_value TEXT,
			PRIMARY KEY (snippet_id, name)
		);
		CREATE TABLE IF NOT EXISTS dependencies (
			snippet_id TEXT NOT NULL REFERENCES snippets(id),
			position   INTEGER NOT NULL,
			ref        TEXT NOT NULL,
			PRIMARY KEY (snippet_id, position)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_trigger ON snippets("trigger");
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`, schemaVersion); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Import writes the model's collections into the database, replacing any
// snippets the collections already held.
func (s *SQLite) Import(ctx context.Context, model *config.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, col := range model.Collections {
		if err := importCollection(ctx, tx, col); err != nil {
			return fmt.Errorf("import collection %q: %w", col.Name, err)
		}
	}

	return tx.Commit()
}

func importCollection(ctx context.Context, tx *sql.Tx, col *config.Collection) error {
	restricted := 0
	if col.Restricted {
		restricted = 1
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, description, restricted) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET description = excluded.description, restricted = excluded.restricted`,
		col.Name, col.Description, restricted)
	if err != nil {
		return err
	}

	// Drop this collection's previous snippets before re-inserting.
	rows, err := tx.QueryContext(ctx, `SELECT id FROM snippets WHERE collection = ?`, col.Name)
	if err != nil {
		return err
	}
	var old []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		old = append(old, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range old {
		for _, q := range []string{
			`DELETE FROM variables WHERE snippet_id = ?`,
			`DELETE FROM dependencies WHERE snippet_id = ?`,
			`DELETE FROM snippets WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
	}

	for _, snip := range col.Snippets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snippets (id, collection, "trigger", body, description) VALUES (?, ?, ?, ?, ?)`,
			snip.ID, col.Name, snip.Trigger, snip.Body, snip.Description); err != nil {
			return err
		}
		for i, v := range snip.Variables {
			var def any
			if v.HasDefault {
				def = v.Default
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO variables (snippet_id, position, name, prompt, default_value) VALUES (?, ?, ?, ?, ?)`,
				snip.ID, i, v.Name, v.Prompt, def); err != nil {
				return err
			}
		}
		for i, ref := range snip.Dependencies {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO dependencies (snippet_id, position, ref) VALUES (?, ?, ?)`,
				snip.ID, i, ref); err != nil {
				return err
			}
		}
	}

	return nil
}

// Lookup implements Store with the same reachability semantics as the
// in-memory registry.
func (s *SQLite) Lookup(ctx context.Context, ref string, collections []string) (*snippet.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parsed := snippet.ParseReference(ref)

	if parsed.Valid && !parsed.Bare {
		var restricted int
		err := s.db.QueryRowContext(ctx,
			`SELECT restricted FROM collections WHERE name = ?`, parsed.Collection).Scan(&restricted)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if restricted != 0 && !contains(collections, parsed.Collection) {
			return nil, &PermissionError{Collection: parsed.Collection}
		}

		snip, err := s.scanSnippet(ctx, s.db.QueryRowContext(ctx,
			`SELECT id, collection, "trigger", body, description FROM snippets WHERE collection = ? AND id = ?`,
			parsed.Collection, parsed.ID))
		if err != nil || snip != nil {
			return snip, err
		}
		return s.scanSnippet(ctx, s.db.QueryRowContext(ctx,
			`SELECT id, collection, "trigger", body, description FROM snippets WHERE collection = ? AND "trigger" = ? LIMIT 1`,
			parsed.Collection, parsed.Trigger))
	}

	trigger := parsed.Trigger
	if !parsed.Valid {
		trigger = ref
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.collection, s."trigger", s.body, s.description, c.restricted
		 FROM snippets s JOIN collections c ON s.collection = c.name
		 WHERE s."trigger" = ?
		 ORDER BY c.rowid, s.rowid`, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var snip snippet.Snippet
		var restricted int
		if err := rows.Scan(&snip.ID, &snip.Collection, &snip.Trigger, &snip.Body, &snip.Description, &restricted); err != nil {
			return nil, err
		}
		if !reachable(snip.Collection, restricted != 0, collections) {
			continue
		}
		if err := s.loadDetails(ctx, &snip); err != nil {
			return nil, err
		}
		return &snip, nil
	}
	return nil, rows.Err()
}

// Collections implements Store, returning names in insertion order.
func (s *SQLite) Collections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// scanSnippet builds a snippet from a single-row query, resolving its
// variables and dependencies. A no-row result is (nil, nil).
func (s *SQLite) scanSnippet(ctx context.Context, row *sql.Row) (*snippet.Snippet, error) {
	var snip snippet.Snippet
	err := row.Scan(&snip.ID, &snip.Collection, &snip.Trigger, &snip.Body, &snip.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, &snip); err != nil {
		return nil, err
	}
	return &snip, nil
}

// loadDetails fills a snippet's variables and dependencies, both in their
// stored order.
func (s *SQLite) loadDetails(ctx context.Context, snip *snippet.Snippet) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, prompt, default_value FROM variables WHERE snippet_id = ? ORDER BY position`, snip.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v snippet.Variable
		var def sql.NullString
		if err := rows.Scan(&v.Name, &v.Prompt, &def); err != nil {
			rows.Close()
			return err
		}
		if def.Valid {
			v.Default = def.String
			v.HasDefault = true
		}
		snip.Variables = append(snip.Variables, &v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT ref FROM dependencies WHERE snippet_id = ? ORDER BY position`, snip.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return err
		}
		snip.Dependencies = append(snip.Dependencies, ref)
	}
	return rows.Err()
}
