// Package store implements the persistent engine state on SQLite: the
// taxonomy, conversation, and memory-entry collections plus apps,
// communications, and the append-only query-pattern log.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore holds all engine collections in one SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	taxo *ristretto.Cache

	confidencePolicy ConfidencePolicy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes the read-then-write turn upsert
	// transactions; busy_timeout alone cannot resolve a snapshot
	// conflict between two writers.
	db.SetMaxOpenConns(1)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("taxonomy cache: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		taxo: cache,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// newID returns a fresh ULID. ulid.Make uses locked entropy, so ids
// stay unique when handlers hit the store from multiple goroutines.
func (s *SQLiteStore) newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_categories (
		id               TEXT PRIMARY KEY,
		category_key     TEXT NOT NULL UNIQUE,
		category_name    TEXT NOT NULL,
		intent_type      TEXT NOT NULL DEFAULT 'find-information',
		complexity_level TEXT NOT NULL DEFAULT 'detailed-explanations',
		created_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subindex_clusters (
		id                TEXT PRIMARY KEY,
		category_id       TEXT NOT NULL REFERENCES index_categories(id),
		cluster_key       TEXT NOT NULL,
		cluster_name      TEXT NOT NULL,
		semantic_keywords TEXT,
		confidence_level  INTEGER NOT NULL DEFAULT 5,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		UNIQUE (category_id, cluster_key)
	);
	CREATE INDEX IF NOT EXISTS idx_clusters_category ON subindex_clusters(category_id);

	CREATE TABLE IF NOT EXISTS memory_entries (
		id                       TEXT PRIMARY KEY,
		cluster_id               TEXT REFERENCES subindex_clusters(id),
		content                  TEXT NOT NULL,
		reasoning_chain          TEXT,
		user_intent_analysis     TEXT,
		cross_domain_connections TEXT,
		session_context          TEXT,
		usage_frequency          INTEGER NOT NULL DEFAULT 0,
		created_at               TEXT NOT NULL,
		accessed_at              TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entries_cluster ON memory_entries(cluster_id);
	CREATE INDEX IF NOT EXISTS idx_entries_intent ON memory_entries(user_intent_analysis);

	CREATE TABLE IF NOT EXISTS threads (
		id          TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		app_source  TEXT NOT NULL,
		title       TEXT,
		context     TEXT,
		metadata    TEXT,
		category_id TEXT REFERENCES index_categories(id),
		cluster_id  TEXT REFERENCES subindex_clusters(id),
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id                 TEXT PRIMARY KEY,
		thread_id          TEXT NOT NULL REFERENCES threads(id),
		external_turn_id   TEXT NOT NULL,
		turn_index         INTEGER NOT NULL,
		user_text          TEXT,
		assistant_response TEXT,
		thinking_summary   TEXT,
		synthesis          TEXT,
		code_summary       TEXT,
		raw_messages       TEXT,
		metadata           TEXT,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL,
		UNIQUE (thread_id, external_turn_id)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_thread ON turns(thread_id, turn_index);

	CREATE TABLE IF NOT EXISTS apps (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		app_type   TEXT NOT NULL,
		domains    TEXT,
		internal   INTEGER NOT NULL DEFAULT 0,
		ai_enabled INTEGER NOT NULL DEFAULT 0,
		active     INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS communications (
		id              TEXT PRIMARY KEY,
		source_app      TEXT NOT NULL,
		target_app      TEXT NOT NULL,
		insight         TEXT NOT NULL,
		relevance_score REAL NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comms_status ON communications(status);

	CREATE TABLE IF NOT EXISTS entry_links (
		from_id    TEXT NOT NULL REFERENCES memory_entries(id),
		to_id      TEXT NOT NULL REFERENCES memory_entries(id),
		rel        TEXT NOT NULL DEFAULT 'relates_to',
		strength   INTEGER NOT NULL DEFAULT 5,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, rel)
	);
	CREATE INDEX IF NOT EXISTS idx_links_to ON entry_links(to_id);

	CREATE TABLE IF NOT EXISTS domain_bridges (
		domain         TEXT NOT NULL,
		bridged_domain TEXT NOT NULL,
		affinity       REAL NOT NULL DEFAULT 0.5,
		PRIMARY KEY (domain, bridged_domain)
	);

	CREATE TABLE IF NOT EXISTS query_patterns (
		id            TEXT PRIMARY KEY,
		query         TEXT NOT NULL,
		search_intent TEXT,
		entry_ids     TEXT,
		success_score INTEGER NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
		content,
		content=memory_entries,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON memory_entries BEGIN
			INSERT INTO entries_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON memory_entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON memory_entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			INSERT INTO entries_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("create fts trigger: %w", err)
		}
	}

	return s.seedBridges()
}

// Close releases the taxonomy cache and the database handle.
func (s *SQLiteStore) Close() error {
	s.taxo.Close()
	return s.db.Close()
}
