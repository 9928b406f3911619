package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store keeps sync state and chunk data in a SQLite database so re-syncs
// skip unchanged files and query results can be hydrated without re-reading
// source files.
type Store struct {
	db *sql.DB
}

// FileState is what Sync compares to decide whether a file changed.
type FileState struct {
	MtimeNS int64
	Size    int64
}

// StoredChunk is a parsed chunk plus its cached embedding, if any.
type StoredChunk struct {
	Chunk
	Embedding []float64
}

const storeSchemaVersion = 1

const storeSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
    path     TEXT PRIMARY KEY,
    mtime_ns INTEGER NOT NULL,
    size     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT PRIMARY KEY,
    path        TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
    start_line  INTEGER NOT NULL,
    end_line    INTEGER NOT NULL,
    kind        TEXT NOT NULL,
    name        TEXT NOT NULL,
    params      TEXT NOT NULL DEFAULT '[]',
    return_type TEXT NOT NULL DEFAULT '',
    extends     TEXT NOT NULL DEFAULT '',
    doc         TEXT NOT NULL DEFAULT '',
    calls       TEXT NOT NULL DEFAULT '[]',
    content     TEXT NOT NULL DEFAULT '',
    embedding   TEXT
);

CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
`

// OpenStore creates or opens the state database at the given path.
// Use ":memory:" for an in-memory database; that is the default mode and
// keeps the server free of persisted state.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrateStore(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrateStore(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		// Table doesn't exist or is empty, start from zero
		current = 0
	}

	if current >= storeSchemaVersion {
		return nil
	}

	if current < 1 {
		if _, err := db.Exec(storeSchemaV1); err != nil {
			return err
		}
	}

	_, err := db.Exec(`
		DELETE FROM schema_version;
		INSERT INTO schema_version (version) VALUES (?);
	`, storeSchemaVersion)
	return err
}

// FileStates returns the sync state of every known file.
func (s *Store) FileStates(ctx context.Context) (map[string]FileState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, mtime_ns, size FROM files`)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	states := make(map[string]FileState)
	for rows.Next() {
		var path string
		var st FileState
		if err := rows.Scan(&path, &st.MtimeNS, &st.Size); err != nil {
			return nil, err
		}
		states[path] = st
	}
	return states, rows.Err()
}

// ReplaceFile records a file's state and swaps in its freshly parsed chunks
// in one transaction.
func (s *Store) ReplaceFile(ctx context.Context, path string, state FileState, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (path, mtime_ns, size) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime_ns = excluded.mtime_ns, size = excluded.size`,
		path, state.MtimeNS, state.Size,
	)
	if err != nil {
		return fmt.Errorf("upserting file: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	for _, c := range chunks {
		params, _ := json.Marshal(c.Params)
		calls, _ := json.Marshal(c.Calls)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, path, start_line, end_line, kind, name, params, return_type, extends, doc, calls, content)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.File, c.StartLine, c.EndLine, c.Kind, c.Name,
			string(params), c.ReturnType, c.Extends, c.Doc, string(calls), c.Content,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteFile removes a file and its chunks.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	// Delete chunks first (foreign key), then the file row
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	return err
}

// ChunkIDsByPath returns the chunk ids currently stored for a file, used to
// drop stale entries from the text index before re-indexing.
func (s *Store) ChunkIDsByPath(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("listing chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChunksByIDs hydrates chunks for the given ids. Missing ids are skipped.
func (s *Store) ChunksByIDs(ctx context.Context, ids []string) (map[string]StoredChunk, error) {
	out := make(map[string]StoredChunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, start_line, end_line, kind, name, params, return_type, extends, doc, calls, content, embedding
		FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc StoredChunk
		var params, calls string
		var embedding sql.NullString
		err := rows.Scan(&sc.ID, &sc.File, &sc.StartLine, &sc.EndLine, &sc.Kind, &sc.Name,
			&params, &sc.ReturnType, &sc.Extends, &sc.Doc, &calls, &sc.Content, &embedding)
		if err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(params), &sc.Params)
		json.Unmarshal([]byte(calls), &sc.Calls)
		if embedding.Valid {
			json.Unmarshal([]byte(embedding.String), &sc.Embedding)
		}
		out[sc.ID] = sc
	}
	return out, rows.Err()
}

// SetEmbedding caches a chunk's embedding vector.
func (s *Store) SetEmbedding(ctx context.Context, id string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE chunks SET embedding = ? WHERE id = ?`, string(data), id)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
