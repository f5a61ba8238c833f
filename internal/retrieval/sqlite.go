package retrieval

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteIndex keeps passages and their embeddings in a local SQLite file
// and ranks them by cosine similarity at query time.
type SQLiteIndex struct {
	db       *sql.DB
	embedder Embedder
	topK     int
}

func NewSQLiteIndex(path string, embedder Embedder, k int) (*SQLiteIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &SQLiteIndex{db: db, embedder: embedder, topK: topK(k)}
	if err := idx.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteIndex) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed.FS paths always use forward slashes.
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Upsert replaces every passage stored for source in a single transaction.
func (s *SQLiteIndex) Upsert(ctx context.Context, source string, passages []Passage) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source is required")
	}
	for i, p := range passages {
		if len(p.Embedding) == 0 {
			return fmt.Errorf("passage %d of %s has no embedding", i, source)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE source = ?`, source); err != nil {
		return fmt.Errorf("clear passages for %s: %w", source, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages (source, chunk_index, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, source, p.ChunkIndex, p.Content, encodeVector(p.Embedding)); err != nil {
			return fmt.Errorf("insert passage %d of %s: %w", p.ChunkIndex, source, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("delete passages for %s: %w", source, err)
	}
	return nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Search embeds the query and returns the topK most similar passages.
// Ties keep insertion order.
func (s *SQLiteIndex) Search(ctx context.Context, query string) ([]Passage, error) {
	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, chunk_index, content, embedding FROM passages ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	ret := make([]Passage, 0)
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.Source, &p.ChunkIndex, &p.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode passage %s#%d: %w", p.Source, p.ChunkIndex, err)
		}
		p.Score = cosine(vector, emb)
		ret = append(ret, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Score > ret[j].Score })
	if len(ret) > s.topK {
		ret = ret[:s.topK]
	}
	return ret, nil
}
