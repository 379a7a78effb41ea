package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/vector"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var autoOnce sync.Once

const collectionsSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	dimensions INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Index keeps documents in a regular table and their embeddings in a vec0
// virtual table sharing the same rowid.
type Index struct {
	db         *sql.DB
	collection vector.Collection
	docsTable  string
	vecTable   string
}

func Open(path string, collection vector.Collection) (*Index, error) {
	if err := collection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collection %q: %w", collection.Name, err)
	}

	autoOnce.Do(sqlite_vec.Auto)

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	db.SetMaxOpenConns(1)

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	if _, err := db.Exec(collectionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize collections table: %w", err)
	}

	logger.Info("sqlite-vec index opened",
		zap.String("path", path),
		zap.String("collection", collection.Name),
		zap.String("vec_version", version),
	)

	return &Index{
		db:         db,
		collection: collection,
		docsTable:  "docs_" + collection.Name,
		vecTable:   "vec_" + collection.Name,
	}, nil
}

func (ix *Index) Collection() vector.Collection { return ix.collection }

func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

func (ix *Index) EnsureCollection(ctx context.Context) error {
	var dims int
	err := ix.db.QueryRowContext(ctx,
		`SELECT dimensions FROM collections WHERE name = ?`, ix.collection.Name,
	).Scan(&dims)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ix.create(ctx)
	case err != nil:
		return fmt.Errorf("failed to check collection: %w", err)
	case dims != ix.collection.Dimensions:
		return fmt.Errorf("%w: collection %s has %d, configured %d",
			vector.ErrDimensionMismatch, ix.collection.Name, dims, ix.collection.Dimensions)
	}

	logger.Debug("Collection already exists", zap.String("collection", ix.collection.Name))
	return nil
}

func (ix *Index) create(ctx context.Context) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`, ix.docsTable),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding FLOAT[%d])`,
			ix.vecTable, ix.collection.Dimensions),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection tables: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (name, description, dimensions, created_at) VALUES (?, ?, ?, ?)`,
		ix.collection.Name, ix.collection.Description, ix.collection.Dimensions, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to register collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}

	logger.Info("Collection created", zap.String("collection", ix.collection.Name))
	return nil
}

func (ix *Index) Insert(ctx context.Context, docs []vector.Document, embeddings [][]float32) (int, error) {
	if len(docs) != len(embeddings) {
		return 0, vector.ErrLengthMismatch
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertDoc := fmt.Sprintf(`INSERT OR IGNORE INTO %s (doc_id, text, metadata) VALUES (?, ?, ?)`, ix.docsTable)
	insertVec := fmt.Sprintf(`INSERT INTO %s (rowid, embedding) VALUES (?, ?)`, ix.vecTable)

	inserted := 0
	for i, doc := range docs {
		if len(embeddings[i]) != ix.collection.Dimensions {
			return 0, fmt.Errorf("%w: document %s has %d, collection has %d",
				vector.ErrDimensionMismatch, doc.ID, len(embeddings[i]), ix.collection.Dimensions)
		}

		meta, err := json.Marshal(nonNilMeta(doc.Metadata))
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata: %w", err)
		}

		res, err := tx.ExecContext(ctx, insertDoc, doc.ID, doc.Text, string(meta))
		if err != nil {
			return 0, fmt.Errorf("failed to insert document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			logger.Debug("Document already indexed", zap.String("doc_id", doc.ID))
			continue
		}

		rowID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read document rowid: %w", err)
		}

		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return 0, fmt.Errorf("failed to serialize embedding: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertVec, rowID, blob); err != nil {
			return 0, fmt.Errorf("failed to insert embedding: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit documents: %w", err)
	}

	logger.Info("Documents indexed",
		zap.String("collection", ix.collection.Name),
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(docs)-inserted),
	)

	return inserted, nil
}

func (ix *Index) Search(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return []vector.Match{}, nil
	}
	if len(embedding) != ix.collection.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, collection has %d",
			vector.ErrDimensionMismatch, len(embedding), ix.collection.Dimensions)
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize embedding: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT d.doc_id, d.text, d.metadata, v.distance
		FROM %s v
		JOIN %s d ON d.id = v.rowid
		WHERE v.embedding MATCH ?
		  AND k = ?
		ORDER BY v.distance
	`, ix.vecTable, ix.docsTable)

	rows, err := ix.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	matches := make([]vector.Match, 0, k)
	for rows.Next() {
		var m vector.Match
		var meta string
		if err := rows.Scan(&m.Document.ID, &m.Document.Text, &meta, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &m.Document.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}

	return matches, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ix.docsTable)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (ix *Index) Reset(ctx context.Context) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, ix.vecTable),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, ix.docsTable),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, ix.collection.Name); err != nil {
		return fmt.Errorf("failed to unregister collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drop: %w", err)
	}

	logger.Warn("Collection dropped", zap.String("collection", ix.collection.Name))

	return ix.create(ctx)
}

func nonNilMeta(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
