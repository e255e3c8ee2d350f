package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// lookupBatch bounds the number of placeholders in one IN clause.
const lookupBatch = 500

// Store is the chunk store of one corpus directory.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the chunk store inside dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}

	docPath := filepath.Join(dir, domain.DocstoreFile)
	db, err := sql.Open("sqlite", docPath+"?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("opening docstore: %w", err)
	}
	db.SetMaxOpenConns(1)

	vecPath := filepath.Join(dir, domain.VectorStoreFile)
	if _, err := db.Exec("ATTACH DATABASE ? AS vec", vecPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("attaching vector store: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenExisting opens the chunk store of a committed corpus. Unlike Open it
// never creates files: a missing docstore or vector store is an error
// wrapping fs.ErrNotExist.
func OpenExisting(dir string) (*Store, error) {
	for _, name := range []string{domain.DocstoreFile, domain.VectorStoreFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return Open(dir)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the corpus directory.
func (s *Store) Dir() string {
	return s.dir
}

// migrate applies pending .up.sql files in version order and records each
// applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var ups []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			ups = append(ups, entry.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// ReplaceFile removes every chunk and vector owned by path and inserts the
// new chunks in one transaction.
func (s *Store) ReplaceFile(ctx context.Context, path string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteFile(ctx, tx, path); err != nil {
		return err
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_path, position, content, char_off, page, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO vec.vectors (chunk_id, model, dim, vector) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing vector statement: %w", err)
	}
	defer vecStmt.Close()

	for _, c := range chunks {
		meta, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := chunkStmt.ExecContext(ctx, c.ID, path, c.Position, c.Content, c.Offset, c.Page, meta); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
		if len(c.Embedding) == 0 {
			continue
		}
		if _, err := vecStmt.ExecContext(ctx, c.ID, c.EmbeddingModelID, len(c.Embedding), float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving vector %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteFile removes every chunk and vector owned by path.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteFile(ctx, tx, path); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func deleteFile(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM vec.vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE file_path = ?)", path); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", path, err)
	}
	return nil
}

const selectChunk = `
	SELECT c.id, c.file_path, c.position, c.content, c.char_off, c.page, c.metadata,
	       COALESCE(v.model, ''), v.vector
	FROM chunks c LEFT JOIN vec.vectors v ON v.chunk_id = c.id`

// GetChunks returns the chunks with the given IDs, vectors included.
func (s *Store) GetChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	out := make(map[string]domain.Chunk, len(ids))
	for start := 0; start < len(ids); start += lookupBatch {
		batch := ids[start:min(start+lookupBatch, len(ids))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := selectChunk + " WHERE c.id IN (?" + strings.Repeat(",?", len(batch)-1) + ")"
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying chunks: %w", err)
		}
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[c.ID] = c
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating chunks: %w", err)
		}
	}
	return out, nil
}

// ChunkIDs returns the IDs owned by path in position order.
func (s *Store) ChunkIDs(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks WHERE file_path = ? ORDER BY position", path)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// Iterate calls fn for every chunk in insertion order. fn must not call
// back into the store.
func (s *Store) Iterate(ctx context.Context, fn func(domain.Chunk) error) error {
	rows, err := s.db.QueryContext(ctx, selectChunk+" ORDER BY c.seq")
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// VectorDim returns the dimension of the stored vectors, or 0 when there
// are none. Mixed dimensions indicate a corrupt store.
func (s *Store) VectorDim(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT dim FROM vec.vectors LIMIT 2")
	if err != nil {
		return 0, fmt.Errorf("reading vector dimension: %w", err)
	}
	defer rows.Close()

	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("scanning vector dimension: %w", err)
		}
		dims = append(dims, d)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating vector dimensions: %w", err)
	}
	switch len(dims) {
	case 0:
		return 0, nil
	case 1:
		return dims[0], nil
	default:
		return 0, fmt.Errorf("%w: vectors of mixed dimension", domain.ErrCorruptCorpus)
	}
}

// EmbeddingModel returns the model recorded with the stored vectors, or
// "" when there are none.
func (s *Store) EmbeddingModel(ctx context.Context) (string, error) {
	var model string
	err := s.db.QueryRowContext(ctx, "SELECT model FROM vec.vectors LIMIT 1").Scan(&model)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading embedding model: %w", err)
	}
	return model, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (domain.Chunk, error) {
	var (
		c    domain.Chunk
		meta string
		blob []byte
	)
	if err := row.Scan(&c.ID, &c.FilePath, &c.Position, &c.Content, &c.Offset, &c.Page, &meta,
		&c.EmbeddingModelID, &blob); err != nil {
		return domain.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Embedding = bytesToFloat32Slice(blob)
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return domain.Chunk{}, fmt.Errorf("%w: chunk %s metadata: %v", domain.ErrCorruptCorpus, c.ID, err)
		}
	}
	return c, nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshalling chunk metadata: %w", err)
	}
	return string(b), nil
}

// float32SliceToBytes encodes a vector as little-endian float32s.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a vector blob.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
