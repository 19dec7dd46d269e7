// Package sqlite implements the chunked blob store on a local SQLite
// database. Blob bytes are split into fixed-size chunk rows so downloads can
// start at any byte offset without reading the whole blob.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/port"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// chunkSize matches the 255 KiB chunks of GridFS-style stores.
const chunkSize = 255 * 1024

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
				"PRAGMA cache_size = -8000",    // 8MB
				"PRAGMA mmap_size = 268435456", // 256MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "blobstream.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BeginUpload allocates a blob id and inserts the blob row immediately, so
// the id is usable before any data arrives. The blob stays invisible to Find
// and OpenDownload until the upload commits.
func (s *Store) BeginUpload(ctx context.Context, name string, metadata map[string]string) (port.Upload, error) {
	id := uuid.New()

	metaJSON := []byte("{}")
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (id, name, chunk_size, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), name, chunkSize, string(metaJSON), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert blob %s: %w", id, err)
	}

	return &upload{
		store: s,
		ctx:   ctx,
		id:    id,
		buf:   make([]byte, 0, chunkSize),
	}, nil
}

func (s *Store) Find(ctx context.Context, id uuid.UUID) (*domain.StoredBlob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, length, metadata, created_at FROM blobs WHERE id = ? AND complete = 1`,
		id.String(),
	)
	return scanBlob(row)
}

// OpenDownload returns a reader over the blob's bytes, restricted to rng
// when non-nil. Chunk rows are fetched lazily at the reader's pace, so a
// slow consumer never forces the whole blob into memory.
func (s *Store) OpenDownload(ctx context.Context, id uuid.UUID, rng *domain.ByteRange) (io.ReadCloser, error) {
	blob, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	start, end := int64(0), blob.Length-1
	if rng != nil {
		start, end = rng.Start, rng.End
		if end > blob.Length-1 {
			end = blob.Length - 1
		}
		if start > end {
			return nil, domain.ErrUnsatisfiableRange
		}
	}

	return &chunkReader{
		store:     s,
		ctx:       ctx,
		id:        id,
		pos:       start,
		remaining: end - start + 1,
	}, nil
}

func scanBlob(row *sql.Row) (*domain.StoredBlob, error) {
	var (
		idStr    string
		name     string
		length   int64
		metaJSON string
		created  time.Time
	)
	if err := row.Scan(&idStr, &name, &length, &metaJSON, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse blob id %q: %w", idStr, err)
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", idStr, err)
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return &domain.StoredBlob{
		ID:        id,
		Name:      name,
		Length:    length,
		Metadata:  metadata,
		CreatedAt: created,
	}, nil
}
