package port

import (
	"context"
	"io"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/google/uuid"
)

// Upload is an in-progress blob upload. The id is allocated eagerly and is
// available before any data is written. Every upload ends in Commit or
// Abort: Commit finalizes the blob and returns its stored form, Abort
// best-effort discards whatever was written. Abort after a successful
// Commit is a no-op; after a failed Commit it discards the partial upload.
type Upload interface {
	io.Writer

	ID() uuid.UUID
	Commit() (*domain.StoredBlob, error)
	Abort() error
}

// BlobStore is chunked binary storage addressed by unique ids. The pipeline
// never deletes committed blobs; cleanup only ever targets local temp files.
type BlobStore interface {
	BeginUpload(ctx context.Context, name string, metadata map[string]string) (Upload, error)
	Find(ctx context.Context, id uuid.UUID) (*domain.StoredBlob, error)

	// OpenDownload streams a blob's bytes, restricted to rng when non-nil.
	// An unknown id yields an error, never an empty stream.
	OpenDownload(ctx context.Context, id uuid.UUID, rng *domain.ByteRange) (io.ReadCloser, error)
}
