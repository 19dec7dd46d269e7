package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/port"
	"github.com/google/uuid"
)

var errUploadFinished = errors.New("upload already finished")

// upload buffers incoming bytes into fixed-size chunks and writes one chunk
// row per flush. The blob row already exists when the upload starts; Commit
// records the final length and flips it visible.
type upload struct {
	store    *Store
	ctx      context.Context
	id       uuid.UUID
	buf      []byte
	nextIdx  int64
	written  int64
	finished bool
}

func (u *upload) ID() uuid.UUID {
	return u.id
}

func (u *upload) Write(p []byte) (int, error) {
	if u.finished {
		return 0, errUploadFinished
	}

	total := len(p)
	for len(p) > 0 {
		space := chunkSize - len(u.buf)
		if space > len(p) {
			space = len(p)
		}
		u.buf = append(u.buf, p[:space]...)
		p = p[space:]

		if len(u.buf) == chunkSize {
			if err := u.flush(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (u *upload) flush() error {
	if len(u.buf) == 0 {
		return nil
	}

	_, err := u.store.db.ExecContext(u.ctx,
		`INSERT INTO blob_chunks (blob_id, idx, data) VALUES (?, ?, ?)`,
		u.id.String(), u.nextIdx, u.buf,
	)
	if err != nil {
		return fmt.Errorf("write chunk %d of %s: %w", u.nextIdx, u.id, err)
	}

	u.written += int64(len(u.buf))
	u.nextIdx++
	u.buf = u.buf[:0]
	return nil
}

// Commit flushes the trailing partial chunk, marks the blob complete and
// returns its stored form. A failed Commit leaves the upload open so a
// subsequent Abort deletes the rows written so far.
func (u *upload) Commit() (*domain.StoredBlob, error) {
	if u.finished {
		return nil, errUploadFinished
	}

	if err := u.flush(); err != nil {
		return nil, err
	}

	_, err := u.store.db.ExecContext(u.ctx,
		`UPDATE blobs SET length = ?, complete = 1 WHERE id = ?`,
		u.written, u.id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("finalize blob %s: %w", u.id, err)
	}
	u.finished = true

	return u.store.Find(u.ctx, u.id)
}

// Abort discards the blob row and any chunks written so far. It is a no-op
// after a successful Commit. The deletes run on a fresh context: uploads
// usually abort precisely because the request context died, and the cleanup
// must not die with it. No transactional guarantee is made for half-written
// uploads; rows surviving a failed Abort are reaped out of band.
func (u *upload) Abort() error {
	if u.finished {
		return nil
	}
	u.finished = true

	ctx := context.Background()
	_, chunkErr := u.store.db.ExecContext(ctx,
		`DELETE FROM blob_chunks WHERE blob_id = ?`, u.id.String())
	_, blobErr := u.store.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE id = ?`, u.id.String())

	return errors.Join(chunkErr, blobErr)
}

var _ port.Upload = (*upload)(nil)
