package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// chunkReader streams a byte window of a blob, fetching one chunk row at a
// time. pos is the absolute offset of the next byte to deliver.
type chunkReader struct {
	store     *Store
	ctx       context.Context
	id        uuid.UUID
	pos       int64
	remaining int64
	cur       []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	if len(r.cur) == 0 {
		if err := r.fetch(); err != nil {
			return 0, err
		}
	}

	n := len(r.cur)
	if int64(n) > r.remaining {
		n = int(r.remaining)
	}
	if n > len(p) {
		n = len(p)
	}
	n = copy(p, r.cur[:n])
	r.cur = r.cur[n:]
	r.pos += int64(n)
	r.remaining -= int64(n)
	return n, nil
}

func (r *chunkReader) fetch() error {
	idx := r.pos / chunkSize
	offset := r.pos % chunkSize

	var data []byte
	err := r.store.db.QueryRowContext(r.ctx,
		`SELECT data FROM blob_chunks WHERE blob_id = ? AND idx = ?`,
		r.id.String(), idx,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			// The blob row promised more bytes than its chunks hold.
			return fmt.Errorf("blob %s truncated at chunk %d: %w", r.id, idx, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("read chunk %d of %s: %w", idx, r.id, err)
	}

	if offset >= int64(len(data)) {
		return fmt.Errorf("blob %s truncated at chunk %d: %w", r.id, idx, io.ErrUnexpectedEOF)
	}
	r.cur = data[offset:]
	return nil
}

func (r *chunkReader) Close() error {
	r.cur = nil
	r.remaining = 0
	return nil
}
