package port

import (
	"context"

	"github.com/bnema/blobstream/internal/domain"
)

// VideoTranscoder probes uploaded videos and prepares them for storage.
type VideoTranscoder interface {
	Probe(ctx context.Context, path string) (*domain.ProbeResult, error)

	// Transcode enforces the duration limit, re-encodes into the target
	// container unless the source already carries the target codec, and
	// extracts one poster frame. On failure it removes any artifact it
	// created itself; the caller keeps ownership of the input file.
	Transcode(ctx context.Context, file domain.PendingFile, maxDurationSeconds float64) (*domain.TranscodeOutcome, error)
}
