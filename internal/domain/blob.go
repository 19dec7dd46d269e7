package domain

import (
	"time"

	"github.com/google/uuid"
)

// Metadata keys attached to stored blobs.
const (
	MetaContentType = "content-type"
	MetaPoster      = "poster"
)

// TargetVideoCodec is the only codec this pipeline produces. Videos probed
// with a different codec are re-encoded into TargetVideoContainer.
const (
	TargetVideoCodec     = "h264"
	TargetVideoContainer = "mp4"
)

// PendingFile is an upload staged on local disk, waiting to be ingested.
// It is owned exclusively by the job processing it: that job removes the
// temporary file on every terminal path, success or failure.
type PendingFile struct {
	Path     string
	Filename string
	Size     int64
}

// StoredBlob is a persisted unit in the blob store. It is created only by a
// committed upload and is immutable afterwards.
type StoredBlob struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"filename"`
	Length    int64             `json:"length"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ContentType returns the stored content type, or the given fallback when
// the blob carries no metadata.
func (b *StoredBlob) ContentType(fallback string) string {
	if ct, ok := b.Metadata[MetaContentType]; ok && ct != "" {
		return ct
	}
	return fallback
}

// PosterID returns the id of the poster blob referenced by a video blob,
// or uuid.Nil when none is attached.
func (b *StoredBlob) PosterID() uuid.UUID {
	raw, ok := b.Metadata[MetaPoster]
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TranscodeOutcome is the transient result of preparing a video for storage.
// VideoPath equals the input path when the source already carried the target
// codec and no re-encode happened. PosterPath is the extracted still frame,
// empty until poster extraction ran. Only the blobs referenced from an
// outcome persist; the outcome itself never does.
type TranscodeOutcome struct {
	VideoPath  string
	PosterPath string
	Reencoded  bool
}

// ProbeResult is what the prober reports about a video file.
type ProbeResult struct {
	DurationSeconds float64
	Codec           string
}
