package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/infrastructure/logger"
	"github.com/bnema/blobstream/internal/port"
)

// errNotAnImage marks the one drop reason that is a normal outcome rather
// than a fault: the sniffed type is outside the image allowlist.
var errNotAnImage = errors.New("not an allowed image")

// defaultVideoContentType is stored when sniffing the produced video fails
// to classify it.
const defaultVideoContentType = "video/mp4"

// IngestionPipeline turns staged uploads into stored blobs. Batch entry
// points are fault-isolated per item: one bad file never aborts its
// siblings, and every staged temp file is gone when its item finishes,
// whichever way it finished.
type IngestionPipeline struct {
	store            port.BlobStore
	sniffer          port.TypeSniffer
	transcoder       port.VideoTranscoder
	maxVideoDuration float64
}

func NewIngestionPipeline(
	store port.BlobStore,
	sniffer port.TypeSniffer,
	transcoder port.VideoTranscoder,
	maxVideoDurationSeconds float64,
) *IngestionPipeline {
	return &IngestionPipeline{
		store:            store,
		sniffer:          sniffer,
		transcoder:       transcoder,
		maxVideoDuration: maxVideoDurationSeconds,
	}
}

// itemResult is the per-item outcome of a batch: either a stored blob or the
// reason the item was dropped. Drops never surface as batch errors, but the
// reason is kept so it can be logged and inspected.
type itemResult struct {
	file domain.PendingFile
	blob *domain.StoredBlob
	err  error
}

// IngestImages stores every file whose sniffed type is an allowed image.
// Files of any other type are dropped silently; store failures drop the item
// with a logged reason. The error return covers only malformed batch input.
func (p *IngestionPipeline) IngestImages(ctx context.Context, files []domain.PendingFile) ([]domain.StoredBlob, error) {
	results := make([]itemResult, 0, len(files))
	for _, f := range files {
		blob, err := p.ingestImage(ctx, f)
		results = append(results, itemResult{file: f, blob: blob, err: err})
	}
	return collect(results), nil
}

// ingestImage runs one file through the image path. The prefix is read once;
// the allowlist check and the stored content type both come from that single
// sniff. The staged file is removed on every exit.
func (p *IngestionPipeline) ingestImage(ctx context.Context, f domain.PendingFile) (*domain.StoredBlob, error) {
	defer p.removeTemp(f.Path)

	ext, mime, err := p.sniffer.Sniff(f.Path)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", f.Filename, err)
	}
	if !p.sniffer.IsAllowedImage(ext) {
		return nil, errNotAnImage
	}

	return p.uploadFile(ctx, f, map[string]string{domain.MetaContentType: mime})
}

// IngestVideos stores every file that survives probing, transcoding and
// poster extraction. Items exceeding the duration limit or failing any stage
// are dropped after compensating cleanup; the loop always continues.
func (p *IngestionPipeline) IngestVideos(ctx context.Context, files []domain.PendingFile, maxDurationSeconds float64) ([]domain.StoredBlob, error) {
	if maxDurationSeconds <= 0 {
		maxDurationSeconds = p.maxVideoDuration
	}

	results := make([]itemResult, 0, len(files))
	for _, f := range files {
		blob, err := p.ingestVideo(ctx, f, maxDurationSeconds)
		results = append(results, itemResult{file: f, blob: blob, err: err})
	}
	return collect(results), nil
}

// ingestVideo is an ordered sequence of stages, each paired with the cleanup
// owed if a later stage fails: transcode, poster ingest, video upload. The
// transcoder removes artifacts of a failed re-encode itself; everything it
// handed over is this function's to clean.
func (p *IngestionPipeline) ingestVideo(ctx context.Context, f domain.PendingFile, maxDurationSeconds float64) (*domain.StoredBlob, error) {
	outcome, err := p.transcoder.Transcode(ctx, f, maxDurationSeconds)
	if err != nil {
		p.removeTemp(f.Path)
		return nil, fmt.Errorf("transcode %s: %w", f.Filename, err)
	}

	// The poster re-enters the image path, which owns the poster temp file
	// from here on and removes it on success and failure alike.
	poster, err := p.ingestImage(ctx, domain.PendingFile{
		Path:     outcome.PosterPath,
		Filename: f.Filename + ".png",
	})
	if err != nil {
		if outcome.Reencoded {
			p.removeTemp(outcome.VideoPath)
		}
		p.removeTemp(f.Path)
		return nil, fmt.Errorf("poster for %s: %w", f.Filename, err)
	}

	metadata := map[string]string{
		domain.MetaContentType: p.videoContentType(outcome.VideoPath),
		domain.MetaPoster:      poster.ID.String(),
	}

	blob, err := p.uploadFile(ctx, domain.PendingFile{
		Path:     outcome.VideoPath,
		Filename: f.Filename,
	}, metadata)
	if outcome.Reencoded {
		// uploadFile removed outcome.VideoPath; the original is still ours.
		p.removeTemp(f.Path)
	}
	if err != nil {
		// The committed poster blob stays: cleanup only ever targets local
		// temp files, never committed blobs.
		return nil, fmt.Errorf("store %s: %w", f.Filename, err)
	}

	return blob, nil
}

// uploadFile streams a staged file into the blob store. The staged file is
// removed on every exit; a failed upload is aborted best-effort.
func (p *IngestionPipeline) uploadFile(ctx context.Context, f domain.PendingFile, metadata map[string]string) (*domain.StoredBlob, error) {
	defer p.removeTemp(f.Path)

	src, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer src.Close() //nolint:errcheck

	up, err := p.store.BeginUpload(ctx, f.Filename, metadata)
	if err != nil {
		return nil, fmt.Errorf("begin upload %s: %w", f.Filename, err)
	}

	if _, err := io.Copy(up, src); err != nil {
		if abortErr := up.Abort(); abortErr != nil {
			logger.Warn.Printf("abort upload %s: %v", up.ID(), abortErr)
		}
		return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
	}

	blob, err := up.Commit()
	if err != nil {
		if abortErr := up.Abort(); abortErr != nil {
			logger.Warn.Printf("abort upload %s: %v", up.ID(), abortErr)
		}
		return nil, fmt.Errorf("commit %s: %w", f.Filename, err)
	}

	return blob, nil
}

func (p *IngestionPipeline) videoContentType(path string) string {
	_, mime, err := p.sniffer.Sniff(path)
	if err != nil || mime == "" {
		return defaultVideoContentType
	}
	return mime
}

// removeTemp deletes a staged file. Failures are logged and swallowed so a
// cleanup problem never shadows the error that caused it.
func (p *IngestionPipeline) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn.Printf("failed to remove temp file %s: %v", path, err)
	}
}

// collect aggregates per-item results into the partial-success list, logging
// why each dropped item was dropped.
func collect(results []itemResult) []domain.StoredBlob {
	blobs := make([]domain.StoredBlob, 0, len(results))
	for _, r := range results {
		name := logger.SanitizeForLog(r.file.Filename)
		switch {
		case r.err == nil:
			logger.Info.Printf("stored %s as %s (%d bytes)", name, r.blob.ID, r.blob.Length)
			blobs = append(blobs, *r.blob)
		case errors.Is(r.err, errNotAnImage):
			logger.Debug.Printf("skipped %s: %v", name, r.err)
		default:
			logger.Warn.Printf("dropped %s: %v", name, r.err)
		}
	}
	return blobs
}
