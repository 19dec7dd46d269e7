package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/bnema/blobstream/internal/adapter/http/validation"
	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/infrastructure/logger"
	"github.com/bnema/blobstream/internal/port"
	"github.com/google/uuid"
)

// defaultImageContentType is served when an image blob carries no metadata.
const defaultImageContentType = "image/png"

// defaultStreamContentType is served when a streamed blob carries no metadata.
const defaultStreamContentType = "video/mp4"

// Ingestor is the slice of the ingestion pipeline the handlers need.
type Ingestor interface {
	IngestImages(ctx context.Context, files []domain.PendingFile) ([]domain.StoredBlob, error)
	IngestVideos(ctx context.Context, files []domain.PendingFile, maxDurationSeconds float64) ([]domain.StoredBlob, error)
}

type Handlers struct {
	ingestor   Ingestor
	store      port.BlobStore
	stagingDir string
	maxSizeMB  int
}

func NewHandlers(ingestor Ingestor, store port.BlobStore, stagingDir string, maxSizeMB int) *Handlers {
	return &Handlers{
		ingestor:   ingestor,
		store:      store,
		stagingDir: stagingDir,
		maxSizeMB:  maxSizeMB,
	}
}

// blobDescriptor is the client-facing shape of a stored blob.
type blobDescriptor struct {
	ID          uuid.UUID       `json:"id"`
	Filename    string          `json:"filename"`
	Length      int64           `json:"length"`
	ContentType string          `json:"contentType"`
	Poster      *blobDescriptor `json:"poster,omitempty"`
}

func (h *Handlers) describe(ctx context.Context, blob *domain.StoredBlob, fallbackType string) blobDescriptor {
	desc := blobDescriptor{
		ID:          blob.ID,
		Filename:    blob.Name,
		Length:      blob.Length,
		ContentType: blob.ContentType(fallbackType),
	}

	if posterID := blob.PosterID(); posterID != uuid.Nil {
		poster, err := h.store.Find(ctx, posterID)
		if err != nil {
			logger.Warn.Printf("poster %s of %s not found: %v", posterID, blob.ID, err)
		} else {
			nested := h.describe(ctx, poster, defaultImageContentType)
			desc.Poster = &nested
		}
	}
	return desc
}

// stageUploads copies every part of the multipart field "files" into the
// staging dir. The returned PendingFiles belong to their ingestion job from
// here on; on a staging error the already-staged files are removed because
// no job ever took them over.
func (h *Handlers) stageUploads(r *http.Request) ([]domain.PendingFile, error) {
	maxBytes := int64(h.maxSizeMB) * 1024 * 1024
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("no files in request")
	}

	staged := make([]domain.PendingFile, 0, len(headers))
	for _, hdr := range headers {
		pending, err := h.stageOne(hdr)
		if err != nil {
			for _, p := range staged {
				if rmErr := os.Remove(p.Path); rmErr != nil {
					logger.Warn.Printf("failed to remove staged file %s: %v", p.Path, rmErr)
				}
			}
			return nil, err
		}
		staged = append(staged, pending)
	}
	return staged, nil
}

func (h *Handlers) stageOne(hdr *multipart.FileHeader) (domain.PendingFile, error) {
	src, err := hdr.Open()
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("open upload %s: %w", hdr.Filename, err)
	}
	defer src.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(h.stagingDir, "upload-*")
	if err != nil {
		return domain.PendingFile{}, fmt.Errorf("create staging file: %w", err)
	}

	n, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return domain.PendingFile{}, fmt.Errorf("stage upload %s: %w", hdr.Filename, err)
	}

	return domain.PendingFile{
		Path:     tmp.Name(),
		Filename: validation.SanitizeFilename(hdr.Filename),
		Size:     n,
	}, nil
}

// UploadImages ingests a batch of images. The response lists accepted images
// only; rejected files are omitted without a per-file error.
func (h *Handlers) UploadImages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxSizeMB)*1024*1024)

		files, err := h.stageUploads(r)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err.Error())
			return
		}

		blobs, err := h.ingestor.IngestImages(r.Context(), files)
		if err != nil {
			respondInternal(w, err)
			return
		}

		descs := make([]blobDescriptor, 0, len(blobs))
		for i := range blobs {
			descs = append(descs, h.describe(r.Context(), &blobs[i], defaultImageContentType))
		}
		respondJSON(w, http.StatusOK, descs)
	}
}

// UploadVideos ingests a batch of videos, honoring an optional maxDuration
// form value (seconds). Items that fail probing, transcoding or storage are
// omitted from the response.
func (h *Handlers) UploadVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxSizeMB)*1024*1024)

		files, err := h.stageUploads(r)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err.Error())
			return
		}

		var maxDuration float64
		if raw := r.FormValue("maxDuration"); raw != "" {
			maxDuration, err = strconv.ParseFloat(raw, 64)
			if err != nil || maxDuration < 0 {
				for _, f := range files {
					if rmErr := os.Remove(f.Path); rmErr != nil {
						logger.Warn.Printf("failed to remove staged file %s: %v", f.Path, rmErr)
					}
				}
				respondErr(w, http.StatusBadRequest, "invalid maxDuration")
				return
			}
		}

		blobs, err := h.ingestor.IngestVideos(r.Context(), files, maxDuration)
		if err != nil {
			respondInternal(w, err)
			return
		}

		descs := make([]blobDescriptor, 0, len(blobs))
		for i := range blobs {
			descs = append(descs, h.describe(r.Context(), &blobs[i], defaultStreamContentType))
		}
		respondJSON(w, http.StatusOK, descs)
	}
}

// blobID pulls the required id query parameter. The missing-id rejection
// happens before any store access.
func blobID(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return uuid.Nil, domain.ErrMissingID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed id %q: %w", raw, err)
	}
	return id, nil
}

// GetImage serves a stored image's raw bytes with its stored content type.
func (h *Handlers) GetImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := blobID(r)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err.Error())
			return
		}

		blob, err := h.store.Find(r.Context(), id)
		if err != nil {
			respondStoreErr(w, err)
			return
		}

		src, err := h.store.OpenDownload(r.Context(), id, nil)
		if err != nil {
			respondStoreErr(w, err)
			return
		}
		defer src.Close() //nolint:errcheck

		w.Header().Set("Content-Type", blob.ContentType(defaultImageContentType))
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Length, 10))
		w.Header().Set("Content-Disposition", validation.ContentDisposition(blob.Name, true))

		if _, err := io.Copy(w, src); err != nil {
			logger.Error.Printf("image %s stream aborted: %v", id, err)
			panic(http.ErrAbortHandler)
		}
	}
}

// Stream serves a blob honoring byte-range requests. Every success — full
// body or window — is a 206: that is the documented contract of the original
// streamer and is preserved as-is.
func (h *Handlers) Stream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := blobID(r)
		if err != nil {
			respondErr(w, http.StatusBadRequest, err.Error())
			return
		}

		blob, err := h.store.Find(r.Context(), id)
		if err != nil {
			respondStoreErr(w, err)
			return
		}

		rng, err := domain.ParseRange(r.Header.Get("Range"), blob.Length)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnsupportedRangeUnit):
				respondErr(w, http.StatusRequestedRangeNotSatisfiable, "Bytes only, please!!")
			case errors.Is(err, domain.ErrUnsatisfiableRange):
				respondErr(w, http.StatusRequestedRangeNotSatisfiable, "Invalid Range")
			default:
				respondInternal(w, err)
			}
			return
		}

		src, err := h.store.OpenDownload(r.Context(), id, rng)
		if err != nil {
			respondStoreErr(w, err)
			return
		}
		defer src.Close() //nolint:errcheck

		w.Header().Set("Content-Type", blob.ContentType(defaultStreamContentType))
		w.Header().Set("Accept-Ranges", "bytes")

		if rng == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(blob.Length, 10))
		} else {
			w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
			w.Header().Set("Content-Range", rng.ContentRange())
		}
		w.WriteHeader(http.StatusPartialContent)

		if _, err := io.Copy(w, src); err != nil {
			// Abort the connection instead of delivering a truncated body.
			logger.Error.Printf("blob %s stream aborted: %v", id, err)
			panic(http.ErrAbortHandler)
		}
	}
}
