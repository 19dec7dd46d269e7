package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/port"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory read side of the blob store. It counts lookups
// so tests can assert that invalid requests never reach the store.
type fakeStore struct {
	blobs map[uuid.UUID]*domain.StoredBlob
	data  map[uuid.UUID][]byte
	finds int
	opens int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobs: make(map[uuid.UUID]*domain.StoredBlob),
		data:  make(map[uuid.UUID][]byte),
	}
}

func (s *fakeStore) add(name string, metadata map[string]string, content []byte) uuid.UUID {
	id := uuid.New()
	s.blobs[id] = &domain.StoredBlob{
		ID:       id,
		Name:     name,
		Length:   int64(len(content)),
		Metadata: metadata,
	}
	s.data[id] = content
	return id
}

func (s *fakeStore) BeginUpload(context.Context, string, map[string]string) (port.Upload, error) {
	panic("not used in handler tests")
}

func (s *fakeStore) Find(_ context.Context, id uuid.UUID) (*domain.StoredBlob, error) {
	s.finds++
	blob, ok := s.blobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return blob, nil
}

func (s *fakeStore) OpenDownload(_ context.Context, id uuid.UUID, rng *domain.ByteRange) (io.ReadCloser, error) {
	s.opens++
	data, ok := s.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rng != nil {
		data = data[rng.Start : rng.End+1]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakeIngestor returns canned blobs and records what it was handed.
type fakeIngestor struct {
	images []domain.PendingFile
	videos []domain.PendingFile
	result []domain.StoredBlob
}

func (f *fakeIngestor) IngestImages(_ context.Context, files []domain.PendingFile) ([]domain.StoredBlob, error) {
	f.images = append(f.images, files...)
	return f.result, nil
}

func (f *fakeIngestor) IngestVideos(_ context.Context, files []domain.PendingFile, _ float64) ([]domain.StoredBlob, error) {
	f.videos = append(f.videos, files...)
	return f.result, nil
}

func newTestServer(t *testing.T, store *fakeStore, ingestor Ingestor) *Server {
	t.Helper()
	if ingestor == nil {
		ingestor = &fakeIngestor{}
	}
	return NewServer(ingestor, store, t.TempDir(), 10)
}

func doRequest(srv *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) failure {
	t.Helper()
	var f failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	return f
}

func TestStream_RangeWindow(t *testing.T) {
	store := newFakeStore()
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 256)
	}
	id := store.add("movie.mp4", map[string]string{domain.MetaContentType: "video/mp4"}, content)

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+id.String(), map[string]string{
		"Range": "bytes=0-99",
	})

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, content[:100], rec.Body.Bytes())
}

func TestStream_NoRangeIsStill206(t *testing.T) {
	store := newFakeStore()
	content := bytes.Repeat([]byte("x"), 500)
	id := store.add("movie.mp4", nil, content)

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+id.String(), nil)

	// Full-body responses keep the partial-content status: documented
	// contract of the streamer.
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "500", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestStream_NonBytesUnit(t *testing.T) {
	store := newFakeStore()
	id := store.add("movie.mp4", nil, bytes.Repeat([]byte("x"), 100))

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+id.String(), map[string]string{
		"Range": "items=0-5",
	})

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, 0, store.opens, "no bytes may be read for a rejected range")
}

func TestStream_MultiRangeRejected(t *testing.T) {
	store := newFakeStore()
	id := store.add("movie.mp4", nil, bytes.Repeat([]byte("x"), 1000))

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+id.String(), map[string]string{
		"Range": "bytes=0-99,200-299",
	})

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}

func TestStream_UnsatisfiableStart(t *testing.T) {
	store := newFakeStore()
	id := store.add("movie.mp4", nil, bytes.Repeat([]byte("x"), 100))

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+id.String(), map[string]string{
		"Range": "bytes=100-",
	})

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	f := decodeFailure(t, rec)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, f.Status)
}

func TestStream_MissingIDRejectedBeforeStore(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, http.MethodGet, "/api/stream", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.finds, "missing id must be rejected before any store lookup")
}

func TestStream_UnknownID(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, http.MethodGet, "/api/stream?id="+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	f := decodeFailure(t, rec)
	assert.Equal(t, "File not found", f.Message)
}

func TestGetImage_ContentTypeFromMetadata(t *testing.T) {
	store := newFakeStore()
	id := store.add("pic.gif", map[string]string{domain.MetaContentType: "image/gif"}, []byte("gifdata"))

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/image?id="+id.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gifdata", rec.Body.String())
}

func TestGetImage_DefaultContentType(t *testing.T) {
	store := newFakeStore()
	id := store.add("pic", nil, []byte("data"))

	srv := newTestServer(t, store, nil)
	rec := doRequest(srv, http.MethodGet, "/api/image?id="+id.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestGetImage_MissingID(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	rec := doRequest(srv, http.MethodGet, "/api/image", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.finds)
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadImages_ReturnsDescriptors(t *testing.T) {
	store := newFakeStore()
	ingestor := &fakeIngestor{
		result: []domain.StoredBlob{{
			ID:       uuid.New(),
			Name:     "photo.png",
			Length:   256,
			Metadata: map[string]string{domain.MetaContentType: "image/png"},
		}},
	}
	srv := newTestServer(t, store, ingestor)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"photo.png": []byte("pngdata"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ingestor.images, 1)
	assert.Equal(t, "photo.png", ingestor.images[0].Filename)

	var descs []blobDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descs))
	require.Len(t, descs, 1)
	assert.Equal(t, "photo.png", descs[0].Filename)
	assert.Equal(t, int64(256), descs[0].Length)
	assert.Equal(t, "image/png", descs[0].ContentType)
}

func TestUploadVideos_NestsPosterDescriptor(t *testing.T) {
	store := newFakeStore()
	posterID := store.add("clip.mp4.png", map[string]string{domain.MetaContentType: "image/png"}, []byte("poster"))

	ingestor := &fakeIngestor{
		result: []domain.StoredBlob{{
			ID:     uuid.New(),
			Name:   "clip.mp4",
			Length: 1024,
			Metadata: map[string]string{
				domain.MetaContentType: "video/mp4",
				domain.MetaPoster:      posterID.String(),
			},
		}},
	}
	srv := newTestServer(t, store, ingestor)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"clip.webm": []byte("videodata"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/videos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var descs []blobDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descs))
	require.Len(t, descs, 1)
	require.NotNil(t, descs[0].Poster)
	assert.Equal(t, posterID, descs[0].Poster.ID)
	assert.Equal(t, "image/png", descs[0].Poster.ContentType)
}

func TestUploadImages_NoFiles(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store, nil)

	body, contentType := multipartBody(t, "other", map[string][]byte{
		"ignored.png": []byte("data"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
