package http

import (
	"net/http"

	"github.com/bnema/blobstream/internal/adapter/http/middleware"
	"github.com/bnema/blobstream/internal/port"
)

type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
}

func NewServer(ingestor Ingestor, store port.BlobStore, stagingDir string, maxSizeMB int) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: NewHandlers(ingestor, store, stagingDir, maxSizeMB),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/images", s.handlers.UploadImages())
	s.mux.HandleFunc("POST /api/videos", s.handlers.UploadVideos())
	s.mux.HandleFunc("GET /api/image", s.handlers.GetImage())
	s.mux.HandleFunc("GET /api/stream", s.handlers.Stream())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
