package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bnema/blobstream/config"
	HTTPAdapter "github.com/bnema/blobstream/internal/adapter/http"
	sqlitestore "github.com/bnema/blobstream/internal/adapter/storage/sqlite"
	"github.com/bnema/blobstream/internal/adapter/transcoder/ffmpeg"
	"github.com/bnema/blobstream/internal/infrastructure/logger"
	"github.com/bnema/blobstream/internal/service"
	"github.com/bnema/blobstream/internal/sniff"
)

// stagingMaxAge is how long an orphaned staging file may linger before the
// reaper removes it. Files this old belong to requests that died mid-flight.
const stagingMaxAge = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting blobstream on port %d", cfg.Port)

	stagingDir := filepath.Join(cfg.DataDir, "staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		logger.Error.Printf("failed to create staging directory: %v", err)
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	transcoder := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	pipeline := service.NewIngestionPipeline(store, sniff.New(), transcoder, cfg.MaxVideoDurationSeconds)

	server := HTTPAdapter.NewServer(pipeline, store, stagingDir, cfg.MaxUploadSizeMB)

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	// Periodic sweep of the staging dir for files whose requests never
	// cleaned up after themselves.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reapStaging(stagingDir)
			case <-reaperCtx.Done():
				return
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		reaperCancel()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}

func reapStaging(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error.Printf("staging sweep failed: %v", err)
		return
	}

	cutoff := time.Now().Add(-stagingMaxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Error.Printf("failed to reap %s: %v", path, err)
		} else {
			logger.Info.Printf("reaped stale staging file %s", path)
		}
	}
}
