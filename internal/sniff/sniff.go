// Package sniff classifies uploaded files by their magic bytes, independent
// of filename or client-declared content type.
package sniff

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bnema/blobstream/internal/port"
	"github.com/h2non/filetype"
)

// sniffLen is the prefix read for detection. 4100 bytes covers every magic
// signature the matcher knows, including types whose markers sit past the
// first few hundred bytes (tar, some ISO media brands).
const sniffLen = 4100

// allowedImageExts is the allowlist of image formats accepted for storage.
var allowedImageExts = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

type Sniffer struct{}

func New() port.TypeSniffer {
	return &Sniffer{}
}

// Sniff reads a bounded prefix of the file and returns the detected type
// extension and MIME type. Unrecognized content yields empty strings with a
// nil error; a failed read is returned as-is, never masked as unrecognized.
func (s *Sniffer) Sniff(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}

	kind, err := filetype.Match(buf[:n])
	if err != nil {
		return "", "", fmt.Errorf("match %s: %w", path, err)
	}
	if kind == filetype.Unknown {
		return "", "", nil
	}

	return kind.Extension, kind.MIME.Value, nil
}

// IsAllowedImage reports whether a sniffed type extension is in the image
// allowlist. An unrecognized type (empty extension) is a normal false.
func (s *Sniffer) IsAllowedImage(ext string) bool {
	return allowedImageExts[ext]
}

var _ port.TypeSniffer = (*Sniffer)(nil)
