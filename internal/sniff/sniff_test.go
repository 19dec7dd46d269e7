package sniff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Magic bytes for the formats the pipeline cares about.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte("GIF89a")
	webpMagic = []byte{'R', 'I', 'F', 'F', 0x00, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P'}
	mp4Magic  = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}
	exeMagic  = []byte{0x4D, 0x5A, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00}
)

// writeTempFile writes magic bytes padded with zeros so the file is larger
// than any signature the matcher needs.
func writeTempFile(t *testing.T, name string, magic []byte) string {
	t.Helper()
	buf := make([]byte, 512)
	copy(buf, magic)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestSniff_DetectsImageTypes(t *testing.T) {
	tests := []struct {
		name     string
		magic    []byte
		wantExt  string
		wantMIME string
	}{
		{"jpeg", jpegMagic, "jpg", "image/jpeg"},
		{"png", pngMagic, "png", "image/png"},
		{"gif", gifMagic, "gif", "image/gif"},
		{"webp", webpMagic, "webp", "image/webp"},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "upload.bin", tt.magic)
			ext, mime, err := s.Sniff(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}
}

func TestSniff_UnknownTypeIsNotAnError(t *testing.T) {
	s := New()
	path := writeTempFile(t, "garbage.bin", []byte("not any known format"))

	ext, mime, err := s.Sniff(path)
	require.NoError(t, err)
	assert.Empty(t, ext)
	assert.Empty(t, mime)
}

func TestSniff_ShortFile(t *testing.T) {
	// A file shorter than the sniff window must still classify.
	s := New()
	path := filepath.Join(t.TempDir(), "short.png")
	require.NoError(t, os.WriteFile(path, pngMagic, 0o644))

	ext, _, err := s.Sniff(path)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
}

func TestSniff_MissingFilePropagatesError(t *testing.T) {
	s := New()
	_, _, err := s.Sniff(filepath.Join(t.TempDir(), "vanished.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsAllowedImage(t *testing.T) {
	s := New()

	// Sniffed content drives the decision, exactly as the pipeline wires it.
	tests := []struct {
		name  string
		magic []byte
		want  bool
	}{
		{"png allowed", pngMagic, true},
		{"jpeg allowed", jpegMagic, true},
		{"gif allowed", gifMagic, true},
		{"webp allowed", webpMagic, true},
		{"mp4 is not an image", mp4Magic, false},
		{"executable rejected", exeMagic, false},
		{"empty file rejected", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			if tt.magic == nil {
				path = filepath.Join(t.TempDir(), "empty")
				require.NoError(t, os.WriteFile(path, nil, 0o644))
			} else {
				path = writeTempFile(t, "candidate", tt.magic)
			}

			ext, _, err := s.Sniff(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.IsAllowedImage(ext))
		})
	}
}

func TestIsAllowedImage_UnrecognizedExtension(t *testing.T) {
	s := New()
	assert.False(t, s.IsAllowedImage(""))
	assert.False(t, s.IsAllowedImage("svg"))
}
