// Package validation sanitizes client-supplied filenames before they are
// used as stored blob names or in response headers.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength caps stored names at the common filesystem limit.
const maxFilenameLength = 255

// SanitizeFilename makes a client filename safe for storage and for use in
// Content-Disposition headers. Path separators, quotes and control
// characters become underscores; Unicode is preserved; the result is capped
// at 255 bytes keeping the extension. Empty or fully-replaced input yields
// "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		switch {
		case r < 32 || r == 127:
			sb.WriteRune('_')
		case r == '"' || r == '\\' || r == '/' || r == ':':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())
	if strings.Trim(result, "_") == "" {
		return "file"
	}

	if len(result) > maxFilenameLength {
		result = truncateKeepingExtension(result)
	}
	return result
}

func truncateKeepingExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}
	base := name[:len(name)-len(ext)]
	return truncateToBytes(base, maxFilenameLength-len(ext)) + ext
}

// truncateToBytes cuts a UTF-8 string at a byte limit without splitting a
// multi-byte character.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// ContentDisposition builds a Content-Disposition value around the
// sanitized filename.
func ContentDisposition(filename string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(filename))
}
