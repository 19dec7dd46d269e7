package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog renders a client-supplied string safe to embed in a log
// line. Upload filenames arrive straight from the multipart form, so a
// crafted name could forge log entries via newlines or drive the terminal
// through ANSI sequences. Control characters (including DEL and ESC) are
// escaped to visible sequences; printable text, Unicode included, passes
// through untouched.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 32 || r == 127 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
