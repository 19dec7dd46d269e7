package port

// TypeSniffer classifies a file's real content by its leading bytes,
// independent of filename or declared type.
type TypeSniffer interface {
	// Sniff returns the detected type extension (e.g. "png") and MIME type,
	// or empty strings when the prefix is unrecognized. Read failures are
	// propagated, never reported as an unrecognized type.
	Sniff(path string) (ext string, mime string, err error)

	// IsAllowedImage reports whether a sniffed type extension is one of the
	// accepted image formats. The file is read once by Sniff; the allowlist
	// check works on its result.
	IsAllowedImage(ext string) bool
}
