package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is a single validated sub-range of a stored blob, derived from a
// Range request header. Invariant: 0 <= Start <= End < Total. Instances are
// only constructed by ParseRange, which rejects anything violating it.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of bytes the range covers.
func (r *ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for the range.
func (r *ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// ParseRange parses a Range header value against a blob of the given total
// length. A nil range with a nil error means "serve the whole blob": that
// covers an absent header and a header too malformed to contain a unit at
// all. A non-bytes unit returns
// ErrUnsupportedRangeUnit; multiple ranges or ranges outside the blob's
// bounds return ErrUnsatisfiableRange.
func ParseRange(header string, total int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	unit, spec, ok := strings.Cut(header, "=")
	if !ok {
		// No unit separator: malformed, treated as a whole-file request.
		return nil, nil
	}

	if strings.TrimSpace(unit) != "bytes" {
		return nil, ErrUnsupportedRangeUnit
	}

	if strings.Contains(spec, ",") {
		return nil, ErrUnsatisfiableRange
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, ErrUnsatisfiableRange
	}

	if total <= 0 {
		return nil, ErrUnsatisfiableRange
	}

	// Suffix form "-N": the final N bytes. Asking for more bytes than the
	// blob holds puts the start before byte zero, which is out of bounds
	// like any other start outside the blob.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 || n > total {
			return nil, ErrUnsatisfiableRange
		}
		return &ByteRange{Start: total - n, End: total - 1, Total: total}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, ErrUnsatisfiableRange
	}
	if start >= total {
		return nil, ErrUnsatisfiableRange
	}

	end := total - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, ErrUnsatisfiableRange
		}
		if end >= total {
			end = total - 1
		}
	}

	if start > end {
		return nil, ErrUnsatisfiableRange
	}

	return &ByteRange{Start: start, End: end, Total: total}, nil
}
