package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a blob id is absent from the store.
	ErrNotFound = errors.New("blob not found")

	// ErrMissingID is returned when a request omits the required id parameter.
	ErrMissingID = errors.New("missing required id")

	// ErrUnsupportedRangeUnit is returned for Range headers using a unit
	// other than bytes.
	ErrUnsupportedRangeUnit = errors.New("bytes ranges only")

	// ErrUnsatisfiableRange is returned when a Range header is outside the
	// blob's bounds or requests multiple ranges.
	ErrUnsatisfiableRange = errors.New("unsatisfiable range")
)

// LongVideoError rejects a video whose probed duration exceeds the
// configured maximum. No transcode is attempted and no bytes are produced.
type LongVideoError struct {
	MaxSeconds float64
}

func (e *LongVideoError) Error() string {
	return fmt.Sprintf("video too long: max duration is %g seconds", e.MaxSeconds)
}

// Transcode stages, used to attribute failures to the step that produced them.
const (
	StageProbe     = "probe"
	StageTranscode = "transcode"
	StagePoster    = "poster"
)

// TranscodeError wraps a failure from one stage of video preparation.
type TranscodeError struct {
	Stage string
	Err   error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}
