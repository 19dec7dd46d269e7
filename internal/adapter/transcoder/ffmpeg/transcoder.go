// Package ffmpeg drives the ffmpeg and ffprobe binaries to probe, re-encode
// and extract poster frames from uploaded videos.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/infrastructure/logger"
	"github.com/bnema/blobstream/internal/port"
)

var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("invalid path")
)

// posterTimestampRatio places the poster frame at 25% of the probed duration.
const posterTimestampRatio = 0.25

// Transcoder shells out to ffmpeg/ffprobe. Binary paths are injected at
// startup and never change afterwards.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
}

func New(ffmpegPath, ffprobePath string) port.VideoTranscoder {
	return &Transcoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

func (t *Transcoder) Probe(ctx context.Context, path string) (*domain.ProbeResult, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*domain.ProbeResult, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}

	codec := ""
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			codec = stream.CodecName
			break
		}
	}
	if codec == "" {
		return nil, fmt.Errorf("no video stream found")
	}

	return &domain.ProbeResult{
		DurationSeconds: duration,
		Codec:           codec,
	}, nil
}

// Transcode prepares a video for storage: enforce the duration limit,
// re-encode unless the source already carries the target codec, then extract
// one poster frame. Artifacts created here (re-encoded output, poster file)
// are removed on failure; the caller owns the input file and its cleanup.
func (t *Transcoder) Transcode(ctx context.Context, file domain.PendingFile, maxDurationSeconds float64) (*domain.TranscodeOutcome, error) {
	if err := validatePath(file.Path); err != nil {
		return nil, err
	}

	probe, err := t.Probe(ctx, file.Path)
	if err != nil {
		return nil, &domain.TranscodeError{Stage: domain.StageProbe, Err: err}
	}

	if probe.DurationSeconds > maxDurationSeconds {
		return nil, &domain.LongVideoError{MaxSeconds: maxDurationSeconds}
	}

	outcome := &domain.TranscodeOutcome{VideoPath: file.Path}

	if probe.Codec != domain.TargetVideoCodec {
		outputPath := file.Path + "." + domain.TargetVideoContainer
		if err := t.reencode(ctx, file.Path, outputPath); err != nil {
			removeArtifact(outputPath)
			return nil, &domain.TranscodeError{Stage: domain.StageTranscode, Err: err}
		}
		outcome.VideoPath = outputPath
		outcome.Reencoded = true
	}

	posterPath := outcome.VideoPath + ".png"
	posterAt := probe.DurationSeconds * posterTimestampRatio
	if err := t.extractPoster(ctx, outcome.VideoPath, posterPath, posterAt); err != nil {
		removeArtifact(posterPath)
		if outcome.Reencoded {
			removeArtifact(outcome.VideoPath)
		}
		return nil, &domain.TranscodeError{Stage: domain.StagePoster, Err: err}
	}
	outcome.PosterPath = posterPath

	return outcome, nil
}

func (t *Transcoder) reencode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-f", domain.TargetVideoContainer,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", outputPath,
	}
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	return cmd.Run()
}

func (t *Transcoder) extractPoster(ctx context.Context, inputPath, outputPath string, atSeconds float64) error {
	args := []string{
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-f", "image2",
		"-y", outputPath,
	}
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	return cmd.Run()
}

// removeArtifact best-effort deletes a partially written output. A deletion
// failure is logged and swallowed so it never shadows the error that
// triggered the cleanup.
func removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn.Printf("failed to remove artifact %s: %v", path, err)
	}
}

var _ port.VideoTranscoder = (*Transcoder)(nil)
