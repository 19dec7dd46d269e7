package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    int
	DataDir                 string
	MaxUploadSizeMB         int
	MaxVideoDurationSeconds float64
	FFmpegPath              string
	FFprobePath             string
}

func Load() (*Config, error) {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "7890"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	maxVideoDuration, err := strconv.ParseFloat(getEnv("MAX_VIDEO_DURATION_SECONDS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_VIDEO_DURATION_SECONDS: %w", err)
	}
	if maxVideoDuration <= 0 {
		return nil, fmt.Errorf("MAX_VIDEO_DURATION_SECONDS must be positive")
	}

	return &Config{
		Port:                    port,
		DataDir:                 getEnv("DATA_DIR", "/data"),
		MaxUploadSizeMB:         maxUploadSizeMB,
		MaxVideoDurationSeconds: maxVideoDuration,
		FFmpegPath:              getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:             getEnv("FFPROBE_PATH", "ffprobe"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
