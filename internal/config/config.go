package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the server.
type Config struct {
	ServerAddr  string
	LiveDir     string
	ChunkDir    string
	StreamsFile string

	DetectorURL     string
	DetectorTimeout time.Duration
	FrameInterval   float64

	ChunkSeconds        int
	ChunkOverlapSeconds int
	ExtractTimeout      time.Duration

	MaxStreams       int
	RestartMax       int
	RestartDelay     time.Duration
	StartVerifyDelay time.Duration
	StopGrace        time.Duration

	HealthInterval     time.Duration
	FreshnessThreshold time.Duration

	Workers      int
	MaxQueueSize int
	MaxAttempts  int
	RetryBackoff time.Duration
	HistorySize  int
	ProcessDelay time.Duration

	RetentionWindow time.Duration
	SweepInterval   time.Duration

	SegmentSeconds int
	PlaylistWindow int

	DatabaseURL string
}

// Load reads environment variables and returns normalized runtime config.
func Load() Config {
	return Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		LiveDir:     getEnv("LIVE_DIR", "./live"),
		ChunkDir:    getEnv("CHUNK_DIR", "./chunks"),
		StreamsFile: getEnv("STREAMS_FILE", "./data/streams.json"),

		DetectorURL:     strings.TrimSpace(os.Getenv("DETECTOR_URL")),
		DetectorTimeout: getEnvDuration("DETECTOR_TIMEOUT", 90*time.Second),
		FrameInterval:   getEnvFloat("FRAME_INTERVAL", 1.0),

		ChunkSeconds:        getEnvInt("CHUNK_SECONDS", 60),
		ChunkOverlapSeconds: getEnvInt("CHUNK_OVERLAP_SECONDS", 5),
		ExtractTimeout:      getEnvDuration("EXTRACT_TIMEOUT", 3*time.Minute),

		MaxStreams:       getEnvInt("MAX_STREAMS", 8),
		RestartMax:       getEnvInt("RESTART_MAX", 5),
		RestartDelay:     getEnvDuration("RESTART_DELAY", 5*time.Second),
		StartVerifyDelay: getEnvDuration("START_VERIFY_DELAY", 2*time.Second),
		StopGrace:        getEnvDuration("STOP_GRACE", 5*time.Second),

		HealthInterval:     getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
		FreshnessThreshold: getEnvDuration("FRESHNESS_THRESHOLD", 30*time.Second),

		Workers:      getEnvInt("QUEUE_WORKERS", 2),
		MaxQueueSize: getEnvInt("MAX_QUEUE_SIZE", 32),
		MaxAttempts:  getEnvInt("MAX_JOB_ATTEMPTS", 3),
		RetryBackoff: getEnvDuration("RETRY_BACKOFF", 10*time.Second),
		HistorySize:  getEnvInt("JOB_HISTORY_SIZE", 100),
		ProcessDelay: getEnvDuration("PROCESS_DELAY", 0),

		RetentionWindow: getEnvDuration("RETENTION_WINDOW", 24*time.Hour),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),

		SegmentSeconds: getEnvInt("HLS_SEGMENT_SECONDS", 4),
		PlaylistWindow: getEnvInt("HLS_PLAYLIST_WINDOW", 6),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
}

// ChunkStep is the scheduler period and offset advance in seconds.
func (c Config) ChunkStep() int {
	step := c.ChunkSeconds - c.ChunkOverlapSeconds
	if step <= 0 {
		return c.ChunkSeconds
	}
	return step
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	_, err := fmt.Sscanf(value, "%d", &out)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out float64
	_, err := fmt.Sscanf(value, "%g", &out)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := time.ParseDuration(value)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}
