package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// WorkspaceConfig controls where per-session working directories live
// and how old they may grow before the sweep removes them.
type WorkspaceConfig struct {
	Root          string `yaml:"root"`
	MaxAgeSeconds int    `yaml:"maxAgeSeconds"`
}

// SessionsConfig controls the lifetime of session status records. The
// TTL is re-armed on every write, so it bounds idle time rather than
// total session time.
type SessionsConfig struct {
	TTLSeconds int    `yaml:"ttlSeconds"`
	QueueKey   string `yaml:"queueKey"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	DequeueTimeoutMs  int `yaml:"dequeueTimeoutMs"`
}

// ToolsConfig names the external binaries and their per-stage timeouts.
type ToolsConfig struct {
	YtdlpBin   string `yaml:"ytdlpBin"`
	FFmpegBin  string `yaml:"ffmpegBin"`
	FFprobeBin string `yaml:"ffprobeBin"`

	ProbeTimeoutSeconds     int `yaml:"probeTimeoutSeconds"`
	DownloadTimeoutSeconds  int `yaml:"downloadTimeoutSeconds"`
	AudioTimeoutSeconds     int `yaml:"audioTimeoutSeconds"`
	ThumbnailTimeoutSeconds int `yaml:"thumbnailTimeoutSeconds"`
	TranscodeTimeoutSeconds int `yaml:"transcodeTimeoutSeconds"`

	// Pre-flight thresholds; zero disables the corresponding check.
	MinFreeDiskBytes   uint64 `yaml:"minFreeDiskBytes"`
	MinFreeMemoryBytes uint64 `yaml:"minFreeMemoryBytes"`
}

type StreamingConfig struct {
	SegmentSeconds int `yaml:"segmentSeconds"`
}

type RetentionConfig struct {
	Enabled                bool `yaml:"enabled"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Worker    WorkerConfig    `yaml:"worker"`
	Tools     ToolsConfig     `yaml:"tools"`
	Streaming StreamingConfig `yaml:"streaming"`
	Retention RetentionConfig `yaml:"retention"`
}

// Default returns a configuration with all defaults applied. Load
// starts from this and overlays whatever the file provides.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Redis:     RedisConfig{URL: "redis://localhost:6379/0"},
		Workspace: WorkspaceConfig{Root: "var/sessions", MaxAgeSeconds: 3600},
		Sessions:  SessionsConfig{TTLSeconds: 7200, QueueKey: "vodworks:jobs"},
		Worker:    WorkerConfig{MaxConcurrentJobs: 4, DequeueTimeoutMs: 2000},
		Tools: ToolsConfig{
			YtdlpBin:                "yt-dlp",
			FFmpegBin:               "ffmpeg",
			FFprobeBin:              "ffprobe",
			ProbeTimeoutSeconds:     60,
			DownloadTimeoutSeconds:  600,
			AudioTimeoutSeconds:     1800,
			ThumbnailTimeoutSeconds: 1800,
			TranscodeTimeoutSeconds: 3600,
		},
		Streaming: StreamingConfig{SegmentSeconds: 6},
		Retention: RetentionConfig{Enabled: true, CleanupIntervalMinutes: 60},
	}
}

func Load(path string) *Config {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg
		}
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	applyFallbacks(cfg)
	return cfg
}

func applyFallbacks(cfg *Config) {
	def := Default()
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = def.Redis.URL
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = def.Workspace.Root
	}
	if cfg.Workspace.MaxAgeSeconds <= 0 {
		cfg.Workspace.MaxAgeSeconds = def.Workspace.MaxAgeSeconds
	}
	if cfg.Sessions.TTLSeconds <= 0 {
		cfg.Sessions.TTLSeconds = def.Sessions.TTLSeconds
	}
	if cfg.Sessions.QueueKey == "" {
		cfg.Sessions.QueueKey = def.Sessions.QueueKey
	}
	if cfg.Worker.MaxConcurrentJobs <= 0 {
		cfg.Worker.MaxConcurrentJobs = def.Worker.MaxConcurrentJobs
	}
	if cfg.Worker.DequeueTimeoutMs <= 0 {
		cfg.Worker.DequeueTimeoutMs = def.Worker.DequeueTimeoutMs
	}
	if cfg.Tools.YtdlpBin == "" {
		cfg.Tools.YtdlpBin = def.Tools.YtdlpBin
	}
	if cfg.Tools.FFmpegBin == "" {
		cfg.Tools.FFmpegBin = def.Tools.FFmpegBin
	}
	if cfg.Tools.FFprobeBin == "" {
		cfg.Tools.FFprobeBin = def.Tools.FFprobeBin
	}
	if cfg.Tools.ProbeTimeoutSeconds <= 0 {
		cfg.Tools.ProbeTimeoutSeconds = def.Tools.ProbeTimeoutSeconds
	}
	if cfg.Tools.DownloadTimeoutSeconds <= 0 {
		cfg.Tools.DownloadTimeoutSeconds = def.Tools.DownloadTimeoutSeconds
	}
	if cfg.Tools.AudioTimeoutSeconds <= 0 {
		cfg.Tools.AudioTimeoutSeconds = def.Tools.AudioTimeoutSeconds
	}
	if cfg.Tools.ThumbnailTimeoutSeconds <= 0 {
		cfg.Tools.ThumbnailTimeoutSeconds = def.Tools.ThumbnailTimeoutSeconds
	}
	if cfg.Tools.TranscodeTimeoutSeconds <= 0 {
		cfg.Tools.TranscodeTimeoutSeconds = def.Tools.TranscodeTimeoutSeconds
	}
	if cfg.Streaming.SegmentSeconds <= 0 {
		cfg.Streaming.SegmentSeconds = def.Streaming.SegmentSeconds
	}
	if cfg.Retention.CleanupIntervalMinutes <= 0 {
		cfg.Retention.CleanupIntervalMinutes = def.Retention.CleanupIntervalMinutes
	}
}
