// Package config loads pipeline configuration from an optional YAML
// file overridden by CRUXVIEW_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// Vision model.
	OllamaBaseURL string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL"`
	OllamaPort    int    `yaml:"ollama_port" env:"OLLAMA_PORT"`
	VisionModel   string `yaml:"vision_model" env:"VISION_MODEL"`

	// Frame pipeline.
	MaxFrames       int `yaml:"max_frames" env:"MAX_FRAMES"`
	TargetWidth     int `yaml:"target_width" env:"TARGET_WIDTH"`
	TargetHeight    int `yaml:"target_height" env:"TARGET_HEIGHT"`
	JPEGQuality     int `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	MinEncodedBytes int `yaml:"min_encoded_bytes" env:"MIN_ENCODED_BYTES"`

	// Concurrency.
	Workers int `yaml:"workers" env:"WORKERS"`

	// Result and video caching.
	VideoCacheSize int           `yaml:"video_cache_size" env:"VIDEO_CACHE_SIZE"`
	VideoCacheTTL  time.Duration `yaml:"video_cache_ttl" env:"VIDEO_CACHE_TTL"`
	ResultTTL      time.Duration `yaml:"result_ttl" env:"RESULT_TTL"`
	FinalResultTTL time.Duration `yaml:"final_result_ttl" env:"FINAL_RESULT_TTL"`

	// Optional external services. Empty means disabled.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`

	Minio MinioConfig `yaml:"minio"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// MinioConfig configures the object-store video source. An empty
// endpoint disables it.
type MinioConfig struct {
	Endpoint      string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey     string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	UseSSL        bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	VideoBucket   string `yaml:"video_bucket" env:"MINIO_VIDEO_BUCKET"`
	ResultsBucket string `yaml:"results_bucket" env:"MINIO_RESULTS_BUCKET"`
}

// Default returns the configuration used when neither the YAML file
// nor the environment says otherwise.
func Default() *Config {
	return &Config{
		OllamaBaseURL:   "http://localhost",
		OllamaPort:      11434,
		VisionModel:     "llama3.2-vision:11b",
		MaxFrames:       6,
		TargetWidth:     640,
		TargetHeight:    480,
		JPEGQuality:     90,
		MinEncodedBytes: 1024,
		Workers:         2,
		VideoCacheSize:  50,
		VideoCacheTTL:   time.Hour,
		ResultTTL:       time.Hour,
		FinalResultTTL:  24 * time.Hour,
		Minio: MinioConfig{
			VideoBucket:   "climbing-videos",
			ResultsBucket: "climbing-results",
		},
		LogLevel: "info",
	}
}

// Load starts from Default, overlays the YAML file at path (skipped
// when path is empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "CRUXVIEW_"}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxFrames < 1 {
		return fmt.Errorf("config: max_frames must be positive, got %d", c.MaxFrames)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("config: jpeg_quality must be in 1-100, got %d", c.JPEGQuality)
	}
	if c.VideoCacheSize < 1 {
		return fmt.Errorf("config: video_cache_size must be positive, got %d", c.VideoCacheSize)
	}
	return nil
}
