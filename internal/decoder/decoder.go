// Package decoder validates climbing videos and extracts frames
// through a priority-ordered list of codec backends. Environment
// differences in codec availability are absorbed here: every
// operation walks the backend list and fails only when all backends
// have failed.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cruxview/cruxview/internal/models"
)

// Decode error taxonomy. All are fatal for the analysis; the caller
// may resubmit but the registry never retries internally.
var (
	ErrFileNotFound       = errors.New("decoder: video file not found")
	ErrFileTooSmall       = errors.New("decoder: video file below minimum size")
	ErrNoBackendAvailable = errors.New("decoder: no decode backend available")
	ErrMetadataExtraction = errors.New("decoder: metadata extraction failed")
	ErrFrameExtraction    = errors.New("decoder: frame extraction failed")
)

// minVideoBytes rejects near-empty files before any backend runs.
const minVideoBytes = 1024

// Backend is one way of probing and decoding a video.
type Backend interface {
	Name() string
	// Available reports whether the backend can run in this
	// environment. Called once per registry and cached.
	Available() bool
	Probe(ctx context.Context, path string) (models.VideoMetadata, error)
	Extract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error)
}

// Registry tries backends in priority order.
type Registry struct {
	backends []Backend
	logger   *slog.Logger

	probeOnce sync.Once
	usable    []Backend
}

// NewRegistry returns a registry over the given backends, highest
// priority first.
func NewRegistry(logger *slog.Logger, backends ...Backend) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{backends: backends, logger: logger}
}

// DefaultRegistry wires the standard backend chain: ffmpeg streaming
// first, ffmpeg file extraction second, plus any platform backends
// compiled in.
func DefaultRegistry(logger *slog.Logger) *Registry {
	backends := []Backend{
		newFFmpegPipeBackend(logger),
		newFFmpegFileBackend(logger),
	}
	backends = append(backends, platformBackends(logger)...)
	return NewRegistry(logger, backends...)
}

// available probes backend availability once and caches the result
// for the life of the registry.
func (r *Registry) available() []Backend {
	r.probeOnce.Do(func() {
		for _, b := range r.backends {
			if b.Available() {
				r.usable = append(r.usable, b)
			} else {
				r.logger.Debug("decode backend unavailable", "backend", b.Name())
			}
		}
	})
	return r.usable
}

// Validate checks that the file exists and is plausibly a video.
func (r *Registry) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.Size() < minVideoBytes {
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooSmall, path, info.Size())
	}
	return nil
}

// Metadata probes the video with each backend until one succeeds.
func (r *Registry) Metadata(ctx context.Context, path string) (models.VideoMetadata, error) {
	if err := r.Validate(path); err != nil {
		return models.VideoMetadata{}, err
	}
	backends := r.available()
	if len(backends) == 0 {
		return models.VideoMetadata{}, ErrNoBackendAvailable
	}

	var lastErr error
	for _, b := range backends {
		meta, err := b.Probe(ctx, path)
		if err != nil {
			r.logger.Warn("backend probe failed, trying next",
				"backend", b.Name(), "error", err)
			lastErr = err
			continue
		}
		if !meta.Valid() {
			lastErr = fmt.Errorf("backend %s returned invalid metadata", b.Name())
			continue
		}
		meta.Backend = b.Name()
		return meta, nil
	}
	return models.VideoMetadata{}, fmt.Errorf("%w: %v", ErrMetadataExtraction, lastErr)
}

// Extract decodes the frames at the given indices, walking the
// backend chain on failure or empty output.
func (r *Registry) Extract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error) {
	if err := r.Validate(path); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no indices requested", ErrFrameExtraction)
	}
	backends := r.available()
	if len(backends) == 0 {
		return nil, ErrNoBackendAvailable
	}

	var lastErr error
	for _, b := range backends {
		frames, err := b.Extract(ctx, path, indices)
		if err != nil {
			r.logger.Warn("backend extraction failed, trying next",
				"backend", b.Name(), "error", err)
			lastErr = err
			continue
		}
		if len(frames) == 0 {
			lastErr = fmt.Errorf("backend %s extracted no frames", b.Name())
			continue
		}
		return frames, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrFrameExtraction, lastErr)
}
