// Package analyzer runs the full video analysis pipeline: decode,
// sample, encode, query the vision model per frame, parse, assess,
// and synthesize the overlay. One Service handles many analyses
// concurrently, bounded by a worker semaphore.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cruxview/cruxview/internal/assess"
	"github.com/cruxview/cruxview/internal/cache"
	"github.com/cruxview/cruxview/internal/config"
	"github.com/cruxview/cruxview/internal/decoder"
	"github.com/cruxview/cruxview/internal/encoder"
	"github.com/cruxview/cruxview/internal/metrics"
	"github.com/cruxview/cruxview/internal/models"
	"github.com/cruxview/cruxview/internal/overlay"
	"github.com/cruxview/cruxview/internal/parser"
	"github.com/cruxview/cruxview/internal/sampler"
	"github.com/cruxview/cruxview/internal/storage"
	"github.com/cruxview/cruxview/internal/vision"
)

// ErrAllFramesFailed means every sampled frame was dropped, either at
// encode time or by the vision model, so there is nothing to assess.
var ErrAllFramesFailed = errors.New("analyzer: no frames produced a usable vision response")

// ErrVideoNotStored is returned by AnalyzeStored when the analysis id
// has no cached video bytes (expired or never stored).
var ErrVideoNotStored = errors.New("analyzer: no video bytes stored for analysis id")

const (
	confidenceHigh      = 0.8
	confidenceLow       = 0.6
	confidenceThreshold = 3 // parsed frames needed for high confidence
)

// Result is the JSON-serializable outcome of one analysis. Failed
// results carry Error and no route analysis; callers can tell
// "analysis unavailable" apart from "completed with low confidence"
// (the latter is signaled through AIConfidence).
type Result struct {
	AnalysisID        string                  `json:"analysis_id"`
	RouteAnalysis     *models.RouteAssessment `json:"route_analysis,omitempty"`
	OverlayData       *models.Overlay         `json:"overlay_data,omitempty"`
	PerformanceScore  int                     `json:"performance_score"`
	Recommendations   []string                `json:"recommendations,omitempty"`
	AIConfidence      float64                 `json:"ai_confidence"`
	AnalysisTimestamp time.Time               `json:"analysis_timestamp"`
	Failed            bool                    `json:"failed,omitempty"`
	Error             string                  `json:"error,omitempty"`
}

// Service wires the pipeline stages together.
type Service struct {
	cfg     *config.Config
	decoder *decoder.Registry
	sampler *sampler.Sampler
	encoder *encoder.Encoder
	vision  vision.Client
	parser  *parser.Parser
	engine  *assess.Engine
	overlay *overlay.Synthesizer
	results storage.KV
	videos  *cache.Cache
	sem     chan struct{}
	logger  *slog.Logger
}

// New builds a Service from the configuration. The decoder registry,
// vision client, and result store are injected so tests and the CLI
// can swap implementations.
func New(cfg *config.Config, dec *decoder.Registry, vc vision.Client, results storage.KV, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		decoder: dec,
		sampler: sampler.New(cfg.MaxFrames, logger),
		encoder: encoder.New(encoder.Options{
			TargetWidth:  cfg.TargetWidth,
			TargetHeight: cfg.TargetHeight,
			Quality:      cfg.JPEGQuality,
			MinBytes:     cfg.MinEncodedBytes,
		}, logger),
		vision:  vc,
		parser:  parser.New(logger),
		engine:  assess.New(logger),
		overlay: overlay.New(logger),
		results: results,
		videos:  cache.New(cfg.VideoCacheSize),
		sem:     make(chan struct{}, cfg.Workers),
		logger:  logger,
	}
}

// StoreVideo caches raw video bytes under the analysis id so a later
// AnalyzeStored call can run without re-reading the source.
func (s *Service) StoreVideo(analysisID string, data []byte) {
	s.videos.Set(analysisID, data, s.cfg.VideoCacheTTL)
}

// AnalyzeStored materializes previously stored video bytes to a temp
// file and analyzes them.
func (s *Service) AnalyzeStored(ctx context.Context, analysisID string) (*Result, error) {
	data, ok := s.videos.Get(analysisID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotStored, analysisID)
	}
	return s.AnalyzeData(ctx, analysisID, data)
}

// AnalyzeData writes the video bytes to a temp file and analyzes it.
func (s *Service) AnalyzeData(ctx context.Context, analysisID string, data []byte) (*Result, error) {
	f, err := os.CreateTemp("", "cruxview-video-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("analyzer: stage video: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("analyzer: stage video: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("analyzer: stage video: %w", err)
	}
	return s.Analyze(ctx, analysisID, f.Name())
}

// Analyze runs the pipeline over the video at path. A cached result
// for the same analysis id is returned without re-running. Fatal
// pipeline errors yield a tagged failure Result plus the error.
func (s *Service) Analyze(ctx context.Context, analysisID, path string) (*Result, error) {
	if cached, ok, err := s.Cached(ctx, analysisID); err == nil && ok {
		metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
		s.logger.Debug("returning cached analysis", "analysis_id", analysisID)
		return cached, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	res, err := s.run(ctx, analysisID, path)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("failure").Inc()
		s.logger.Error("analysis failed", "analysis_id", analysisID, "error", err)
		return &Result{
			AnalysisID:        analysisID,
			AnalysisTimestamp: time.Now().UTC(),
			Failed:            true,
			Error:             err.Error(),
		}, err
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	if err := s.results.SetJSON(ctx, storage.AnalysisKey(analysisID), res, s.cfg.ResultTTL); err != nil {
		s.logger.Warn("failed to cache analysis result", "analysis_id", analysisID, "error", err)
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, analysisID, path string) (*Result, error) {
	start := time.Now()
	s.logger.Info("starting analysis", "analysis_id", analysisID, "path", path)

	if err := s.decoder.Validate(path); err != nil {
		return nil, err
	}

	meta, err := s.timedMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("video metadata",
		"analysis_id", analysisID,
		"duration", meta.Duration,
		"fps", meta.FrameRate,
		"frames", meta.TotalFrames,
		"backend", meta.Backend)

	indices := s.sampler.Indices(meta)

	raws, err := s.timedExtract(ctx, path, indices)
	if err != nil {
		return nil, err
	}

	records, err := s.queryFrames(ctx, raws, meta.FrameRate)
	if err != nil {
		return nil, err
	}

	duration := meta.Duration.Seconds()

	assessStart := time.Now()
	assessment, err := s.engine.Assess(records, duration)
	if err != nil {
		return nil, err
	}
	ov := s.overlay.Synthesize(assessment, duration, meta.Width, meta.Height)
	metrics.StageDuration.WithLabelValues("assess").Observe(time.Since(assessStart).Seconds())

	confidence := confidenceLow
	if len(records) >= confidenceThreshold {
		confidence = confidenceHigh
	}

	s.logger.Info("analysis complete",
		"analysis_id", analysisID,
		"frames_parsed", len(records),
		"grade", assessment.Grade,
		"score", assessment.OverallScore,
		"elapsed", time.Since(start))

	return &Result{
		AnalysisID:        analysisID,
		RouteAnalysis:     assessment,
		OverlayData:       &ov,
		PerformanceScore:  assessment.OverallScore,
		Recommendations:   assessment.Recommendations,
		AIConfidence:      confidence,
		AnalysisTimestamp: time.Now().UTC(),
	}, nil
}

// queryFrames encodes each raw frame and sends it to the vision
// model, one at a time in frame order. Frames that fail to encode or
// that the model errors on are skipped; zero survivors is fatal.
func (s *Service) queryFrames(ctx context.Context, raws []models.RawFrame, fps float64) ([]models.FrameRecord, error) {
	queryStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("vision").Observe(time.Since(queryStart).Seconds())
	}()

	records := make([]models.FrameRecord, 0, len(raws))
	for _, raw := range raws {
		frame, err := s.encoder.Encode(raw, fps)
		if err != nil {
			s.logger.Warn("skipping frame: encode failed", "frame", raw.Index, "error", err)
			continue
		}

		metrics.FramesAnalyzedTotal.Inc()
		text, err := s.vision.Query(ctx, frame.Data, vision.FramePrompt)
		if err != nil {
			metrics.VisionFailuresTotal.Inc()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping frame: vision query failed", "frame", raw.Index, "error", err)
			continue
		}

		records = append(records, s.parser.Parse(text, frame.Timestamp))
	}

	if len(records) == 0 {
		return nil, ErrAllFramesFailed
	}
	return records, nil
}

func (s *Service) timedMetadata(ctx context.Context, path string) (models.VideoMetadata, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())
	}()
	return s.decoder.Metadata(ctx, path)
}

func (s *Service) timedExtract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	}()
	return s.decoder.Extract(ctx, path, indices)
}

// Cached fetches a previously computed result without running the
// pipeline.
func (s *Service) Cached(ctx context.Context, analysisID string) (*Result, bool, error) {
	var res Result
	ok, err := s.results.GetJSON(ctx, storage.AnalysisKey(analysisID), &res)
	if err != nil || !ok {
		return nil, false, err
	}
	return &res, true, nil
}

// Finalize re-stores a finished result under the long finalized TTL.
func (s *Service) Finalize(ctx context.Context, res *Result) error {
	return s.results.SetJSON(ctx, storage.AnalysisKey(res.AnalysisID), res, s.cfg.FinalResultTTL)
}
