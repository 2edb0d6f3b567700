package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/cruxview/cruxview/internal/analyzer"
	"github.com/cruxview/cruxview/internal/cache"
	"github.com/cruxview/cruxview/internal/config"
	"github.com/cruxview/cruxview/internal/decoder"
	"github.com/cruxview/cruxview/internal/metrics"
	"github.com/cruxview/cruxview/internal/storage"
	"github.com/cruxview/cruxview/internal/vision"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	configPath string
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "cruxview",
		Short: "Climbing attempt video analysis",
		Long: `Cruxview turns a climbing attempt video into a structured
performance assessment: sampled frames are described by a local
vision model, parsed into per-frame records, and aggregated into a
route difficulty estimate, technique segments, and a renderable
overlay.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cruxview %s (%s, %s)\n", version, commit, buildDate)
		},
	})

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newSimilarCmd())
	rootCmd.AddCommand(newInitDBCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		analysisID string
		outputPath string
		fromStore  bool
		finalize   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <video path or object key>",
		Short: "Analyze one climbing attempt video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			svc, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if analysisID == "" {
				analysisID = uuid.NewString()
			}

			videoPath := args[0]
			if fromStore {
				videoPath, err = fetchFromStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				defer os.Remove(videoPath)
			}

			res, err := svc.Analyze(ctx, analysisID, videoPath)
			if res != nil {
				if werr := writeResult(res, outputPath); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}

			if finalize {
				if err := svc.Finalize(ctx, res); err != nil {
					logger.Warn("failed to finalize result", "error", err)
				}
			}
			archiveResult(ctx, cfg, logger, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisID, "id", "", "Analysis id (defaults to a new UUID)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write result JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "Treat the argument as an object-store key and download it first")
	cmd.Flags().BoolVar(&finalize, "finalize", false, "Cache the result under the long finalized TTL")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and analyze videos as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			svc, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if cfg.MetricsAddr != "" {
				srv := metrics.StartServer(cfg.MetricsAddr, logger)
				defer srv.Shutdown(context.Background())
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			dir := args[0]
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			logger.Info("watching for videos", "dir", dir)

			for {
				select {
				case <-ctx.Done():
					logger.Info("shutting down")
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Has(fsnotify.Create) {
						continue
					}
					if !videoExtensions[strings.ToLower(filepath.Ext(event.Name))] {
						continue
					}
					handleDroppedVideo(ctx, cfg, logger, svc, event.Name)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error("watcher error", "error", err)
				}
			}
		},
	}
	return cmd
}

// handleDroppedVideo waits for the file to settle, then analyzes it
// and writes a sidecar JSON next to the video. Failures are logged,
// never fatal to the watch loop.
func handleDroppedVideo(ctx context.Context, cfg *config.Config, logger *slog.Logger, svc *analyzer.Service, path string) {
	if err := waitForStableSize(ctx, path); err != nil {
		logger.Warn("skipping video", "path", path, "error", err)
		return
	}

	analysisID := uuid.NewString()
	logger.Info("analyzing dropped video", "path", path, "analysis_id", analysisID)

	res, err := svc.Analyze(ctx, analysisID, path)
	if err != nil {
		logger.Error("analysis failed", "path", path, "error", err)
	}
	if res == nil {
		return
	}

	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".analysis.json"
	if err := writeResult(res, sidecar); err != nil {
		logger.Error("failed to write result", "path", sidecar, "error", err)
		return
	}
	archiveResult(ctx, cfg, logger, res)
}

// waitForStableSize polls until two consecutive stats agree, so we
// don't decode a file that is still being copied in.
func waitForStableSize(ctx context.Context, path string) error {
	var last int64 = -1
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()
	}
	return fmt.Errorf("file %s never stopped growing", path)
}

func newSimilarCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <query text>",
		Short: "Find archived attempts similar to a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("similar requires CRUXVIEW_DATABASE_URL")
			}

			archive, err := storage.NewArchive(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer archive.Close()

			attempts, err := archive.SimilarAttempts(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, a := range attempts {
				fmt.Printf("%s  %-8s grade=%-4s score=%d  similarity=%.3f\n",
					a.AnalysisID, a.RouteColor, a.Grade, a.OverallScore, a.Similarity)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum results")
	return cmd
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the assessment archive schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("init-db requires CRUXVIEW_DATABASE_URL")
			}
			return storage.InitSchema(cmd.Context(), cfg.DatabaseURL)
		},
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: "15:04:05",
		}),
	)
}

func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*analyzer.Service, error) {
	client, err := vision.NewOllamaClient(ctx, vision.OllamaOptions{
		BaseURL: cfg.OllamaBaseURL,
		Port:    cfg.OllamaPort,
		Model:   cfg.VisionModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize vision client: %w", err)
	}

	results := storage.NewCacheKV(cache.New(256))
	return analyzer.New(cfg, decoder.DefaultRegistry(logger), client, results, logger), nil
}

func fetchFromStore(ctx context.Context, cfg *config.Config, objectKey string) (string, error) {
	if cfg.Minio.Endpoint == "" {
		return "", fmt.Errorf("--from-store requires CRUXVIEW_MINIO_ENDPOINT")
	}
	source, err := storage.NewVideoSource(storage.VideoSourceConfig{
		Endpoint:      cfg.Minio.Endpoint,
		AccessKey:     cfg.Minio.AccessKey,
		SecretKey:     cfg.Minio.SecretKey,
		UseSSL:        cfg.Minio.UseSSL,
		VideoBucket:   cfg.Minio.VideoBucket,
		ResultsBucket: cfg.Minio.ResultsBucket,
	})
	if err != nil {
		return "", err
	}

	dest := filepath.Join(os.TempDir(), "cruxview-"+filepath.Base(objectKey))
	if err := source.Fetch(ctx, objectKey, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// archiveResult persists a successful assessment to Postgres when an
// archive is configured. Best effort.
func archiveResult(ctx context.Context, cfg *config.Config, logger *slog.Logger, res *analyzer.Result) {
	if cfg.DatabaseURL == "" || res.Failed || res.RouteAnalysis == nil {
		return
	}
	archive, err := storage.NewArchive(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("archive unavailable", "error", err)
		return
	}
	defer archive.Close()

	if err := archive.SaveAssessment(ctx, res.AnalysisID, res.RouteAnalysis); err != nil {
		logger.Warn("failed to archive assessment", "analysis_id", res.AnalysisID, "error", err)
	}
}

func writeResult(res *analyzer.Result, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
