package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cruxview/cruxview/internal/models"
)

// ffprobeOutput mirrors the JSON emitted by ffprobe -of json.
type ffprobeOutput struct {
	Streams []struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		RFrame    string `json:"r_frame_rate"`
		NbFrames  string `json:"nb_frames"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// probeWithFFprobe extracts metadata shared by both ffmpeg backends.
func probeWithFFprobe(ctx context.Context, path string) (models.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames,codec_name",
		"-show_entries", "format=duration,size",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return models.VideoMetadata{}, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return models.VideoMetadata{}, fmt.Errorf("ffprobe: no video stream in %s", path)
	}

	stream := probe.Streams[0]
	fps, err := parseFrameRate(stream.RFrame)
	if err != nil {
		return models.VideoMetadata{}, err
	}
	durationSec, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	size, _ := strconv.ParseInt(probe.Format.Size, 10, 64)

	totalFrames, _ := strconv.Atoi(stream.NbFrames)
	if totalFrames == 0 && durationSec > 0 {
		// Some containers omit nb_frames; derive it.
		totalFrames = int(durationSec * fps)
	}

	return models.VideoMetadata{
		Path:        path,
		Duration:    time.Duration(durationSec * float64(time.Second)),
		FrameRate:   fps,
		TotalFrames: totalFrames,
		Width:       stream.Width,
		Height:      stream.Height,
		SizeBytes:   size,
	}, nil
}

// parseFrameRate handles ffprobe's fractional notation ("30000/1001").
func parseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q: %w", s, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("frame rate %q: bad denominator", s)
	}
	return n / d, nil
}

// selectFilter builds the ffmpeg select expression for exact frame
// indices.
func selectFilter(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("eq(n\\,%d)", idx)
	}
	return "select='" + strings.Join(parts, "+") + "'"
}

// ffmpegPipeBackend streams selected frames over stdout as
// concatenated JPEGs. Preferred: no temp files, single process.
type ffmpegPipeBackend struct {
	logger *slog.Logger
}

func newFFmpegPipeBackend(logger *slog.Logger) *ffmpegPipeBackend {
	return &ffmpegPipeBackend{logger: logger}
}

func (b *ffmpegPipeBackend) Name() string { return "ffmpeg-pipe" }

func (b *ffmpegPipeBackend) Available() bool {
	_, errProbe := exec.LookPath("ffprobe")
	_, errMpeg := exec.LookPath("ffmpeg")
	return errProbe == nil && errMpeg == nil
}

func (b *ffmpegPipeBackend) Probe(ctx context.Context, path string) (models.VideoMetadata, error) {
	return probeWithFFprobe(ctx, path)
}

func (b *ffmpegPipeBackend) Extract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-vf", selectFilter(indices),
		"-vsync", "0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg pipe: %w: %s", err, stderr.String())
	}

	payloads := splitJPEGStream(out)
	if len(payloads) == 0 {
		return nil, fmt.Errorf("ffmpeg pipe: no frames in output stream")
	}

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	frames := make([]models.RawFrame, 0, len(payloads))
	for i, payload := range payloads {
		img, err := jpeg.Decode(bytes.NewReader(payload))
		if err != nil {
			b.logger.Warn("skipping undecodable frame", "position", i, "error", err)
			continue
		}
		idx := i
		if i < len(sorted) {
			idx = sorted[i]
		}
		frames = append(frames, models.RawFrame{Index: idx, Image: img})
	}
	return frames, nil
}

// splitJPEGStream cuts a concatenated MJPEG byte stream at SOI/EOI
// marker pairs.
func splitJPEGStream(data []byte) [][]byte {
	var (
		soi = []byte{0xFF, 0xD8}
		eoi = []byte{0xFF, 0xD9}
	)
	var payloads [][]byte
	for len(data) > 0 {
		start := bytes.Index(data, soi)
		if start < 0 {
			break
		}
		end := bytes.Index(data[start+2:], eoi)
		if end < 0 {
			break
		}
		stop := start + 2 + end + 2
		payloads = append(payloads, data[start:stop])
		data = data[stop:]
	}
	return payloads
}

// ffmpegFileBackend extracts selected frames into a temp directory
// and reads them back. Slower, but tolerates mjpeg pipe quirks on
// containers where streaming misbehaves.
type ffmpegFileBackend struct {
	logger *slog.Logger
}

func newFFmpegFileBackend(logger *slog.Logger) *ffmpegFileBackend {
	return &ffmpegFileBackend{logger: logger}
}

func (b *ffmpegFileBackend) Name() string { return "ffmpeg-file" }

func (b *ffmpegFileBackend) Available() bool {
	_, errProbe := exec.LookPath("ffprobe")
	_, errMpeg := exec.LookPath("ffmpeg")
	return errProbe == nil && errMpeg == nil
}

func (b *ffmpegFileBackend) Probe(ctx context.Context, path string) (models.VideoMetadata, error) {
	return probeWithFFprobe(ctx, path)
}

func (b *ffmpegFileBackend) Extract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error) {
	dir, err := os.MkdirTemp("", "cruxview-frames-")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg file: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-vf", selectFilter(indices),
		"-vsync", "0",
		filepath.Join(dir, "frame_%04d.jpg"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg file: %w: %s", err, string(out))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg file: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	frames := make([]models.RawFrame, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			b.logger.Warn("skipping unreadable frame file", "file", name, "error", err)
			continue
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			b.logger.Warn("skipping undecodable frame file", "file", name, "error", err)
			continue
		}
		idx := i
		if i < len(sorted) {
			idx = sorted[i]
		}
		frames = append(frames, models.RawFrame{Index: idx, Image: img})
	}
	return frames, nil
}
