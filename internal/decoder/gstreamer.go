//go:build gstreamer

package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/cruxview/cruxview/internal/models"
)

// gstBackend decodes through GStreamer. Built only with the
// "gstreamer" tag since it needs cgo and the system libraries.
type gstBackend struct {
	logger *slog.Logger
}

func platformBackends(logger *slog.Logger) []Backend {
	return []Backend{&gstBackend{logger: logger}}
}

func (b *gstBackend) Name() string { return "gstreamer" }

func (b *gstBackend) Available() bool {
	// Init is safe to call multiple times.
	gst.Init(nil)
	elem, err := gst.NewElement("decodebin")
	if err != nil {
		return false
	}
	elem.Unref()
	return true
}

// buildPipeline assembles filesrc -> decodebin -> videoconvert ->
// jpegenc -> appsink. decodebin exposes pads dynamically, so the
// converter is linked in the pad-added callback.
func (b *gstBackend) buildPipeline(path string) (*gst.Pipeline, *app.Sink, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}

	src, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}
	src.SetProperty("location", path)

	decode, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}

	enc, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}
	sink.SetProperty("sync", false)

	pipeline.AddMany(src, decode, convert, enc, sink.Element)
	if err := src.Link(decode); err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}
	if err := gst.ElementLinkMany(convert, enc, sink.Element); err != nil {
		return nil, nil, fmt.Errorf("gstreamer: %w", err)
	}

	decode.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		sinkPad := convert.GetStaticPad("sink")
		if sinkPad != nil && !sinkPad.IsLinked() {
			pad.Link(sinkPad)
		}
	})

	return pipeline, sink, nil
}

func (b *gstBackend) Probe(ctx context.Context, path string) (models.VideoMetadata, error) {
	pipeline, sink, err := b.buildPipeline(path)
	if err != nil {
		return models.VideoMetadata{}, err
	}
	defer pipeline.SetState(gst.StateNull)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return models.VideoMetadata{}, fmt.Errorf("gstreamer: %w", err)
	}

	sample, err := b.pullSample(ctx, sink)
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("gstreamer probe: %w", err)
	}

	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return models.VideoMetadata{}, fmt.Errorf("gstreamer probe: sample has no caps")
	}
	st := caps.GetStructureAt(0)
	width, _ := st.GetValue("width")
	height, _ := st.GetValue("height")

	ok, durationNanos := pipeline.QueryDuration(gst.FormatTime)
	if !ok || durationNanos <= 0 {
		return models.VideoMetadata{}, fmt.Errorf("gstreamer probe: duration query failed")
	}
	duration := time.Duration(durationNanos)

	// jpegenc caps carry the negotiated framerate.
	fps := 30.0
	if v, err := st.GetValue("framerate"); err == nil {
		if frac, ok := v.(*gst.FractionValue); ok && frac.Denom() != 0 {
			fps = float64(frac.Num()) / float64(frac.Denom())
		}
	}

	w, _ := width.(int)
	h, _ := height.(int)
	return models.VideoMetadata{
		Path:        path,
		Duration:    duration,
		FrameRate:   fps,
		TotalFrames: int(duration.Seconds() * fps),
		Width:       w,
		Height:      h,
		SizeBytes:   fileSize(path),
	}, nil
}

func (b *gstBackend) Extract(ctx context.Context, path string, indices []int) ([]models.RawFrame, error) {
	pipeline, sink, err := b.buildPipeline(path)
	if err != nil {
		return nil, err
	}
	defer pipeline.SetState(gst.StateNull)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("gstreamer: %w", err)
	}

	wanted := make(map[int]bool, len(indices))
	maxIdx := 0
	for _, i := range indices {
		wanted[i] = true
		if i > maxIdx {
			maxIdx = i
		}
	}

	var frames []models.RawFrame
	for n := 0; n <= maxIdx; n++ {
		sample, err := b.pullSample(ctx, sink)
		if err != nil {
			break
		}
		if !wanted[n] {
			continue
		}
		buf := sample.GetBuffer()
		if buf == nil {
			continue
		}
		data := buf.Map(gst.MapRead).Bytes()
		img, err := jpeg.Decode(bytes.NewReader(data))
		buf.Unmap()
		if err != nil {
			b.logger.Warn("gstreamer: skipping undecodable sample", "index", n, "error", err)
			continue
		}
		frames = append(frames, models.RawFrame{Index: n, Image: img})
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("gstreamer: no frames extracted")
	}
	return frames, nil
}

// pullSample polls the appsink, honoring context cancellation.
func (b *gstBackend) pullSample(ctx context.Context, sink *app.Sink) (*gst.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sink.IsEOS() {
			return nil, fmt.Errorf("end of stream")
		}
		sample := sink.TryPullSample(100 * time.Millisecond)
		if sample != nil {
			return sample, nil
		}
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
