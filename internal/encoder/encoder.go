// Package encoder resizes decoded frames and serializes them to JPEG
// for transmission to the vision service.
package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"golang.org/x/image/draw"

	"github.com/cruxview/cruxview/internal/models"
)

// ErrPayloadTooSmall marks an encoded frame below the plausibility
// floor, a symptom of decode corruption.
var ErrPayloadTooSmall = errors.New("encoder: encoded payload below minimum size")

// Encoder converts raw frames into sampled frames.
type Encoder struct {
	targetWidth  int
	targetHeight int
	quality      int
	minBytes     int
	logger       *slog.Logger
}

// Options configures an Encoder.
type Options struct {
	TargetWidth  int // default 640
	TargetHeight int // default 480
	Quality      int // JPEG quality, default 90
	MinBytes     int // reject payloads smaller than this, default 1024
}

// New returns an encoder with defaults applied for zero options.
func New(opts Options, logger *slog.Logger) *Encoder {
	if opts.TargetWidth <= 0 {
		opts.TargetWidth = 640
	}
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 480
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	if opts.MinBytes <= 0 {
		opts.MinBytes = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		targetWidth:  opts.TargetWidth,
		targetHeight: opts.TargetHeight,
		quality:      opts.Quality,
		minBytes:     opts.MinBytes,
		logger:       logger,
	}
}

// Encode resizes the frame to fit within the target dimensions
// without stretching and serializes it as JPEG. Implausibly small
// payloads are rejected.
func (e *Encoder) Encode(frame models.RawFrame, fps float64) (*models.SampledFrame, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("encoder: frame %d has no image data", frame.Index)
	}
	start := time.Now()

	resized := e.resize(frame.Image)
	bounds := resized.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encoder: frame %d: %w", frame.Index, err)
	}
	if buf.Len() < e.minBytes {
		e.logger.Warn("rejecting suspiciously small frame",
			"index", frame.Index, "bytes", buf.Len(), "min", e.minBytes)
		return nil, fmt.Errorf("%w: frame %d is %d bytes", ErrPayloadTooSmall, frame.Index, buf.Len())
	}

	timestamp := 0.0
	if fps > 0 {
		timestamp = float64(frame.Index) / fps
	}
	return &models.SampledFrame{
		Index:      frame.Index,
		Timestamp:  timestamp,
		Data:       buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		EncodeTime: time.Since(start),
	}, nil
}

// resize scales the image to fit within the target box, preserving
// aspect ratio. Images already inside the box pass through untouched.
func (e *Encoder) resize(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= e.targetWidth && h <= e.targetHeight {
		return src
	}

	scaleW := float64(e.targetWidth) / float64(w)
	scaleH := float64(e.targetHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
