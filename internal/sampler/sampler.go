// Package sampler selects which frames of an attempt get sent to the
// vision model.
package sampler

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/cruxview/cruxview/internal/models"
)

// Percentages of the clip sampled for videos longer than the short
// threshold. Biased toward the start and finish where attempts are
// won or lost.
var longVideoPercents = []float64{5, 25, 45, 65, 85, 95}

const shortVideoCutoff = 10 * time.Second

// Sampler chooses frame indices from probed metadata.
type Sampler struct {
	maxFrames int
	logger    *slog.Logger
}

// New returns a sampler emitting at most maxFrames indices per video.
// The floor is two, since a multi-frame video always yields at least
// the first and last picked index.
func New(maxFrames int, logger *slog.Logger) *Sampler {
	if maxFrames < 2 {
		maxFrames = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{maxFrames: maxFrames, logger: logger}
}

// Indices returns the sorted, deduplicated frame indices to analyze.
// Short clips are sampled at a fixed two second stride; longer clips
// at fixed percentages of their length. The result always contains at
// least two indices when the video has more than one frame.
func (s *Sampler) Indices(meta models.VideoMetadata) []int {
	total := meta.TotalFrames
	if total <= 0 {
		return nil
	}
	if total == 1 {
		return []int{0}
	}

	var picked []int
	if meta.Duration <= shortVideoCutoff {
		// Ceil keeps the stride at two full seconds even for
		// fractional frame rates.
		step := int(math.Ceil(meta.FrameRate * 2))
		if step < 1 {
			step = 1
		}
		for i := 0; i < total; i += step {
			picked = append(picked, i)
		}
	} else {
		for _, p := range longVideoPercents {
			idx := int(float64(total) * p / 100)
			if idx >= total {
				idx = total - 1
			}
			picked = append(picked, idx)
		}
	}

	picked = dedupeSorted(picked)

	if len(picked) > s.maxFrames {
		picked = spread(picked, s.maxFrames)
	}

	if len(picked) < 2 {
		picked = []int{0, total - 1}
	}

	s.logger.Debug("sampled frame indices",
		"total_frames", total,
		"duration", meta.Duration,
		"indices", picked)
	return picked
}

// Timestamp converts a frame index to seconds into the clip.
func Timestamp(index int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(index) / fps
}

func dedupeSorted(in []int) []int {
	sort.Ints(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// spread keeps n indices evenly distributed across the picked set,
// always retaining the first and last.
func spread(in []int, n int) []int {
	if len(in) <= n {
		return in
	}
	if n < 2 {
		return []int{in[0], in[len(in)-1]}
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pos := i * (len(in) - 1) / (n - 1)
		out = append(out, in[pos])
	}
	return dedupeSorted(out)
}
