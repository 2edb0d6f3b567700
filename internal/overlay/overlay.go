// Package overlay turns a route assessment into renderable geometric
// primitives. The synthesizer guarantees a non-empty, visually
// coherent overlay even when the assessment carries few or no real
// coordinate points.
package overlay

import (
	"log/slog"
	"math"

	"github.com/cruxview/cruxview/internal/models"
)

const (
	routeLineColor = "#00BFFF"

	scoreGreen = "#00FF00"
	scoreAmber = "#FFA500"
	scoreRed   = "#FF0000"

	// Synthetic route points are needed below this many real ones.
	minRealPoints = 3
	minSynthetic  = 5

	// Synthetic timestamps span [0, 0.9*duration] on a power curve
	// that front-loads route progress, matching how attempts start
	// fast and slow toward the crux.
	timeSpan  = 0.9
	timeCurve = 0.8
)

// Hold types cycled through for synthetic points between the fixed
// start and finish.
var syntheticHoldCycle = []string{"crimp", "jug", "pinch", "sloper"}

// Synthesizer builds overlays from assessments.
type Synthesizer struct {
	logger *slog.Logger
}

// New returns an overlay synthesizer.
func New(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{logger: logger}
}

// Synthesize renders the assessment into overlay elements for a video
// of the given dimensions and duration. The result always contains a
// route line of at least five points and at least one performance
// marker.
func (s *Synthesizer) Synthesize(a *models.RouteAssessment, duration float64, width, height int) models.Overlay {
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}

	points := a.RoutePoints
	if len(points) < minRealPoints {
		n := len(a.Segments)
		if n < minSynthetic {
			n = minSynthetic
		}
		s.logger.Debug("enhancing sparse route points",
			"real", len(points), "synthetic", n)
		points = syntheticRoute(n, duration, width, height)
	}

	segments := a.Segments
	if len(segments) == 0 {
		// Keep the overlay renderable even for degenerate
		// assessments.
		segments = []models.Segment{{Start: 0, End: duration, Score: a.TechniqueScore / 10}}
	}

	elements := make([]models.OverlayElement, 0, 1+len(segments)+len(points))

	elements = append(elements, models.OverlayElement{
		Type:   "ideal_route_line",
		Points: points,
		Style:  models.OverlayStyle{Color: routeLineColor, Thickness: 3, Opacity: 0.8},
	})

	for _, seg := range segments {
		el := models.OverlayElement{
			Type:      "performance_marker",
			TimeStart: seg.Start,
			TimeEnd:   seg.End,
			Score:     seg.Score,
			Style:     models.OverlayStyle{Color: scoreColor(seg.Score), Size: "medium"},
		}
		if len(seg.Issues) > 0 {
			el.Issue = seg.Issues[0]
		}
		elements = append(elements, el)
	}

	for i := range points {
		score := 0.8
		if i < len(segments) {
			score = segments[i].Score
		}
		p := points[i]
		elements = append(elements, models.OverlayElement{
			Type:  "hold_marker",
			Point: &p,
			Style: models.OverlayStyle{Color: scoreColor(score), Opacity: 0.9},
		})
	}

	return models.Overlay{
		HasOverlay:      true,
		Elements:        elements,
		VideoDimensions: models.Dimensions{Width: width, Height: height},
		TotalDuration:   duration,
	}
}

// syntheticRoute generates n plausible route points: timestamps on a
// power curve over [0, 0.9*duration], alternating lateral offsets
// around the wall center, and a monotonic climb from low start to
// high finish.
func syntheticRoute(n int, duration float64, width, height int) []models.RoutePoint {
	if n < 2 {
		n = 2
	}
	centerX := float64(width) / 2
	startY := float64(height) * 0.85
	finishY := float64(height) * 0.15

	points := make([]models.RoutePoint, 0, n)
	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n-1)
		t := timeSpan * duration * math.Pow(progress, timeCurve)

		// Zigzag keeps the line from looking like a plumb drop.
		offset := float64(width) * 0.08
		if i%2 == 1 {
			offset = -offset
		}
		x := centerX + offset*(1-progress*0.5)
		y := startY + (finishY-startY)*progress

		points = append(points, models.RoutePoint{
			X:          int(x),
			Y:          int(y),
			Timestamp:  t,
			HoldType:   syntheticHoldType(i, n),
			Confidence: 0.5,
			Source:     "enhanced",
		})
	}
	return points
}

func syntheticHoldType(index, total int) string {
	switch index {
	case 0:
		return "start"
	case total - 1:
		return "finish"
	default:
		return syntheticHoldCycle[(index-1)%len(syntheticHoldCycle)]
	}
}

func scoreColor(score float64) string {
	switch {
	case score >= 0.8:
		return scoreGreen
	case score >= 0.65:
		return scoreAmber
	default:
		return scoreRed
	}
}
