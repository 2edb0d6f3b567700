// Package assess aggregates per-frame records into a route
// assessment.
package assess

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/cruxview/cruxview/internal/models"
)

// ErrNoRecords is returned when there is no frame data to assess.
var ErrNoRecords = errors.New("assess: no valid frame records")

// Engine builds route assessments from parsed frame records.
type Engine struct {
	logger *slog.Logger
}

// New returns an assessment engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Assess aggregates records into a single assessment for a video of
// the given duration in seconds. Records are evaluated in timestamp
// order regardless of input order.
func (e *Engine) Assess(records []models.FrameRecord, duration float64) (*models.RouteAssessment, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	sorted := make([]models.FrameRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	difficulty, reasoning := e.assessDifficulty(sorted)
	techMean := meanTechnique(sorted)

	a := &models.RouteAssessment{
		RouteColor:      consensusColor(sorted),
		DifficultyScore: difficulty,
		Grade:           difficultyToGrade(difficulty),
		Reasoning:       reasoning,
		WallAngle:       predominantAngle(sorted),
		MoveCount:       estimateMoves(sorted, duration),
		TechniqueScore:  techMean,
		OverallScore:    int(techMean * 10),
		Segments:        buildSegments(sorted, duration),
		RoutePoints:     collectRoutePoints(sorted),
	}
	a.Insights = buildInsights(sorted, difficulty, techMean)
	a.Recommendations = buildRecommendations(sorted, techMean, a.WallAngle)

	e.logger.Info("route assessment complete",
		"color", a.RouteColor,
		"grade", a.Grade,
		"difficulty", fmt.Sprintf("%.1f", difficulty),
		"moves", a.MoveCount,
		"overall", a.OverallScore)
	return a, nil
}

// consensusColor votes across frames; "unknown" never participates.
// Ties resolve to the color seen first in frame order.
func consensusColor(records []models.FrameRecord) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		c := r.RouteColor
		if c == "" || c == "unknown" {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	if len(order) == 0 {
		return "unknown"
	}
	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// assessDifficulty runs the weighted product model: mean hold
// difficulty × angle modifier × mean size modifier, clamped to 1-10.
func (e *Engine) assessDifficulty(records []models.FrameRecord) (float64, []string) {
	var holdTypes, holdSizes []string
	for _, r := range records {
		holdTypes = append(holdTypes, r.HoldTypes...)
		holdSizes = append(holdSizes, r.HoldSizes...)
	}

	var reasoning []string

	base := 5.0
	if len(holdTypes) > 0 {
		sum := 0.0
		for _, t := range holdTypes {
			d, ok := holdDifficulty[t]
			if !ok {
				d = 5.0
			}
			sum += d
		}
		base = sum / float64(len(holdTypes))
		reasoning = append(reasoning, fmt.Sprintf("hold types: %v", uniqueStrings(holdTypes)))
	}

	angle := predominantAngle(records)
	am, ok := angleModifier[angle]
	if !ok {
		am = 1.0
	}
	if am != 1.0 {
		reasoning = append(reasoning, "wall angle: "+angle)
	}

	sm := 1.0
	if len(holdSizes) > 0 {
		sum := 0.0
		for _, s := range holdSizes {
			m, ok := sizeModifier[s]
			if !ok {
				m = 1.0
			}
			sum += m
		}
		sm = sum / float64(len(holdSizes))
		if sm > 1.0 {
			reasoning = append(reasoning, fmt.Sprintf("hold sizes: %v", uniqueStrings(holdSizes)))
		}
	}

	d := clamp(base*am*sm, 1.0, 10.0)
	if len(reasoning) == 0 {
		reasoning = append(reasoning, "visual assessment only")
	}
	return d, reasoning
}

func predominantAngle(records []models.FrameRecord) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if r.WallAngle == "" {
			continue
		}
		if counts[r.WallAngle] == 0 {
			order = append(order, r.WallAngle)
		}
		counts[r.WallAngle]++
	}
	if len(order) == 0 {
		return "vertical"
	}
	best := order[0]
	for _, a := range order[1:] {
		if counts[a] > counts[best] {
			best = a
		}
	}
	return best
}

// estimateMoves scales the average visible move count by a duration
// bucket, clamped to a plausible route length. Without any reported
// moves it falls back to a duration heuristic.
func estimateMoves(records []models.FrameRecord, duration float64) int {
	var sum, n float64
	for _, r := range records {
		if r.MoveCount > 0 {
			sum += float64(r.MoveCount)
			n++
		}
	}
	if n == 0 {
		return int(clamp(duration/3, 4, 12))
	}

	factor := longRouteMoveFactor
	for _, b := range moveMultipliers {
		if duration <= b.maxDuration {
			factor = b.factor
			break
		}
	}
	return int(clamp(math.Floor(sum/n*factor), moveCountFloor, moveCountCeil))
}

// buildSegments partitions [0, duration] at midpoints between
// consecutive frame timestamps. Records must already be sorted.
func buildSegments(records []models.FrameRecord, duration float64) []models.Segment {
	segments := make([]models.Segment, 0, len(records))
	for i, r := range records {
		start := 0.0
		if i > 0 {
			start = (records[i-1].Timestamp + r.Timestamp) / 2
		}
		end := duration
		if i < len(records)-1 {
			end = (r.Timestamp + records[i+1].Timestamp) / 2
		}

		score := r.TechniqueScore / 10
		seg := models.Segment{Start: start, End: end, Score: score}
		if score < issueThreshold {
			seg.Issues = []string{techniqueIssue}
		}
		segments = append(segments, seg)
	}
	return segments
}

func collectRoutePoints(records []models.FrameRecord) []models.RoutePoint {
	var points []models.RoutePoint
	for _, r := range records {
		for _, c := range r.Coordinates {
			points = append(points, models.RoutePoint{
				X:          c.X,
				Y:          c.Y,
				Timestamp:  r.Timestamp,
				Confidence: c.Confidence,
				Source:     "ai_detected",
			})
		}
	}
	return points
}

func buildInsights(records []models.FrameRecord, difficulty, techMean float64) []string {
	var insights []string

	switch {
	case techMean >= 8:
		insights = append(insights, "Excellent climbing technique with consistent execution")
	case techMean >= 7:
		insights = append(insights, "Solid fundamental technique with room to improve")
	default:
		insights = append(insights, "Technique training recommended for better efficiency")
	}

	if techMean >= 7.5 && difficulty >= 7 {
		insights = append(insights, fmt.Sprintf("Strong performance on demanding terrain (difficulty %.1f/10)", difficulty))
	} else if techMean < 6.5 && difficulty <= 5 {
		insights = append(insights, "Focus on fundamentals even on moderate terrain")
	}

	holds := observedHoldSet(records)
	if holds["crimp"] {
		insights = append(insights, "Good finger placement visible on crimps")
	}
	if holds["sloper"] {
		insights = append(insights, "Body tension on slopers is the key improvement lever")
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func buildRecommendations(records []models.FrameRecord, techMean float64, wallAngle string) []string {
	var recs []string
	if techMean < 7 {
		recs = append(recs, "Work on fundamentals: body position and weight distribution")
	}

	holds := observedHoldSet(records)
	if holds["crimp"] {
		recs = append(recs, "Add fingerboard sessions to build crimp strength")
	}
	if holds["sloper"] {
		recs = append(recs, "Strengthen body tension for sloper holds")
	}
	if holds["pinch"] {
		recs = append(recs, "Train thumb opposition and pinch grip strength")
	}

	if wallAngle == "overhang" || wallAngle == "slight_overhang" ||
		wallAngle == "steep_overhang" || wallAngle == "roof" {
		recs = append(recs, "Focus on core strength for steep terrain")
	}

	recs = append(recs,
		"Practice reading the route before pulling on",
		"Work on fluid transitions between moves")

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func observedHoldSet(records []models.FrameRecord) map[string]bool {
	set := make(map[string]bool)
	for _, r := range records {
		for _, t := range r.HoldTypes {
			set[t] = true
		}
	}
	return set
}

func meanTechnique(records []models.FrameRecord) float64 {
	sum := 0.0
	for _, r := range records {
		sum += r.TechniqueScore
	}
	return sum / float64(len(records))
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
