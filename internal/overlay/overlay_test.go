package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxview/cruxview/internal/models"
)

func assessment(points []models.RoutePoint, segments []models.Segment) *models.RouteAssessment {
	return &models.RouteAssessment{
		RouteColor:     "blue",
		TechniqueScore: 7,
		RoutePoints:    points,
		Segments:       segments,
	}
}

func findElements(o models.Overlay, typ string) []models.OverlayElement {
	var out []models.OverlayElement
	for _, el := range o.Elements {
		if el.Type == typ {
			out = append(out, el)
		}
	}
	return out
}

func TestSynthesizeWithNoRealPoints(t *testing.T) {
	s := New(nil)
	o := s.Synthesize(assessment(nil, nil), 12, 1280, 720)

	require.True(t, o.HasOverlay)
	require.NotEmpty(t, o.Elements)

	lines := findElements(o, "ideal_route_line")
	require.Len(t, lines, 1)
	assert.GreaterOrEqual(t, len(lines[0].Points), 5)
	assert.Equal(t, "#00BFFF", lines[0].Style.Color)

	markers := findElements(o, "performance_marker")
	assert.NotEmpty(t, markers)
}

func TestSyntheticPointsAreCoherent(t *testing.T) {
	s := New(nil)
	o := s.Synthesize(assessment(nil, make([]models.Segment, 6)), 20, 1280, 720)

	line := findElements(o, "ideal_route_line")[0]
	pts := line.Points
	require.Len(t, pts, 6, "one synthetic point per segment when segments exceed the minimum")

	assert.Equal(t, "start", pts[0].HoldType)
	assert.Equal(t, "finish", pts[len(pts)-1].HoldType)

	for i, p := range pts {
		assert.Equal(t, "enhanced", p.Source)
		assert.LessOrEqual(t, p.Timestamp, 0.9*20+1e-9)
		if i > 0 {
			assert.Greater(t, p.Timestamp, pts[i-1].Timestamp, "timestamps must increase")
			assert.Less(t, p.Y, pts[i-1].Y, "route must climb toward the finish")
		}
	}

	// Curved progression: the midpoint sits ahead of where a linear
	// spread would put it.
	mid := pts[len(pts)/2].Timestamp
	linearMid := 0.9 * 20 * float64(len(pts)/2) / float64(len(pts)-1)
	assert.Greater(t, mid, linearMid)
}

func TestRealPointsPreserved(t *testing.T) {
	s := New(nil)
	real := []models.RoutePoint{
		{X: 100, Y: 600, Timestamp: 1, Source: "ai_detected", Confidence: 0.8},
		{X: 150, Y: 500, Timestamp: 3, Source: "ai_detected", Confidence: 0.8},
		{X: 200, Y: 400, Timestamp: 5, Source: "ai_detected", Confidence: 0.8},
	}
	o := s.Synthesize(assessment(real, nil), 8, 1280, 720)

	line := findElements(o, "ideal_route_line")[0]
	require.Len(t, line.Points, 3)
	for _, p := range line.Points {
		assert.Equal(t, "ai_detected", p.Source)
	}
}

func TestTwoRealPointsTriggerEnhancement(t *testing.T) {
	s := New(nil)
	real := []models.RoutePoint{
		{X: 100, Y: 600, Timestamp: 1, Source: "ai_detected"},
		{X: 150, Y: 500, Timestamp: 3, Source: "ai_detected"},
	}
	o := s.Synthesize(assessment(real, nil), 8, 1280, 720)

	line := findElements(o, "ideal_route_line")[0]
	assert.GreaterOrEqual(t, len(line.Points), 5)
	assert.Equal(t, "enhanced", line.Points[0].Source)
}

func TestPerformanceMarkerColors(t *testing.T) {
	s := New(nil)
	segments := []models.Segment{
		{Start: 0, End: 4, Score: 0.9},
		{Start: 4, End: 8, Score: 0.7},
		{Start: 8, End: 12, Score: 0.4, Issues: []string{"technique_improvement_needed"}},
	}
	o := s.Synthesize(assessment(nil, segments), 12, 1280, 720)

	markers := findElements(o, "performance_marker")
	require.Len(t, markers, 3)
	assert.Equal(t, "#00FF00", markers[0].Style.Color)
	assert.Equal(t, "#FFA500", markers[1].Style.Color)
	assert.Equal(t, "#FF0000", markers[2].Style.Color)
	assert.Equal(t, "technique_improvement_needed", markers[2].Issue)
}

func TestHoldMarkersPerPoint(t *testing.T) {
	s := New(nil)
	o := s.Synthesize(assessment(nil, nil), 10, 1280, 720)

	line := findElements(o, "ideal_route_line")[0]
	holds := findElements(o, "hold_marker")
	assert.Len(t, holds, len(line.Points))
	for _, h := range holds {
		require.NotNil(t, h.Point)
		assert.NotEmpty(t, h.Style.Color)
	}
}

func TestDimensionsDefaulted(t *testing.T) {
	s := New(nil)
	o := s.Synthesize(assessment(nil, nil), 10, 0, 0)
	assert.Equal(t, 1280, o.VideoDimensions.Width)
	assert.Equal(t, 720, o.VideoDimensions.Height)
	assert.Equal(t, 10.0, o.TotalDuration)
}

func TestDimensionsEmittedAsNestedObject(t *testing.T) {
	s := New(nil)
	o := s.Synthesize(assessment(nil, nil), 10, 1920, 1080)

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded struct {
		VideoDimensions struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"video_dimensions"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1920, decoded.VideoDimensions.Width)
	assert.Equal(t, 1080, decoded.VideoDimensions.Height)
	assert.NotContains(t, string(data), `"video_width"`)
}
