// Package models defines the shared data structures for climbing
// attempt analysis.
package models

import (
	"image"
	"time"
)

// VideoMetadata describes a probed climbing video.
type VideoMetadata struct {
	Path        string        `json:"path"`
	Duration    time.Duration `json:"duration"`
	FrameRate   float64       `json:"frame_rate"`
	TotalFrames int           `json:"total_frames"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	SizeBytes   int64         `json:"size_bytes"`
	Backend     string        `json:"backend"`
}

// Valid reports whether the metadata describes a usable video.
func (m VideoMetadata) Valid() bool {
	return m.Duration > 0 &&
		m.FrameRate > 0 &&
		m.TotalFrames > 0 &&
		m.Width > 0 &&
		m.Height > 0 &&
		m.SizeBytes > 1024
}

// RawFrame is a decoded frame before sampling and encoding.
type RawFrame struct {
	Index int
	Image image.Image
}

// SampledFrame is a frame selected for analysis, encoded as JPEG.
type SampledFrame struct {
	Index      int           `json:"index"`
	Timestamp  float64       `json:"timestamp"`
	Data       []byte        `json:"-"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	EncodeTime time.Duration `json:"encode_time"`
}

// Coordinate is a hold position detected in a frame, in reference
// 1920x1080 space.
type Coordinate struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
}

// FrameRecord is the parsed per-frame assessment extracted from a
// vision model response.
type FrameRecord struct {
	Timestamp        float64      `json:"timestamp"`
	TechniqueScore   float64      `json:"technique_score"`
	MoveCount        int          `json:"move_count"`
	VisualDifficulty float64      `json:"visual_difficulty"`
	RouteColor       string       `json:"route_color"`
	WallAngle        string       `json:"wall_angle"`
	HoldTypes        []string     `json:"hold_types,omitempty"`
	HoldSizes        []string     `json:"hold_sizes,omitempty"`
	Insights         []string     `json:"insights,omitempty"`
	Coordinates      []Coordinate `json:"coordinates,omitempty"`
}

// RoutePoint is a single point of the route line in an assessment,
// either detected by the model or synthesized by the overlay layer.
type RoutePoint struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Timestamp  float64 `json:"timestamp"`
	HoldType   string  `json:"hold_type,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Segment is a scored time slice of the attempt.
type Segment struct {
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// RouteAssessment is the aggregated result over all analyzed frames.
type RouteAssessment struct {
	RouteColor      string       `json:"route_color"`
	DifficultyScore float64      `json:"difficulty_score"`
	Grade           string       `json:"grade"`
	Reasoning       []string     `json:"reasoning"`
	WallAngle       string       `json:"wall_angle"`
	MoveCount       int          `json:"move_count"`
	TechniqueScore  float64      `json:"technique_score"`
	OverallScore    int          `json:"overall_score"`
	Segments        []Segment    `json:"segments"`
	RoutePoints     []RoutePoint `json:"route_points"`
	Insights        []string     `json:"insights"`
	Recommendations []string     `json:"recommendations"`
}

// OverlayStyle carries the rendering hints attached to each element.
type OverlayStyle struct {
	Color     string  `json:"color"`
	Thickness int     `json:"thickness,omitempty"`
	Size      string  `json:"size,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`
}

// OverlayElement is one drawable element of the rendered overlay. The
// Type tag selects which fields are meaningful: a route line carries
// Points, a hold marker carries Point, a performance marker carries
// the time interval and score.
type OverlayElement struct {
	Type      string       `json:"type"`
	Points    []RoutePoint `json:"points,omitempty"`
	Point     *RoutePoint  `json:"point,omitempty"`
	TimeStart float64      `json:"time_start,omitempty"`
	TimeEnd   float64      `json:"time_end,omitempty"`
	Score     float64      `json:"score,omitempty"`
	Issue     string       `json:"issue,omitempty"`
	Style     OverlayStyle `json:"style"`
}

// Dimensions is the pixel size of the analyzed video.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Overlay is the full set of drawable elements for a video.
type Overlay struct {
	HasOverlay      bool             `json:"has_overlay"`
	Elements        []OverlayElement `json:"elements"`
	VideoDimensions Dimensions       `json:"video_dimensions"`
	TotalDuration   float64          `json:"total_duration"`
}
