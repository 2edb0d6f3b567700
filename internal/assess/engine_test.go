package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxview/cruxview/internal/models"
)

func rec(ts, technique float64, moves int, color string) models.FrameRecord {
	return models.FrameRecord{
		Timestamp:        ts,
		TechniqueScore:   technique,
		MoveCount:        moves,
		VisualDifficulty: 5,
		RouteColor:       color,
		WallAngle:        "vertical",
	}
}

func TestAssessEmptyRecords(t *testing.T) {
	e := New(nil)
	_, err := e.Assess(nil, 10)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestColorConsensus(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{
		rec(0, 7, 4, "white"),
		rec(2, 7, 4, "unknown"),
		rec(4, 7, 4, "blue"),
		rec(6, 7, 4, "white"),
	}
	a, err := e.Assess(records, 8)
	require.NoError(t, err)
	assert.Equal(t, "white", a.RouteColor)
}

func TestColorConsensusTieFirstSeen(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{
		rec(0, 7, 4, "red"), rec(1, 7, 4, "blue"), rec(2, 7, 4, "red"),
		rec(3, 7, 4, "blue"), rec(4, 7, 4, "red"), rec(5, 7, 4, "blue"),
	}
	a, err := e.Assess(records, 6)
	require.NoError(t, err)
	assert.Equal(t, "red", a.RouteColor, "3-vs-3 tie resolves to first-seen color")
}

func TestColorAllUnknown(t *testing.T) {
	e := New(nil)
	a, err := e.Assess([]models.FrameRecord{rec(0, 7, 4, "unknown")}, 5)
	require.NoError(t, err)
	assert.Equal(t, "unknown", a.RouteColor)
}

func TestDifficultyProductModel(t *testing.T) {
	e := New(nil)
	r := rec(0, 7, 4, "red")
	r.HoldTypes = []string{"crimp"} // 6.0
	r.HoldSizes = []string{"small"} // 1.4
	r.WallAngle = "overhang"        // 1.8

	a, err := e.Assess([]models.FrameRecord{r}, 5)
	require.NoError(t, err)
	// 6.0 * 1.8 * 1.4 = 15.12, clamped to 10.
	assert.Equal(t, 10.0, a.DifficultyScore)
	assert.Equal(t, "7a+", a.Grade)
}

func TestDifficultyIgnoresColor(t *testing.T) {
	e := New(nil)
	mk := func(color string) []models.FrameRecord {
		r := rec(0, 7, 4, color)
		r.HoldTypes = []string{"jug"}
		return []models.FrameRecord{r}
	}
	a1, err := e.Assess(mk("black"), 5)
	require.NoError(t, err)
	a2, err := e.Assess(mk("pink"), 5)
	require.NoError(t, err)
	assert.Equal(t, a1.DifficultyScore, a2.DifficultyScore)
	assert.Equal(t, a1.Grade, a2.Grade)
}

func TestDifficultyMonotonicInAngle(t *testing.T) {
	e := New(nil)
	angles := []string{"slab", "vertical", "slight_overhang", "overhang", "steep_overhang"}
	prev := 0.0
	for _, angle := range angles {
		r := rec(0, 7, 4, "red")
		r.HoldTypes = []string{"pinch"}
		r.WallAngle = angle
		a, err := e.Assess([]models.FrameRecord{r}, 5)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.DifficultyScore, prev,
			"steeper angle %q must not lower difficulty", angle)
		prev = a.DifficultyScore
	}
}

func TestDifficultyMonotonicInHoldSize(t *testing.T) {
	e := New(nil)
	sizes := []string{"large", "medium", "small", "tiny"}
	prev := 0.0
	for _, size := range sizes {
		r := rec(0, 7, 4, "red")
		r.HoldTypes = []string{"pinch"}
		r.HoldSizes = []string{size}
		a, err := e.Assess([]models.FrameRecord{r}, 5)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.DifficultyScore, prev)
		prev = a.DifficultyScore
	}
}

func TestGradeThresholds(t *testing.T) {
	assert.Equal(t, "7a+", difficultyToGrade(9.5))
	assert.Equal(t, "6c+", difficultyToGrade(8.0))
	assert.Equal(t, "6b", difficultyToGrade(7.3))
	assert.Equal(t, "6a", difficultyToGrade(6.0))
	assert.Equal(t, "5c", difficultyToGrade(5.9))
	assert.Equal(t, "5a", difficultyToGrade(4.2))
	assert.Equal(t, "4a", difficultyToGrade(2.0))
}

func TestMoveEstimationBuckets(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{rec(0, 7, 4, "red"), rec(5, 7, 6, "red")}

	short, err := e.Assess(records, 12)
	require.NoError(t, err)
	assert.Equal(t, 7, short.MoveCount, "avg 5 moves x1.5 for short routes")

	medium, err := e.Assess(records, 25)
	require.NoError(t, err)
	assert.Equal(t, 10, medium.MoveCount, "avg 5 moves x2.0 for medium routes")

	long, err := e.Assess(records, 60)
	require.NoError(t, err)
	assert.Equal(t, 12, long.MoveCount, "avg 5 moves x2.5 for long routes")
}

func TestMoveEstimationClamped(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{rec(0, 7, 12, "red")}
	a, err := e.Assess(records, 60)
	require.NoError(t, err)
	assert.Equal(t, 15, a.MoveCount)
}

func TestMoveEstimationDurationFallback(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{rec(0, 7, 0, "red")}
	a, err := e.Assess(records, 21)
	require.NoError(t, err)
	assert.Equal(t, 7, a.MoveCount, "no reported moves falls back to duration/3")

	a, err = e.Assess(records, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, a.MoveCount)
}

func TestSegmentsPartitionDuration(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{
		rec(1, 8, 4, "red"), rec(4, 6, 4, "red"), rec(9, 9, 4, "red"),
	}
	a, err := e.Assess(records, 12)
	require.NoError(t, err)
	require.Len(t, a.Segments, 3)

	assert.Equal(t, 0.0, a.Segments[0].Start)
	assert.Equal(t, 12.0, a.Segments[len(a.Segments)-1].End)
	for i := 1; i < len(a.Segments); i++ {
		assert.Equal(t, a.Segments[i-1].End, a.Segments[i].Start,
			"segments must have no gaps or overlaps")
	}
	assert.Equal(t, 2.5, a.Segments[0].End)
	assert.Equal(t, 6.5, a.Segments[1].End)
}

func TestSegmentIssueTag(t *testing.T) {
	e := New(nil)
	a, err := e.Assess([]models.FrameRecord{rec(2, 5, 4, "red")}, 4)
	require.NoError(t, err)
	require.Len(t, a.Segments, 1)
	assert.Equal(t, 0.5, a.Segments[0].Score)
	assert.Contains(t, a.Segments[0].Issues, "technique_improvement_needed")

	a, err = e.Assess([]models.FrameRecord{rec(2, 8, 4, "red")}, 4)
	require.NoError(t, err)
	assert.Empty(t, a.Segments[0].Issues)
}

func TestRecordsSortedByTimestamp(t *testing.T) {
	e := New(nil)
	records := []models.FrameRecord{
		rec(9, 9, 4, "red"), rec(1, 8, 4, "red"), rec(4, 6, 4, "red"),
	}
	a, err := e.Assess(records, 12)
	require.NoError(t, err)
	assert.Equal(t, 0.8, a.Segments[0].Score, "first segment belongs to the earliest frame")
}

func TestOverallScoreFromTechniqueMean(t *testing.T) {
	e := New(nil)
	scores := []float64{8, 7, 6, 8, 9}
	var records []models.FrameRecord
	for i, s := range scores {
		records = append(records, rec(float64(i*2), s, 4, "white"))
	}
	a, err := e.Assess(records, 12)
	require.NoError(t, err)
	assert.Equal(t, 76, a.OverallScore)
}

func TestOverallScoreTruncates(t *testing.T) {
	e := New(nil)
	// mean 7.666... scales to 76.66; the score drops the fraction
	// rather than rounding up.
	records := []models.FrameRecord{
		rec(0, 7, 4, "red"), rec(2, 8, 4, "red"), rec(4, 8, 4, "red"),
	}
	a, err := e.Assess(records, 6)
	require.NoError(t, err)
	assert.Equal(t, 76, a.OverallScore)
}

func TestRoutePointsTaggedAIDetected(t *testing.T) {
	e := New(nil)
	r := rec(3, 7, 4, "red")
	r.Coordinates = []models.Coordinate{{X: 100, Y: 200, Confidence: 0.8}}
	a, err := e.Assess([]models.FrameRecord{r}, 6)
	require.NoError(t, err)
	require.Len(t, a.RoutePoints, 1)
	assert.Equal(t, "ai_detected", a.RoutePoints[0].Source)
	assert.Equal(t, 3.0, a.RoutePoints[0].Timestamp)
}

func TestInsightsAndRecommendationsBounded(t *testing.T) {
	e := New(nil)
	r := rec(0, 5, 4, "red")
	r.HoldTypes = []string{"crimp", "sloper", "pinch"}
	r.WallAngle = "overhang"
	a, err := e.Assess([]models.FrameRecord{r}, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, a.Insights)
	assert.LessOrEqual(t, len(a.Insights), 4)
	assert.NotEmpty(t, a.Recommendations)
	assert.LessOrEqual(t, len(a.Recommendations), 5)
}
