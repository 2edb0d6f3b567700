package parser

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredFormatWinsOverProse(t *testing.T) {
	p := New(nil)
	text := `TECHNIQUE_SCORE: 8.5
MOVE_COUNT: 6
DIFFICULTY: 7
ROUTE_COLOR: blue
WALL_ANGLE: overhang
HOLD_TYPES: crimp, sloper
HOLD_SIZES: small, tiny
The climber shows a score: 3 on this easy jug ladder, maybe 2 moves.`

	rec := p.Parse(text, 4.0)
	assert.Equal(t, 8.5, rec.TechniqueScore)
	assert.Equal(t, 6, rec.MoveCount)
	assert.Equal(t, 7.0, rec.VisualDifficulty)
	assert.Equal(t, "blue", rec.RouteColor)
	assert.Equal(t, "overhang", rec.WallAngle)
	assert.Equal(t, []string{"crimp", "sloper"}, rec.HoldTypes)
	assert.Equal(t, []string{"small", "tiny"}, rec.HoldSizes)
}

func TestNaturalLanguageFallback(t *testing.T) {
	p := New(nil)
	rec := p.Parse("Solid technique, I would rate: 7 overall. The climber makes 5 moves between crimp holds.", 2.0)
	assert.Equal(t, 7.0, rec.TechniqueScore)
	assert.Equal(t, 5, rec.MoveCount)
	assert.Contains(t, rec.HoldTypes, "crimp")
}

func TestRefusalDefaults(t *testing.T) {
	p := New(nil)
	rec := p.Parse("I'm sorry, I am unable to analyze this image.", 1.0)
	assert.Equal(t, 4, rec.MoveCount, "refusals default move count to 4")
	assert.Equal(t, 5.0, rec.TechniqueScore)
	assert.Equal(t, "unknown", rec.RouteColor)
	assert.Equal(t, "vertical", rec.WallAngle)
}

func TestUnparseableDefaults(t *testing.T) {
	p := New(nil)
	rec := p.Parse("The lighting in this gym is quite dim today.", 1.0)
	assert.Equal(t, 5, rec.MoveCount, "attempted answers default move count to 5")
	assert.Equal(t, 7.0, rec.TechniqueScore)
	assert.Equal(t, 5.0, rec.VisualDifficulty)
}

func TestOutOfRangeStructuredValueFallsThrough(t *testing.T) {
	p := New(nil)
	rec := p.Parse("TECHNIQUE_SCORE: 95\nA good effort, score: 6 out of habit.", 0)
	assert.Equal(t, 6.0, rec.TechniqueScore, "out-of-range structured value must yield to the next rule")
}

func TestVGradeConversion(t *testing.T) {
	p := New(nil)
	rec := p.Parse("This looks like a V4 problem.", 0)
	assert.Equal(t, 7.0, rec.VisualDifficulty)

	rec = p.Parse("Definitely a V12 at least.", 0)
	assert.Equal(t, 10.0, rec.VisualDifficulty, "V-grades cap at 10")
}

func TestFrenchGradeConversion(t *testing.T) {
	p := New(nil)
	rec := p.Parse("I'd call this a 6b route.", 0)
	assert.InDelta(t, 6.7, rec.VisualDifficulty, 1e-9)
}

func TestVGradeOutranksFrenchGrade(t *testing.T) {
	p := New(nil)
	rec := p.Parse("Graded 6a in the gym but feels like V4.", 0)
	assert.Equal(t, 7.0, rec.VisualDifficulty)
}

func TestDifficultyInferredFromHolds(t *testing.T) {
	p := New(nil)
	rec := p.Parse("Tiny crimp after crimp up the headwall, impressive work.", 0)
	assert.Equal(t, 6.5, rec.VisualDifficulty)

	rec = p.Parse("A ladder of friendly jug holds all the way, nice work.", 0)
	assert.Equal(t, 3.0, rec.VisualDifficulty)
}

func TestColorFirstMentionWins(t *testing.T) {
	p := New(nil)
	rec := p.Parse("The climber is on the yellow route next to a blue one.", 0)
	assert.Equal(t, "yellow", rec.RouteColor)
}

func TestGrayNormalizedToGrey(t *testing.T) {
	p := New(nil)
	rec := p.Parse("ROUTE_COLOR: gray", 0)
	assert.Equal(t, "grey", rec.RouteColor)
}

func TestWallAngleSpecificityOrder(t *testing.T) {
	p := New(nil)
	rec := p.Parse("The wall kicks into a steep overhang at mid-height.", 0)
	assert.Equal(t, "steep_overhang", rec.WallAngle)
}

func TestCoordinateExtraction(t *testing.T) {
	p := New(nil)
	rec := p.Parse("Left hand on hold at: 340, 220 then reaches to (500, 180).", 0)
	require.Len(t, rec.Coordinates, 2)
	assert.Equal(t, 340, rec.Coordinates[0].X)
	assert.Equal(t, 220, rec.Coordinates[0].Y)
	assert.Equal(t, 0.8, rec.Coordinates[0].Confidence)
}

func TestCoordinatesOutOfBoundsDiscarded(t *testing.T) {
	p := New(nil)
	rec := p.Parse("A hold at (5000, 220) and another at (300, 9000).", 0)
	assert.Empty(t, rec.Coordinates)
}

func TestNegativeTimestampClamped(t *testing.T) {
	p := New(nil)
	rec := p.Parse("score: 6", -3)
	assert.Equal(t, 0.0, rec.Timestamp)
}

func TestFuzzFieldsAlwaysInRange(t *testing.T) {
	p := New(nil)
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz 0123456789:().,/VX\n")
	for i := 0; i < 500; i++ {
		var b strings.Builder
		n := rng.Intn(200)
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		rec := p.Parse(b.String(), float64(rng.Intn(60)))

		assert.GreaterOrEqual(t, rec.TechniqueScore, 1.0)
		assert.LessOrEqual(t, rec.TechniqueScore, 10.0)
		assert.GreaterOrEqual(t, rec.MoveCount, 1)
		assert.LessOrEqual(t, rec.MoveCount, 12)
		assert.GreaterOrEqual(t, rec.VisualDifficulty, 1.0)
		assert.LessOrEqual(t, rec.VisualDifficulty, 10.0)
		assert.NotEmpty(t, rec.RouteColor)
		assert.NotEmpty(t, rec.WallAngle)
	}
}
