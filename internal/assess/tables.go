package assess

// Difficulty is derived from hold characteristics and wall geometry,
// never from route color. Color is an orientation aid for the climber
// and says nothing about how hard the holds are to use.

// holdDifficulty scores each hold type on the 1-10 scale before
// modifiers. Jugs are big positive holds; gastons demand opposing
// shoulder pressure.
var holdDifficulty = map[string]float64{
	"jug":        2.0,
	"pinch":      5.0,
	"undercling": 6.0,
	"crimp":      6.0,
	"pocket":     6.5,
	"sloper":     7.0,
	"gaston":     7.5,
}

// angleModifier scales difficulty by the predominant wall angle.
var angleModifier = map[string]float64{
	"slab":            0.9,
	"vertical":        1.0,
	"slight_overhang": 1.3,
	"overhang":        1.8,
	"steep_overhang":  2.2,
	"roof":            2.2,
}

// sizeModifier scales difficulty by observed hold sizes.
var sizeModifier = map[string]float64{
	"large":  0.7,
	"medium": 1.0,
	"small":  1.4,
	"tiny":   1.8,
}

// gradeThreshold maps a clamped 1-10 difficulty onto French sport
// grades, highest threshold first.
var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{9.0, "7a+"},
	{8.0, "6c+"},
	{7.0, "6b"},
	{6.0, "6a"},
	{5.0, "5c"},
	{4.0, "5a"},
}

const easiestGrade = "4a"

func difficultyToGrade(d float64) string {
	for _, t := range gradeThresholds {
		if d >= t.min {
			return t.grade
		}
	}
	return easiestGrade
}

// Duration buckets for scaling visible per-frame moves to a full
// route estimate. Longer attempts show a smaller share of the route
// in any single frame.
var moveMultipliers = []struct {
	maxDuration float64
	factor      float64
}{
	{15, 1.5},
	{30, 2.0},
}

const longRouteMoveFactor = 2.5

const (
	moveCountFloor = 4
	moveCountCeil  = 15

	// Segment scores below this carry an improvement issue tag.
	issueThreshold = 0.7
	techniqueIssue = "technique_improvement_needed"

	maxInsights        = 4
	maxRecommendations = 5
)
