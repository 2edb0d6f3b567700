package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// numericRule is one extraction step in a field's fallback cascade.
// Rules are evaluated in declaration order; the first rule whose
// converted value passes the field's range check wins.
type numericRule struct {
	re      *regexp.Regexp
	convert func(groups []string) (float64, bool)
}

func firstGroupFloat(groups []string) (float64, bool) {
	v, err := strconv.ParseFloat(groups[1], 64)
	return v, err == nil
}

// Structured KEY: VALUE lines requested from the model. These always
// outrank natural-language patterns.
var (
	reTechniqueKey  = regexp.MustCompile(`(?im)^\s*TECHNIQUE_SCORE\s*:\s*(\d+(?:\.\d+)?)`)
	reMoveCountKey  = regexp.MustCompile(`(?im)^\s*MOVE_COUNT\s*:\s*(\d+)`)
	reDifficultyKey = regexp.MustCompile(`(?im)^\s*DIFFICULTY\s*:\s*(\d+(?:\.\d+)?)`)
	reRouteColorKey = regexp.MustCompile(`(?im)^\s*ROUTE_COLOR\s*:\s*([a-zA-Z]+)`)
	reWallAngleKey  = regexp.MustCompile(`(?im)^\s*WALL_ANGLE\s*:\s*([a-z_ ]+)`)
	reHoldTypesKey  = regexp.MustCompile(`(?im)^\s*HOLD_TYPES\s*:\s*([a-z, ]+)`)
	reHoldSizesKey  = regexp.MustCompile(`(?im)^\s*HOLD_SIZES\s*:\s*([a-z, ]+)`)
)

// techniqueRules extract a 1-10 technique score from free-form text.
var techniqueRules = []numericRule{
	{re: regexp.MustCompile(`(?i)technique[^.\d]{0,20}(\d+(?:\.\d+)?)\s*(?:/|out of)\s*10`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)(?:score|rate|rating)[:\s]+(\d+(?:\.\d+)?)`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:/|out of)\s*10`), convert: firstGroupFloat},
}

// moveCountRules extract the number of visible moves.
var moveCountRules = []numericRule{
	{re: regexp.MustCompile(`(?i)(\d+)\s+(?:distinct\s+)?moves?\b`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)moves?[:\s]+(\d+)`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)(?:approximately|about|around|roughly)\s+(\d+)\s+(?:moves?|holds?)`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)sequence\s+of\s+(\d+)`), convert: firstGroupFloat},
}

// difficultyRules extract a 1-10 visual difficulty. Grade notations
// are converted; V-scale outranks French grades when both appear.
var difficultyRules = []numericRule{
	{re: regexp.MustCompile(`(?i)difficulty[^.\d]{0,20}(\d+(?:\.\d+)?)\s*(?:/|out of)\s*10`), convert: firstGroupFloat},
	{re: regexp.MustCompile(`(?i)\bV(\d{1,2})\b`), convert: vGradeToScore},
	{re: regexp.MustCompile(`(?i)\b([4-9])([abc])\+?\b`), convert: frenchGradeToScore},
	{re: regexp.MustCompile(`(?i)difficulty[:\s]+(\d+(?:\.\d+)?)`), convert: firstGroupFloat},
}

// vGradeToScore maps the bouldering V-scale onto 1-10. V0 is an easy
// warmup, V7 and above land at the ceiling.
func vGradeToScore(groups []string) (float64, bool) {
	v, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	score := 3.0 + float64(v)
	if score > 10 {
		score = 10
	}
	return score, true
}

// frenchGradeToScore maps French sport grades (4a-9c) onto 1-10.
func frenchGradeToScore(groups []string) (float64, bool) {
	num, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	letterOffset := map[string]float64{"a": 0, "b": 0.7, "c": 1.4}
	off, ok := letterOffset[strings.ToLower(groups[2])]
	if !ok {
		return 0, false
	}
	score := float64(num-3)*2 + off
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, true
}

// coordinateRules locate hold positions in reference 1920x1080 space.
// More specific phrasings are tried before the bare "x, y" form.
var coordinateRules = []*regexp.Regexp{
	regexp.MustCompile(`coordinate[s]?[:\s]*\((\d+),\s*(\d+)\)`),
	regexp.MustCompile(`(?i)x[:\s]+(\d+)[,\s]+y[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)position[:\s]+(\d+)[,\s]+(\d+)`),
	regexp.MustCompile(`(?i)hold.{0,20}?at[:\s]+(\d+)[,\s]+(\d+)`),
	regexp.MustCompile(`(?i)grip.{0,20}?\((\d+),\s*(\d+)\)`),
	regexp.MustCompile(`\((\d+),\s*(\d+)\)`),
}

// refusalPhrases mark responses where the model declined to analyze
// the frame. Matching any of these routes the record to the refusal
// defaults instead of the attempted-but-unparseable defaults.
var refusalPhrases = []string{
	"unable to analyze",
	"cannot analyze",
	"can't analyze",
	"cannot assist",
	"i'm sorry",
	"i am sorry",
	"unable to provide",
	"cannot identify",
	"not able to analyze",
	"as an ai",
}

var knownColors = []string{
	"red", "blue", "green", "yellow", "orange",
	"purple", "pink", "black", "white", "grey", "gray",
}

var knownAngles = []string{
	"steep_overhang", "slight_overhang", "overhang", "vertical", "slab", "roof",
}

var knownHoldTypes = []string{
	"jug", "crimp", "sloper", "pinch", "pocket", "gaston", "undercling",
}

var knownHoldSizes = []string{"large", "medium", "small", "tiny"}
