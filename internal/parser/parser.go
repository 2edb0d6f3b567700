// Package parser converts raw vision model text into fully populated
// frame records. Parsing never fails: every field terminates in a
// validated default, so untrusted model output degrades accuracy
// instead of aborting the pipeline.
package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/cruxview/cruxview/internal/models"
)

// Field ranges and defaults. Refusals get lower defaults than
// attempted-but-unparseable answers because they carry less signal.
const (
	techniqueMin = 1.0
	techniqueMax = 10.0
	moveMin      = 1
	moveMax      = 12
	difficultyMin = 1.0
	difficultyMax = 10.0

	refusedTechnique   = 5.0
	attemptedTechnique = 7.0
	refusedMoves       = 4
	attemptedMoves     = 5
	defaultDifficulty  = 5.0

	coordMaxX = 1920
	coordMaxY = 1080
)

// Parser extracts frame records from model responses.
type Parser struct {
	logger *slog.Logger
}

// New returns a parser logging cascade decisions at debug level.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse converts one response into a frame record. The record is
// always fully populated; fields the text does not yield fall back to
// documented defaults.
func (p *Parser) Parse(text string, timestamp float64) models.FrameRecord {
	if timestamp < 0 {
		timestamp = 0
	}
	lower := strings.ToLower(text)
	refused := isRefusal(lower)

	rec := models.FrameRecord{
		Timestamp:   timestamp,
		HoldTypes:   extractKeywords(text, reHoldTypesKey, knownHoldTypes),
		HoldSizes:   extractKeywords(text, reHoldSizesKey, knownHoldSizes),
		RouteColor:  p.extractColor(text, lower),
		WallAngle:   extractWallAngle(text, lower),
		Insights:    extractInsights(text),
		Coordinates: extractCoordinates(text),
	}

	defaultTechnique, defaultMoves := attemptedTechnique, float64(attemptedMoves)
	if refused {
		defaultTechnique, defaultMoves = refusedTechnique, float64(refusedMoves)
	}

	rec.TechniqueScore = p.extractNumeric(text, reTechniqueKey, techniqueRules,
		techniqueMin, techniqueMax, defaultTechnique)

	moves := p.extractNumeric(text, reMoveCountKey, moveCountRules,
		float64(moveMin), float64(moveMax), defaultMoves)
	rec.MoveCount = int(moves)

	rec.VisualDifficulty = p.extractNumeric(text, reDifficultyKey, difficultyRules,
		difficultyMin, difficultyMax, inferDifficulty(rec.HoldTypes))

	if refused {
		p.logger.Debug("model refused frame, using refusal defaults", "timestamp", timestamp)
	}
	return rec
}

// extractNumeric runs one field's cascade: structured key first, then
// natural-language rules in priority order. Out-of-range values are
// discarded and the cascade continues.
func (p *Parser) extractNumeric(text string, key *regexp.Regexp, rules []numericRule, min, max, fallback float64) float64 {
	if m := key.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= min && v <= max {
			return v
		}
	}
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if v, ok := r.convert(m); ok && v >= min && v <= max {
				return v
			}
		}
	}
	return fallback
}

func (p *Parser) extractColor(text, lower string) string {
	if m := reRouteColorKey.FindStringSubmatch(text); m != nil {
		c := normalizeColor(strings.ToLower(m[1]))
		if c != "" {
			return c
		}
	}
	// First color mentioned in the running text wins.
	best, bestIdx := "", len(lower)+1
	for _, c := range knownColors {
		if idx := strings.Index(lower, c); idx >= 0 && idx < bestIdx {
			best, bestIdx = c, idx
		}
	}
	if best == "" {
		return "unknown"
	}
	return normalizeColor(best)
}

func normalizeColor(c string) string {
	if c == "gray" {
		c = "grey"
	}
	for _, known := range knownColors {
		if c == known {
			return c
		}
	}
	return ""
}

func extractWallAngle(text, lower string) string {
	if m := reWallAngleKey.FindStringSubmatch(text); m != nil {
		a := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(m[1])), " ", "_")
		for _, known := range knownAngles {
			if a == known {
				return a
			}
		}
	}
	// Most specific phrasing first so "steep overhang" is not eaten
	// by the bare "overhang" keyword.
	for _, angle := range knownAngles {
		phrase := strings.ReplaceAll(angle, "_", " ")
		if strings.Contains(lower, phrase) {
			return angle
		}
	}
	return "vertical"
}

// extractKeywords parses a structured list line if present, otherwise
// scans the whole text for known terms.
func extractKeywords(text string, key *regexp.Regexp, known []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(strings.ToLower(s))
		for _, k := range known {
			if s == k && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}

	if m := key.FindStringSubmatch(text); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			add(part)
		}
		if len(out) > 0 {
			return out
		}
	}

	lower := strings.ToLower(text)
	for _, k := range known {
		if strings.Contains(lower, k) {
			add(k)
		}
	}
	return out
}

// inferDifficulty is the intelligent default for visual difficulty:
// hold keywords present in the text imply a conservative estimate
// even when no numeric difficulty was stated.
func inferDifficulty(holdTypes []string) float64 {
	if len(holdTypes) == 0 {
		return defaultDifficulty
	}
	hard := map[string]bool{
		"crimp": true, "sloper": true, "gaston": true,
		"pocket": true, "undercling": true,
	}
	onlyJugs := true
	for _, h := range holdTypes {
		if hard[h] {
			return 6.5
		}
		if h != "jug" {
			onlyJugs = false
		}
	}
	if onlyJugs {
		return 3.0
	}
	return defaultDifficulty
}

func extractInsights(text string) []string {
	keywords := []string{"good", "excellent", "improve", "better", "technique", "position"}
	var insights []string
	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 20 {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				insights = append(insights, sentence)
				break
			}
		}
		if len(insights) == 3 {
			break
		}
	}
	return insights
}

func extractCoordinates(text string) []models.Coordinate {
	var coords []models.Coordinate
	seen := make(map[[2]int]bool)
	for _, re := range coordinateRules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			x, errX := strconv.Atoi(m[1])
			y, errY := strconv.Atoi(m[2])
			if errX != nil || errY != nil {
				continue
			}
			if x < 0 || x > coordMaxX || y < 0 || y > coordMaxY {
				continue
			}
			k := [2]int{x, y}
			if seen[k] {
				continue
			}
			seen[k] = true
			coords = append(coords, models.Coordinate{X: x, Y: y, Confidence: 0.8})
		}
	}
	return coords
}

func isRefusal(lower string) bool {
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
