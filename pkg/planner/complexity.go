package planner

import "strings"

// Complexity is a deterministic classification of a requirement string.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityMedium      Complexity = "medium"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very-complex"
)

// keyword families checked in order from most to least complex; the
// first family with a hit wins. Medium is the default when nothing
// matches, since an unclassified requirement is rarely trivial.
var complexityKeywords = []struct {
	complexity Complexity
	keywords   []string
}{
	{ComplexityVeryComplex, []string{
		"migrate", "migration", "rewrite", "redesign", "re-architect",
		"architecture", "multi-service", "distributed", "replatform",
	}},
	{ComplexityComplex, []string{
		"integrate", "integration", "refactor", "pipeline", "authentication",
		"authorization", "payment", "real-time", "realtime", "concurrency",
		"scaling", "microservice",
	}},
	{ComplexitySimple, []string{
		"typo", "rename", "tweak", "adjust copy", "color", "label",
		"fix button", "spacing", "padding", "wording",
	}},
}

// EstimateComplexity classifies requirement using bounded keyword
// families, falling back to ComplexityMedium when no family matches.
func EstimateComplexity(requirement string) Complexity {
	text := strings.ToLower(requirement)
	for _, family := range complexityKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(text, kw) {
				return family.complexity
			}
		}
	}
	return ComplexityMedium
}

// DurationRange bounds the estimated wall-clock duration for a plan.
type DurationRange struct {
	Min, Max int // minutes
}

// durationTable maps complexity to a fixed estimated-duration range.
var durationTable = map[Complexity]DurationRange{
	ComplexitySimple:      {Min: 5, Max: 15},
	ComplexityMedium:      {Min: 15, Max: 60},
	ComplexityComplex:     {Min: 60, Max: 240},
	ComplexityVeryComplex: {Min: 240, Max: 960},
}

// EstimateDuration looks up c's fixed duration range.
func EstimateDuration(c Complexity) DurationRange {
	if d, ok := durationTable[c]; ok {
		return d
	}
	return durationTable[ComplexityMedium]
}
