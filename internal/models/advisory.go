package models

import "fmt"

// AdvisoryCategory is a content-advisory dimension.
type AdvisoryCategory string

const (
	AdvisoryViolence    AdvisoryCategory = "violence"
	AdvisorySexNudity   AdvisoryCategory = "sex_nudity"
	AdvisoryProfanity   AdvisoryCategory = "profanity"
	AdvisorySubstances  AdvisoryCategory = "substances"
	AdvisoryFrightening AdvisoryCategory = "frightening"
)

// AdvisoryCategories lists every category.
var AdvisoryCategories = []AdvisoryCategory{
	AdvisoryViolence, AdvisorySexNudity, AdvisoryProfanity, AdvisorySubstances, AdvisoryFrightening,
}

// Severity is an ordered advisory level.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

var severityNames = map[string]Severity{
	"none":     SeverityNone,
	"mild":     SeverityMild,
	"moderate": SeverityModerate,
	"severe":   SeveritySevere,
}

// ParseSeverity parses none|mild|moderate|severe.
func ParseSeverity(s string) (Severity, error) {
	if sev, ok := severityNames[s]; ok {
		return sev, nil
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) String() string {
	for name, v := range severityNames {
		if v == s {
			return name
		}
	}
	return "unknown"
}

// ContentAdvisory is a movie's per-category severity.
type ContentAdvisory map[AdvisoryCategory]Severity

// Exceeds reports whether any category is above the configured limit.
// Categories without a limit are unrestricted.
func (a ContentAdvisory) Exceeds(limits map[AdvisoryCategory]Severity) bool {
	for cat, limit := range limits {
		if sev, ok := a[cat]; ok && sev > limit {
			return true
		}
	}
	return false
}
