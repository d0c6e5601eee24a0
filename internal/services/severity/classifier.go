// Package severity turns an infection percentage into a treatment plan.
//
// Two independent band sets are applied to the same input: the spray duration
// bands drive the actuator, the severity bands only label reports, and the
// two do not line up.
package severity

import (
	"math"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// Severity is an advisory label.
type Severity string

const (
	None     Severity = "None"
	Low      Severity = "Low"
	Moderate Severity = "Moderate"
	High     Severity = "High"
	Severe   Severity = "Severe"
)

// sprayThreshold is the infection level above which treatment is advised.
const sprayThreshold = 15.0

// Clamp brings a level into 0..100. NaN counts as no infection.
func Clamp(level float64) float64 {
	switch {
	case math.IsNaN(level), level < 0:
		return 0
	case level > 100:
		return 100
	default:
		return level
	}
}

// SprayDuration returns the actuation time in seconds.
func SprayDuration(level float64) int {
	level = Clamp(level)
	switch {
	case level <= 0:
		return 0
	case level < 25:
		return 3
	case level < 50:
		return 5
	case level < 75:
		return 8
	default:
		return 10
	}
}

// SeverityFor returns the report label for a level.
func SeverityFor(level float64) Severity {
	level = Clamp(level)
	switch {
	case level < 10:
		return Low
	case level < 30:
		return Moderate
	case level < 50:
		return High
	default:
		return Severe
	}
}

// SprayRecommended reports whether the level warrants treatment.
func SprayRecommended(level float64) bool {
	return Clamp(level) > sprayThreshold
}

// Classification bundles the three level-only decisions.
type Classification struct {
	InfectionLevel   float64  `json:"infection_level"`
	Severity         Severity `json:"severity"`
	SprayDuration    int      `json:"spray_duration"`
	SprayRecommended bool     `json:"spray_recommended"`
}

func Classify(level float64) Classification {
	return Classification{
		InfectionLevel:   Clamp(level),
		Severity:         SeverityFor(level),
		SprayDuration:    SprayDuration(level),
		SprayRecommended: SprayRecommended(level),
	}
}

// Recommendation is the full advisory for one assessment.
type Recommendation struct {
	Classification
	Disease     entities.DiseaseKey `json:"disease_key"`
	DiseaseName string              `json:"disease_name"`
	Description string              `json:"disease_description"`
	Pesticide   string              `json:"pesticide"`
	Dosage      string              `json:"dosage"`
	Treatment   Treatment           `json:"treatment"`
}

// Recommend combines the level bands with the disease reference table.
// A healthy result with nothing affected is labelled None.
func Recommend(a entities.DiseaseAssessment) Recommendation {
	info := a.Disease.Info()
	c := Classify(a.InfectionLevel)
	if a.Disease == entities.Healthy && c.InfectionLevel <= 0 {
		c.Severity = None
	}
	return Recommendation{
		Classification: c,
		Disease:        a.Disease,
		DiseaseName:    info.Name,
		Description:    info.Description,
		Pesticide:      info.Pesticide,
		Dosage:         info.Dosage,
		Treatment:      TreatmentFor(c.SprayDuration, info.Name),
	}
}
