package severity

import (
	"fmt"

	"github.com/LeonardoBeccarini/sprayer_project/internal/services/interlock"
)

// Treatment describes what the operator should do for a duration band.
type Treatment struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Frequency string `json:"frequency"`
}

// TreatmentFor maps a spray duration to its treatment plan. Durations that
// are not one of the bands fall back to the no-action plan.
func TreatmentFor(duration int, diseaseName string) Treatment {
	switch duration {
	case 3:
		return Treatment{
			Action:    "Light treatment",
			Message:   fmt.Sprintf("Low-level %s detected. Apply preventive treatment.", diseaseName),
			Frequency: "Single application",
		}
	case 5:
		return Treatment{
			Action:    "Standard treatment",
			Message:   fmt.Sprintf("Moderate %s detected. Apply full treatment.", diseaseName),
			Frequency: "Apply now, re-evaluate in 3 days",
		}
	case 8:
		return Treatment{
			Action:    "Intensive treatment",
			Message:   fmt.Sprintf("Severe %s detected. Apply intensive treatment.", diseaseName),
			Frequency: "Apply now, repeat in 2 days",
		}
	case 10:
		return Treatment{
			Action:    "Maximum treatment",
			Message:   fmt.Sprintf("Critical %s detected! Immediate maximum treatment required.", diseaseName),
			Frequency: "Apply immediately, repeat daily for 3 days",
		}
	default:
		return Treatment{
			Action:    "No action needed",
			Message:   "Plant appears healthy. Continue regular monitoring.",
			Frequency: "Weekly inspection",
		}
	}
}

// Decision is the combined answer to "may we spray, and for how long".
type Decision struct {
	SprayAllowed bool   `json:"spray_allowed"`
	Duration     int    `json:"duration"`
	Reason       string `json:"reason"`
}

// Decide applies the interlock verdict before the duration bands.
func Decide(level float64, v interlock.Verdict) Decision {
	if !v.Safe {
		return Decision{Reason: v.Reason}
	}
	d := SprayDuration(level)
	if d == 0 {
		return Decision{Reason: "No infection detected - no spray needed"}
	}
	return Decision{
		SprayAllowed: true,
		Duration:     d,
		Reason:       fmt.Sprintf("Infection level %g%% - spraying for %d seconds", Clamp(level), d),
	}
}

// AlertMessage renders the operator notification for an assessment.
func AlertMessage(r Recommendation, v interlock.Verdict) string {
	if !r.SprayRecommended {
		return fmt.Sprintf("Plant appears healthy. Infection level: %g%%", r.InfectionLevel)
	}
	msg := fmt.Sprintf("DISEASE ALERT: %s\nInfection Level: %g%% (%s)\nRecommended Pesticide: %s\nDosage: %s\nSpray Duration: %d seconds",
		r.DiseaseName, r.InfectionLevel, r.Severity, r.Pesticide, r.Dosage, r.SprayDuration)
	if !v.Safe {
		return msg + fmt.Sprintf("\nWARNING: Soil moisture outside safe range (%s). Spraying NOT recommended.", interlock.SafeWindow())
	}
	return msg + "\nSpraying recommended."
}
