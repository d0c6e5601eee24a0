// Package interlock decides whether the sprayer may be started.
// It is the only place that knows the safe soil-moisture window.
package interlock

import (
	"fmt"
	"math"
)

const (
	minSoilMoisture = 40.0 // %
	maxSoilMoisture = 70.0 // %
)

// Window is the inclusive soil-moisture range in which spraying is allowed.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (w Window) String() string { return fmt.Sprintf("%g-%g%%", w.Min, w.Max) }

// SafeWindow returns the configured window, for reporting only.
func SafeWindow() Window { return Window{Min: minSoilMoisture, Max: maxSoilMoisture} }

// Verdict is the outcome of an interlock evaluation.
type Verdict struct {
	Safe         bool    `json:"moisture_safe"`
	SoilMoisture float64 `json:"soil_moisture"`
	Reason       string  `json:"reason,omitempty"`
}

// IsSafe reports whether soil moisture m lies in the safe window.
func IsSafe(m float64) bool {
	return m >= minSoilMoisture && m <= maxSoilMoisture
}

// Check evaluates m. Too dry and too wet get the same treatment.
func Check(m float64) Verdict {
	if math.IsNaN(m) {
		return Verdict{SoilMoisture: m, Reason: fmt.Sprintf("soil moisture is not a number, outside safe range (%s)", SafeWindow())}
	}
	if !IsSafe(m) {
		return Verdict{
			SoilMoisture: m,
			Reason:       fmt.Sprintf("soil moisture %g%% outside safe range (%s)", m, SafeWindow()),
		}
	}
	return Verdict{Safe: true, SoilMoisture: m}
}
