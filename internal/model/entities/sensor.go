package entities

import "time"

// SensorReading is the latest environmental observation of the field station.
// Values are stored as received: soil moisture outside 0..100 is kept for
// observability and rejected only when it gates actuation.
type SensorReading struct {
	Temperature  float64   `json:"temperature"`   // °C
	Humidity     float64   `json:"humidity"`      // % RH
	SoilMoisture float64   `json:"soil_moisture"` // %
	ObservedAt   time.Time `json:"timestamp"`
}

// SensorPatch is a partial update: nil fields keep the previous value.
type SensorPatch struct {
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p SensorPatch) Empty() bool {
	return p.Temperature == nil && p.Humidity == nil && p.SoilMoisture == nil
}

// ApplyTo returns r with the fields present in p replaced and ObservedAt set to at.
func (p SensorPatch) ApplyTo(r SensorReading, at time.Time) SensorReading {
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if p.Humidity != nil {
		r.Humidity = *p.Humidity
	}
	if p.SoilMoisture != nil {
		r.SoilMoisture = *p.SoilMoisture
	}
	r.ObservedAt = at
	return r
}

// DefaultSensorReading is the reading a freshly started station reports
// before any device has pushed data.
func DefaultSensorReading(at time.Time) SensorReading {
	return SensorReading{
		Temperature:  25.0,
		Humidity:     60.0,
		SoilMoisture: 55.0,
		ObservedAt:   at,
	}
}

// Float is a small helper to build patches inline.
func Float(v float64) *float64 { return &v }
