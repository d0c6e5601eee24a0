package messages

import (
	"time"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// SensorData is what a field station pushes on sensor/data/{device}.
// Every measurement is optional: absent fields keep the last known value.
type SensorData struct {
	DeviceID     string    `json:"device_id,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	SoilMoisture *float64  `json:"soil_moisture,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}

// Patch converts the payload to a store update.
func (s SensorData) Patch() entities.SensorPatch {
	return entities.SensorPatch{
		Temperature:  s.Temperature,
		Humidity:     s.Humidity,
		SoilMoisture: s.SoilMoisture,
	}
}
