package sprayer

import (
	"encoding/json"
	"fmt"
	"path"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/dedup"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
)

// SensorHandler returns the MQTT handler for sensor/data/{device}. A message
// the broker flags as duplicate of one already handled within the deduper TTL
// is dropped; a sensor repeating the same value is still recorded.
func (s *Service) SensorHandler(d *dedup.Deduper) rabbitmq.Handler {
	return func(topic string, msg mqtt.Message) error {
		payload := msg.Payload()
		if d != nil && d.Redelivery(dedup.MessageKey(topic, msg.MessageID(), payload), msg.Duplicate()) {
			return nil
		}

		var data messages.SensorData
		if err := json.Unmarshal(payload, &data); err != nil {
			return fmt.Errorf("ingest: bad payload on %s: %w", topic, err)
		}
		patch := data.Patch()
		if patch.Empty() {
			return fmt.Errorf("ingest: no measurement in payload on %s", topic)
		}

		device := data.DeviceID
		if device == "" {
			device = path.Base(topic)
		}
		r := s.record(patch, "mqtt")
		s.logger.Printf("ingest: %s soil=%.1f%% temp=%.1f hum=%.1f", device, r.SoilMoisture, r.Temperature, r.Humidity)
		return nil
	}
}
