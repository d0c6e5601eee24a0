package sprayer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/dedup"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq/rabbitmqtest"
)

func TestSensorHandlerAppliesPatch(t *testing.T) {
	f := newFixture(t, 55)
	h := f.svc.SensorHandler(dedup.New(time.Minute, 100))

	err := h("sensor/data/station-1", &rabbitmqtest.Message{TopicName: "sensor/data/station-1", Body: []byte(`{"soil_moisture":44,"humidity":70}`)})
	require.NoError(t, err)

	r := f.svc.CurrentSensorReading()
	assert.Equal(t, 44.0, r.SoilMoisture)
	assert.Equal(t, 70.0, r.Humidity)
	assert.Equal(t, 22.0, r.Temperature)
}

func TestSensorHandlerDropsRedeliveries(t *testing.T) {
	f := newFixture(t, 55)
	h := f.svc.SensorHandler(dedup.New(time.Minute, 100))
	body := []byte(`{"soil_moisture":44,"timestamp":"2026-06-12T07:00:00Z"}`)
	first := &rabbitmqtest.Message{TopicName: "sensor/data/s1", Body: body, QoS: 1, ID: 12}
	again := &rabbitmqtest.Message{TopicName: "sensor/data/s1", Body: body, QoS: 1, ID: 12, Dup: true}

	require.NoError(t, h(first.Topic(), first))
	f.svc.RecordSensorReading(entitiesPatch(60))
	require.NoError(t, h(again.Topic(), again))

	assert.Equal(t, 60.0, f.svc.CurrentSensorReading().SoilMoisture, "redelivery must not roll back a newer reading")
	assert.Equal(t, 1.0, counter(f.metrics.sensorUpdates.WithLabelValues("mqtt")))
}

func TestSensorHandlerRecordsRepeatedValues(t *testing.T) {
	f := newFixture(t, 55)
	h := f.svc.SensorHandler(dedup.New(30*time.Second, 100).WithClock(f.clock.Now))
	body := []byte(`{"soil_moisture":55}`)

	require.NoError(t, h("sensor/data/s1", &rabbitmqtest.Message{TopicName: "sensor/data/s1", Body: body, QoS: 1, ID: 1}))
	first := f.svc.CurrentSensorReading().ObservedAt

	f.clock.Advance(10 * time.Second)
	require.NoError(t, h("sensor/data/s1", &rabbitmqtest.Message{TopicName: "sensor/data/s1", Body: body, QoS: 1, ID: 1}))

	assert.Equal(t, first.Add(10*time.Second), f.svc.CurrentSensorReading().ObservedAt)
	assert.Equal(t, 2.0, counter(f.metrics.sensorUpdates.WithLabelValues("mqtt")))
}

func TestSensorHandlerRejectsBadPayloads(t *testing.T) {
	f := newFixture(t, 55)
	h := f.svc.SensorHandler(nil)

	assert.Error(t, h("sensor/data/s1", &rabbitmqtest.Message{Body: []byte("{")}))
	assert.Error(t, h("sensor/data/s1", &rabbitmqtest.Message{Body: []byte(`{"device_id":"s1"}`)}))
	assert.Equal(t, 55.0, f.svc.CurrentSensorReading().SoilMoisture)
}

func TestSensorIngestionThroughConsumer(t *testing.T) {
	f := newFixture(t, 55)
	client := rabbitmqtest.NewClient()
	c := rabbitmq.NewConsumer(client, "sensor/data/#", f.svc.SensorHandler(dedup.New(time.Minute, 100)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.ConsumeMessage(ctx)
	require.Eventually(t, func() bool { return client.Subscribed("sensor/data/#") }, time.Second, 5*time.Millisecond)

	client.Deliver("sensor/data/field-3", []byte(`{"soil_moisture":41}`))
	assert.Equal(t, 41.0, f.svc.CurrentSensorReading().SoilMoisture)
}

func entitiesPatch(moisture float64) entities.SensorPatch {
	return entities.SensorPatch{SoilMoisture: entities.Float(moisture)}
}

func counter(c prometheus.Collector) float64 { return testutil.ToFloat64(c) }
