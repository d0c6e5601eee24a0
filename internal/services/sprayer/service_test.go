package sprayer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/analyzer"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sensorstore"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/severity"
	controller "github.com/LeonardoBeccarini/sprayer_project/internal/services/spray-controller"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq/rabbitmqtest"
)

var testNow = time.Date(2026, 6, 12, 7, 30, 0, 0, time.UTC)

type recordingActuator struct {
	mu     sync.Mutex
	events []messages.SprayCommandEvent
	err    error
}

func (r *recordingActuator) Actuate(_ context.Context, ev messages.SprayCommandEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingActuator) Events() []messages.SprayCommandEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.SprayCommandEvent(nil), r.events...)
}

type stubAnalyzer struct {
	res   analyzer.Analysis
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(context.Context, []byte) (analyzer.Analysis, error) {
	s.calls++
	return s.res, s.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      *Service
	store    *sensorstore.Store
	actuator *recordingActuator
	metrics  *Metrics
	clock    *testClock
}

func newFixture(t *testing.T, moisture float64, opts ...Option) fixture {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	clk := &testClock{now: testNow}
	clock := clk.Now

	store := sensorstore.New(
		sensorstore.WithClock(clock),
		sensorstore.WithInitial(entities.SensorReading{Temperature: 22, Humidity: 65, SoilMoisture: moisture}),
	)
	ctrl := controller.NewController(store, controller.WithClock(clock), controller.WithLogger(quiet))
	act := &recordingActuator{}
	m := NewMetrics()

	all := append([]Option{WithLogger(quiet), WithClock(clock), WithActuator(act), WithMetrics(m), WithDeviceID("sprayer-7")}, opts...)
	return fixture{svc: New(store, ctrl, all...), store: store, actuator: act, metrics: m, clock: clk}
}

func TestRecordAndReadSensors(t *testing.T) {
	f := newFixture(t, 55)

	r := f.svc.RecordSensorReading(entities.SensorPatch{SoilMoisture: entities.Float(48)})
	assert.Equal(t, 48.0, r.SoilMoisture)
	assert.Equal(t, 22.0, r.Temperature)
	assert.Equal(t, r, f.svc.CurrentSensorReading())

	assert.Equal(t, 48.0, testutil.ToFloat64(f.metrics.soilMoisture))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.sensorUpdates.WithLabelValues("api")))
}

func TestAssessSevereInfectionSafeMoisture(t *testing.T) {
	f := newFixture(t, 55)

	a := f.svc.Assess(AssessRequest{DiseaseKey: "potato_late_blight", InfectionLevel: 85, Confidence: 0.91234})

	assert.True(t, a.DiseaseDetected)
	assert.Equal(t, "Potato Late Blight", a.DiseaseName)
	assert.Equal(t, severity.Severe, a.Severity)
	assert.Equal(t, 10, a.SprayDuration)
	assert.True(t, a.SprayRecommended)
	assert.True(t, a.SprayAllowed)
	assert.True(t, a.MoistureSafe)
	assert.Equal(t, 55.0, a.SoilMoisture)
	assert.Equal(t, 91.23, a.Confidence)
	assert.Equal(t, testNow, a.Timestamp)
	assert.Contains(t, a.AlertMessage, "Spraying recommended.")
	assert.True(t, a.Decision.SprayAllowed)
}

func TestAssessWetSoilBlocksAdvice(t *testing.T) {
	f := newFixture(t, 55)

	a := f.svc.Assess(AssessRequest{DiseaseKey: "tomato_early_blight", InfectionLevel: 45, Confidence: 0.8, SoilMoisture: entities.Float(75)})

	assert.Equal(t, 5, a.SprayDuration)
	assert.Equal(t, severity.High, a.Severity)
	assert.False(t, a.SprayAllowed)
	assert.False(t, a.SprayRecommended)
	assert.Equal(t, 75.0, a.SoilMoisture)
	assert.Contains(t, a.SafetyReason, "outside safe range")
	assert.Contains(t, a.AlertMessage, "Spraying NOT recommended")
}

func TestAssessUnknownDiseaseIsHealthy(t *testing.T) {
	f := newFixture(t, 55)

	a := f.svc.Assess(AssessRequest{DiseaseKey: "banana_wilt", InfectionLevel: 0})
	assert.False(t, a.DiseaseDetected)
	assert.Equal(t, "Healthy Plant", a.DiseaseName)
	assert.Equal(t, severity.None, a.Severity)
	assert.False(t, a.SprayRecommended)
}

func TestSubmitStartPublishesEvent(t *testing.T) {
	f := newFixture(t, 55)

	res, err := f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: " start ", Duration: intp(8)})
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	events := f.actuator.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "sprayer-7", ev.DeviceID)
	assert.Equal(t, entities.CommandStart, ev.Command)
	assert.Equal(t, entities.StateSpraying, ev.NewState)
	assert.Equal(t, 8, ev.Duration)
	assert.Equal(t, uint64(1), ev.Sequence)
	assert.Equal(t, res.TicketID, ev.TicketID)

	assert.True(t, f.svc.SpraySystemStatus().IsSpraying())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.spraying))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.commandsTotal.WithLabelValues("START", "accepted")))
}

func TestRejectedStartIsNotPublished(t *testing.T) {
	f := newFixture(t, 30)

	res, err := f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: "START"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, entities.StateRejected, res.State)
	assert.Empty(t, f.actuator.Events())

	st := f.svc.SpraySystemStatus()
	assert.Equal(t, entities.StateIdle, st.State)
	assert.Equal(t, entities.CommandRejected, st.LastCommand)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.commandsTotal.WithLabelValues("START", "rejected")))
}

func TestInvalidCommandsChangeNothing(t *testing.T) {
	f := newFixture(t, 55)

	_, err := f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: "FLOOD"})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: "START", Duration: intp(-1)})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: "START", SoilMoisture: entities.Float(math.NaN())})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	assert.Zero(t, f.svc.Status().Sequence)
	assert.Empty(t, f.actuator.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.commandsTotal.WithLabelValues("unknown", "invalid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.commandsTotal.WithLabelValues("START", "invalid")))
}

func TestActuatorFailureKeepsTransition(t *testing.T) {
	f := newFixture(t, 55)
	f.actuator.err = errors.New("broker down")

	res, err := f.svc.SubmitSprayCommand(context.Background(), SprayCommandRequest{Command: "START"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, f.svc.Status().IsSpraying())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.actuatorErrors))
}

func TestScenarioUpdateThenCommand(t *testing.T) {
	f := newFixture(t, 55)
	ctx := context.Background()

	f.svc.RecordSensorReading(entities.SensorPatch{SoilMoisture: entities.Float(80)})
	res, err := f.svc.SubmitSprayCommand(ctx, SprayCommandRequest{Command: "START"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	f.svc.RecordSensorReading(entities.SensorPatch{SoilMoisture: entities.Float(50)})
	res, err = f.svc.SubmitSprayCommand(ctx, SprayCommandRequest{Command: "START"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, controller.DefaultSprayDuration, res.Status.RequestedDuration)

	res, err = f.svc.SubmitSprayCommand(ctx, SprayCommandRequest{Command: "stop"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, entities.StateIdle, f.svc.Status().State)

	events := f.actuator.Events()
	require.Len(t, events, 2)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
}

func TestAnalyzeImage(t *testing.T) {
	stub := &stubAnalyzer{res: analyzer.Analysis{
		Mask:       [][]float64{{1, 1, 0, 0}, {0, 0, 0, 0}},
		DiseaseKey: "rice_blast",
		Confidence: 0.875,
	}}
	f := newFixture(t, 55, WithAnalyzer(stub))

	a, err := f.svc.AnalyzeImage(context.Background(), []byte("jpeg"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Rice Blast", a.DiseaseName)
	assert.Equal(t, 25.0, a.InfectionLevel)
	assert.Equal(t, 5, a.SprayDuration)
	assert.Equal(t, 87.5, a.Confidence)
	assert.True(t, a.SprayRecommended)
}

func TestAnalyzeImageFailuresLeaveStateAlone(t *testing.T) {
	stub := &stubAnalyzer{err: analyzer.ErrAnalyzerUnavailable}
	f := newFixture(t, 55, WithAnalyzer(stub))
	before := f.svc.CurrentSensorReading()

	_, err := f.svc.AnalyzeImage(context.Background(), []byte("jpeg"), nil)
	assert.ErrorIs(t, err, analyzer.ErrAnalyzerUnavailable)

	_, err = f.svc.AnalyzeImage(context.Background(), nil, nil)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
	assert.Equal(t, 1, stub.calls, "empty image never reaches the analyzer")

	assert.Equal(t, before, f.svc.CurrentSensorReading())
	assert.Zero(t, f.svc.Status().Sequence)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.analyzerCalls.WithLabelValues("unavailable")))
}

func TestAnalyzeImageWithoutAnalyzer(t *testing.T) {
	f := newFixture(t, 55)
	_, err := f.svc.AnalyzeImage(context.Background(), []byte("jpeg"), nil)
	assert.ErrorIs(t, err, analyzer.ErrAnalyzerUnavailable)
}

func TestMQTTActuatorPublishesJSON(t *testing.T) {
	client := rabbitmqtest.NewClient()
	act := NewMQTTActuator(client, "event/SprayCommand/{device}", "sprayer-7")
	assert.Equal(t, "event/SprayCommand/sprayer-7", act.Topic())

	ev := messages.SprayCommandEvent{DeviceID: "sprayer-7", Command: entities.CommandStop, NewState: entities.StateIdle, Sequence: 4}
	require.NoError(t, act.Actuate(context.Background(), ev))

	pub := client.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, byte(1), pub[0].QoS)

	var got messages.SprayCommandEvent
	require.NoError(t, json.Unmarshal(pub[0].Payload, &got))
	assert.Equal(t, uint64(4), got.Sequence)
	assert.Equal(t, entities.CommandStop, got.Command)
}

func intp(v int) *int { return &v }
