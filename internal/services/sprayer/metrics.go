package sprayer

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/analyzer"
)

// Metrics owns its registry so several services can live in one process
// (tests). A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
	sensorUpdates     *prometheus.CounterVec
	assessments       *prometheus.CounterVec
	analyzerCalls     *prometheus.CounterVec
	actuatorErrors    prometheus.Counter
	soilMoisture      prometheus.Gauge
	temperature       prometheus.Gauge
	humidity          prometheus.Gauge
	spraying          prometheus.Gauge
	sequence          prometheus.Gauge
	cbState           *prometheus.GaugeVec

	// statusMu orders gauge writes by status sequence; lastSeq is the
	// newest sequence written.
	statusMu sync.Mutex
	lastSeq  uint64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprayer_commands_total",
			Help: "Spray commands by command and outcome (accepted, rejected, invalid).",
		}, []string{"command", "outcome"}),
		sensorUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprayer_sensor_updates_total",
			Help: "Sensor readings recorded by source.",
		}, []string{"source"}),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprayer_assessments_total",
			Help: "Disease assessments evaluated by severity.",
		}, []string{"severity"}),
		analyzerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sprayer_analyzer_calls_total",
			Help: "Image analyzer calls by result (ok, failed, unavailable).",
		}, []string{"result"}),
		actuatorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sprayer_actuator_publish_errors_total",
			Help: "Accepted transitions that could not be published to the actuator.",
		}),
		soilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprayer_soil_moisture_percent",
			Help: "Latest soil moisture reading.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprayer_temperature_celsius",
			Help: "Latest air temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprayer_humidity_percent",
			Help: "Latest relative humidity reading.",
		}),
		spraying: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprayer_spraying",
			Help: "1 while the pump is commanded on.",
		}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sprayer_command_sequence",
			Help: "Sequence number of the last processed command.",
		}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.commandsTotal,
		m.sensorUpdates,
		m.assessments,
		m.analyzerCalls,
		m.actuatorErrors,
		m.soilMoisture,
		m.temperature,
		m.humidity,
		m.spraying,
		m.sequence,
		m.cbState,
	)

	m.cbState.WithLabelValues("analyzer").Set(0)

	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) command(cmd entities.Command, outcome string) {
	if m == nil {
		return
	}
	label := string(cmd)
	if label == "" {
		label = "unknown"
	}
	m.commandsTotal.WithLabelValues(label, outcome).Inc()
}

func (m *Metrics) sensorUpdate(source string, r entities.SensorReading) {
	if m == nil {
		return
	}
	m.sensorUpdates.WithLabelValues(source).Inc()
	m.observeReading(r)
}

func (m *Metrics) observeReading(r entities.SensorReading) {
	if m == nil {
		return
	}
	m.soilMoisture.Set(r.SoilMoisture)
	m.temperature.Set(r.Temperature)
	m.humidity.Set(r.Humidity)
}

func (m *Metrics) observeStatus(st entities.SprayStatus) {
	if m == nil {
		return
	}
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if st.Sequence < m.lastSeq {
		return
	}
	m.lastSeq = st.Sequence
	if st.IsSpraying() {
		m.spraying.Set(1)
	} else {
		m.spraying.Set(0)
	}
	m.sequence.Set(float64(st.Sequence))
}

func (m *Metrics) assessed(a Assessment) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(string(a.Severity)).Inc()
}

func (m *Metrics) analyzerCall(err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.analyzerCalls.WithLabelValues("ok").Inc()
	case errors.Is(err, analyzer.ErrAnalyzerUnavailable):
		m.analyzerCalls.WithLabelValues("unavailable").Inc()
	default:
		m.analyzerCalls.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) actuatorError() {
	if m == nil {
		return
	}
	m.actuatorErrors.Inc()
}

func (m *Metrics) breakerState(target, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.cbState.WithLabelValues(target).Set(v)
}
