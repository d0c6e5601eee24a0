// Package sprayer is the facade of the spray decision service: it owns the
// sensor store and the controller and is the only place that talks to the
// actuator, the analyzer and the metrics registry.
package sprayer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/analyzer"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/interlock"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sensorstore"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/severity"
	controller "github.com/LeonardoBeccarini/sprayer_project/internal/services/spray-controller"
)

// Actuator receives accepted transitions.
type Actuator interface {
	Actuate(ctx context.Context, ev messages.SprayCommandEvent) error
}

// AssessRequest is one disease assessment to evaluate. SoilMoisture, when
// set, replaces the stored reading for the interlock check.
type AssessRequest struct {
	DiseaseKey     string   `json:"disease_key"`
	InfectionLevel float64  `json:"infection_level"`
	Confidence     float64  `json:"confidence"` // 0..1
	SoilMoisture   *float64 `json:"soil_moisture,omitempty"`
}

// Assessment is the recommendation joined with the interlock verdict.
type Assessment struct {
	Timestamp          time.Time           `json:"timestamp"`
	DiseaseDetected    bool                `json:"disease_detected"`
	Disease            entities.DiseaseKey `json:"disease_key"`
	DiseaseName        string              `json:"disease_name"`
	DiseaseDescription string              `json:"disease_description"`
	InfectionLevel     float64             `json:"infection_level"`
	Severity           severity.Severity   `json:"severity"`
	Confidence         float64             `json:"confidence"` // percent
	Pesticide          string              `json:"pesticide"`
	Dosage             string              `json:"dosage"`
	SprayDuration      int                 `json:"spray_duration"`
	SprayRecommended   bool                `json:"spray_recommended"` // advised and safe
	SprayAllowed       bool                `json:"spray_allowed"`
	SoilMoisture       float64             `json:"soil_moisture"`
	MoistureSafe       bool                `json:"moisture_safe"`
	SafetyReason       string              `json:"safety_reason,omitempty"`
	Treatment          severity.Treatment  `json:"treatment"`
	Decision           severity.Decision   `json:"decision"`
	AlertMessage       string              `json:"alert_message"`
}

// SprayCommandRequest is a command as received from a client.
type SprayCommandRequest struct {
	Command      string
	Duration     *int
	SoilMoisture *float64
}

// Service wires the core components. All methods are safe for concurrent use.
type Service struct {
	store    *sensorstore.Store
	ctrl     controller.Commander
	analyzer analyzer.Analyzer
	actuator Actuator
	metrics  *Metrics
	deviceID string
	now      func() time.Time
	logger   *log.Logger
}

var _ controller.Commander = (*Service)(nil)

type Option func(*Service)

func WithAnalyzer(a analyzer.Analyzer) Option { return func(s *Service) { s.analyzer = a } }
func WithActuator(a Actuator) Option          { return func(s *Service) { s.actuator = a } }
func WithMetrics(m *Metrics) Option           { return func(s *Service) { s.metrics = m } }
func WithDeviceID(id string) Option           { return func(s *Service) { s.deviceID = id } }

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(store *sensorstore.Store, ctrl controller.Commander, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ctrl:     ctrl,
		deviceID: "sprayer-1",
		now:      time.Now,
		logger:   log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.metrics.observeReading(store.Snapshot())
	s.metrics.observeStatus(ctrl.Status())
	return s
}

// ============== Sensors ==============

// RecordSensorReading applies a partial reading. It never fails.
func (s *Service) RecordSensorReading(patch entities.SensorPatch) entities.SensorReading {
	return s.record(patch, "api")
}

func (s *Service) record(patch entities.SensorPatch, source string) entities.SensorReading {
	r := s.store.Update(patch)
	s.metrics.sensorUpdate(source, r)
	return r
}

func (s *Service) CurrentSensorReading() entities.SensorReading {
	return s.store.Snapshot()
}

// ============== Assessment ==============

// Assess evaluates an assessment against the latest soil moisture, or the
// override carried by the request.
func (s *Service) Assess(req AssessRequest) Assessment {
	key, _ := entities.ParseDiseaseKey(req.DiseaseKey)
	return s.assess(entities.DiseaseAssessment{
		Disease:        key,
		Confidence:     req.Confidence,
		InfectionLevel: req.InfectionLevel,
	}, req.SoilMoisture)
}

func (s *Service) assess(a entities.DiseaseAssessment, override *float64) Assessment {
	moisture := s.store.Snapshot().SoilMoisture
	if override != nil {
		moisture = *override
	}
	rec := severity.Recommend(a)
	verdict := interlock.Check(moisture)

	out := Assessment{
		Timestamp:          s.now().UTC(),
		DiseaseDetected:    rec.Disease != entities.Healthy,
		Disease:            rec.Disease,
		DiseaseName:        rec.DiseaseName,
		DiseaseDescription: rec.Description,
		InfectionLevel:     rec.InfectionLevel,
		Severity:           rec.Severity,
		Confidence:         confidencePercent(a.Confidence),
		Pesticide:          rec.Pesticide,
		Dosage:             rec.Dosage,
		SprayDuration:      rec.SprayDuration,
		SprayRecommended:   rec.SprayRecommended && verdict.Safe,
		SprayAllowed:       verdict.Safe,
		SoilMoisture:       moisture,
		MoistureSafe:       verdict.Safe,
		SafetyReason:       verdict.Reason,
		Treatment:          rec.Treatment,
		Decision:           severity.Decide(rec.InfectionLevel, verdict),
		AlertMessage:       severity.AlertMessage(rec, verdict),
	}
	s.metrics.assessed(out)
	return out
}

// AnalyzeImage runs the image through the analyzer and assesses the result.
// Analyzer failures leave every piece of state untouched.
func (s *Service) AnalyzeImage(ctx context.Context, image []byte, soilMoisture *float64) (Assessment, error) {
	if len(image) == 0 {
		return Assessment{}, entities.NewInputError("image", "no image provided")
	}
	if err := checkMoisture(soilMoisture); err != nil {
		return Assessment{}, err
	}
	if s.analyzer == nil {
		return Assessment{}, fmt.Errorf("%w: no analyzer configured", analyzer.ErrAnalyzerUnavailable)
	}

	res, err := s.analyzer.Analyze(ctx, image)
	s.metrics.analyzerCall(err)
	if b, ok := s.analyzer.(interface{ BreakerState() string }); ok {
		s.metrics.breakerState("analyzer", b.BreakerState())
	}
	if err != nil {
		s.logger.Printf("sprayer: analyze failed: %v", err)
		return Assessment{}, err
	}
	return s.assess(res.Assessment(), soilMoisture), nil
}

// ============== Spray control ==============

// SubmitSprayCommand parses the command token and submits it.
func (s *Service) SubmitSprayCommand(ctx context.Context, req SprayCommandRequest) (entities.CommandResult, error) {
	cmd, err := entities.ParseCommand(req.Command)
	if err != nil {
		s.metrics.command(entities.CommandNone, "invalid")
		return entities.CommandResult{}, err
	}
	return s.SubmitCommand(ctx, cmd, controller.CommandOptions{Duration: req.Duration, SoilMoisture: req.SoilMoisture})
}

// SubmitCommand forwards to the controller and notifies the actuator of
// accepted transitions. A failed notification is logged; the transition
// stays applied.
func (s *Service) SubmitCommand(ctx context.Context, cmd entities.Command, opts controller.CommandOptions) (entities.CommandResult, error) {
	res, err := s.ctrl.SubmitCommand(ctx, cmd, opts)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidInput) {
			s.metrics.command(cmd, "invalid")
		}
		return res, err
	}

	s.metrics.observeStatus(res.Status)
	if !res.Accepted {
		s.metrics.command(cmd, "rejected")
		return res, nil
	}
	s.metrics.command(cmd, "accepted")

	if s.actuator != nil {
		ev := messages.SprayCommandEvent{
			DeviceID:  s.deviceID,
			TicketID:  res.TicketID,
			Command:   res.Command,
			NewState:  res.Status.State,
			Duration:  res.Status.RequestedDuration,
			Sequence:  res.Status.Sequence,
			Timestamp: res.Status.UpdatedAt,
		}
		if err := s.actuator.Actuate(ctx, ev); err != nil {
			s.metrics.actuatorError()
			s.logger.Printf("sprayer: actuator notify seq=%d failed: %v", ev.Sequence, err)
		}
	}
	return res, nil
}

// Status is the current spray system status.
func (s *Service) Status() entities.SprayStatus { return s.ctrl.Status() }

// SpraySystemStatus is an alias of Status for API symmetry.
func (s *Service) SpraySystemStatus() entities.SprayStatus { return s.Status() }

// --------------------- helpers ---------------------

func confidencePercent(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return math.Round(c*100*100) / 100
}

func checkMoisture(m *float64) error {
	if m != nil && (math.IsNaN(*m) || math.IsInf(*m, 0)) {
		return entities.NewInputError("soil_moisture", "soil moisture must be a number")
	}
	return nil
}
