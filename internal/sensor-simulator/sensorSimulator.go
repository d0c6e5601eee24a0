package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model"
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/interlock"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/dedup"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
)

// SprayStopper is the slice of the SprayControl gRPC client the station uses.
type SprayStopper interface {
	StopSpray(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// SensorSimulator plays a field station with a sprayer attached: it publishes
// readings and follows the spray commands addressed to its sprayer.
type SensorSimulator struct {
	mu        sync.Mutex
	stationID string
	sprayerID string
	timer     *time.Timer // single timer
	lastSeq   uint64
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	consumer  rabbitmq.IConsumer
	deduper   *dedup.Deduper
	guard     SprayStopper
	logger    *log.Logger
}

func NewSensorSimulator(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher,
	gen *DataGenerator, stationID, sprayerID string, logger *log.Logger) *SensorSimulator {
	if logger == nil {
		logger = log.Default()
	}
	return &SensorSimulator{
		stationID: stationID,
		sprayerID: sprayerID,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000), // TTL e cap
		logger:    logger,
	}
}

// SetGuard makes the station ask the sprayer to stop when spraying has
// pushed soil moisture above the safe window.
func (s *SensorSimulator) SetGuard(g SprayStopper) {
	s.guard = g
}

// Start listens for spray commands and publishes a reading every interval
// until ctx is done.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	s.consumer.SetHandler(s.handleMessage)
	go s.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			s.publisher.Close()
			return
		case <-ticker.C:
			if err := s.PublishOnce(); err != nil {
				s.logger.Printf("simulator: publish error: %v", err)
			}
		}
	}
}

// PublishOnce publishes the next reading.
func (s *SensorSimulator) PublishOnce() error {
	sd := s.generator.Next(s.stationID)
	s.logger.Printf("simulator: pub station=%s soil=%.1f%% spraying=%v", s.stationID, *sd.SoilMoisture, s.generator.Spraying())
	err := s.publisher.PublishMessage(sd)
	s.guardMoisture(*sd.SoilMoisture)
	return err
}

func (s *SensorSimulator) guardMoisture(m float64) {
	if s.guard == nil || !s.generator.Spraying() || m <= interlock.SafeWindow().Max {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := s.guard.StopSpray(ctx, nil); err != nil {
		s.logger.Printf("simulator: STOP request to %s failed: %v", s.sprayerID, err)
		return
	}
	s.logger.Printf("simulator: soil %.1f%% above %s, STOP requested on %s", m, interlock.SafeWindow(), s.sprayerID)
}

func (s *SensorSimulator) handleMessage(_ string, msg mqtt.Message) error {
	if s.deduper != nil && !s.deduper.ShouldProcess(dedup.Key(msg.Topic(), msg.Payload())) {
		return nil // duplicato → ignora
	}

	var evt model.SprayCommandEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		return fmt.Errorf("invalid SprayCommandEvent: %w", err)
	}
	if evt.DeviceID != s.sprayerID {
		return nil
	}
	s.apply(evt)
	return nil
}

// apply follows the pump state. Events older than the last applied one are
// dropped, so a late STOP cannot switch off a newer START. Sequence 1 is the
// first command of a freshly started sprayer and always resets the order.
func (s *SensorSimulator) apply(evt model.SprayCommandEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Sequence > 1 && evt.Sequence <= s.lastSeq {
		s.logger.Printf("simulator: stale command seq=%d (last %d) ignored", evt.Sequence, s.lastSeq)
		return
	}
	s.lastSeq = evt.Sequence

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	on := evt.NewState == entities.StateSpraying
	s.generator.SetSpraying(on)
	s.logger.Printf("simulator: sprayer %s → %s for %ds", s.sprayerID, evt.NewState, evt.Duration)

	// la pompa si ferma da sola allo scadere della durata
	if on && evt.Duration > 0 {
		seq := evt.Sequence
		s.timer = time.AfterFunc(time.Duration(evt.Duration)*time.Second, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.lastSeq != seq {
				return
			}
			s.generator.SetSpraying(false)
			s.logger.Printf("simulator: sprayer %s ↺ idle", s.sprayerID)
			s.timer = nil
		})
	}
}

func (s *SensorSimulator) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
