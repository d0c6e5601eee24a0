package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model"
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// ====== Tunables ======
const (
	// wetPerSec: +0.4% di umidità del suolo al secondo mentre la pompa spruzza.
	wetPerSec = 0.4

	// defaultDryPerMin: -0.05% al minuto a pompa ferma.
	defaultDryPerMin = 0.05

	// escursione termica giornaliera attorno alla media.
	tempMean, tempSwing = 24.0, 6.0
	humMean, humSwing   = 60.0, 15.0
)

// DataGenerator keeps the simulated field state and advances it in time.
type DataGenerator struct {
	mu        sync.Mutex
	last      time.Time
	moisture  float64 // %
	dryPerMin float64
	spraying  bool
	now       func() time.Time
	rnd       *rand.Rand
}

// NewDataGenerator starts from the given soil moisture. dryPerMin <= 0 uses the default.
func NewDataGenerator(seedMoisture, dryPerMin float64) *DataGenerator {
	if dryPerMin <= 0 {
		dryPerMin = defaultDryPerMin
	}
	return &DataGenerator{
		moisture:  clampPct(seedMoisture),
		dryPerMin: dryPerMin,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock and a fixed seed make the generator deterministic.
func (g *DataGenerator) WithClock(now func() time.Time, seed int64) *DataGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	g.rnd = rand.New(rand.NewSource(seed))
	return g
}

// SetSpraying switches the wetting term on or off. Time elapsed so far is
// accounted with the previous state.
func (g *DataGenerator) SetSpraying(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advance(g.now().UTC())
	g.spraying = on
}

func (g *DataGenerator) Spraying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spraying
}

// Next advances the state and returns the reading to publish.
func (g *DataGenerator) Next(deviceID string) model.SensorData {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	g.advance(now)

	hour := float64(now.Hour()) + float64(now.Minute())/60
	phase := math.Sin((hour - 9) / 24 * 2 * math.Pi) // picco nel primo pomeriggio
	temp := tempMean + tempSwing*phase + g.rnd.NormFloat64()*0.3
	hum := clampPct(humMean - humSwing*phase + g.rnd.NormFloat64())

	return model.SensorData{
		DeviceID:     deviceID,
		Temperature:  entities.Float(round1(temp)),
		Humidity:     entities.Float(round1(hum)),
		SoilMoisture: entities.Float(round1(g.moisture)),
		Timestamp:    now,
	}
}

func (g *DataGenerator) advance(now time.Time) {
	if g.last.IsZero() {
		g.last = now
		return
	}
	dt := now.Sub(g.last)
	if dt < 0 {
		dt = 0
	}
	if g.spraying {
		g.moisture = clampPct(g.moisture + wetPerSec*dt.Seconds())
	} else {
		g.moisture = clampPct(g.moisture - g.dryPerMin*dt.Minutes())
	}
	g.last = now
}

// ===== Helpers =====

func clampPct(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
