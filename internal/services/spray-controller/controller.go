package spray_controller

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/interlock"
)

// DefaultSprayDuration is used when a START carries no explicit duration (seconds).
const DefaultSprayDuration = 5

// SensorSnapshotter is the read side of the sensor store.
type SensorSnapshotter interface {
	Snapshot() entities.SensorReading
}

// CommandOptions are the optional parameters of a command.
type CommandOptions struct {
	Duration     *int     // seconds, START only
	SoilMoisture *float64 // overrides the stored reading, START only
}

// Commander is what the transports need from the control path.
type Commander interface {
	SubmitCommand(ctx context.Context, cmd entities.Command, opts CommandOptions) (entities.CommandResult, error)
	Status() entities.SprayStatus
}

// ===================== Controller =====================

// Controller owns the sprayer status. Commands are applied one at a time
// under mu, so transitions form a total order; readers load the last fully
// applied status without taking the lock.
type Controller struct {
	sensors SensorSnapshotter

	mu     sync.Mutex
	status atomic.Pointer[entities.SprayStatus]

	now       func() time.Time
	newTicket func() string
	logger    *log.Logger
}

var _ Commander = (*Controller)(nil)

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTicketGenerator replaces the uuid ticket source.
func WithTicketGenerator(f func() string) Option {
	return func(c *Controller) {
		if f != nil {
			c.newTicket = f
		}
	}
}

func NewController(sensors SensorSnapshotter, opts ...Option) *Controller {
	c := &Controller{
		sensors:   sensors,
		now:       time.Now,
		newTicket: func() string { return uuid.New().String() },
		logger:    log.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	initial := entities.SprayStatus{State: entities.StateIdle, UpdatedAt: c.now().UTC()}
	c.status.Store(&initial)
	return c
}

// Status returns the current status. It never blocks.
func (c *Controller) Status() entities.SprayStatus {
	return *c.status.Load()
}

// SubmitCommand applies START or STOP.
//
// A START is checked against the interlock using the explicit moisture when
// given, otherwise the current sensor snapshot. A refused START leaves the
// pump as it was and only records REJECTED as last command. STOP is never
// gated and ignores any options. Malformed input returns an
// *entities.InputError and changes nothing.
func (c *Controller) SubmitCommand(_ context.Context, cmd entities.Command, opts CommandOptions) (entities.CommandResult, error) {
	if err := validate(cmd, opts); err != nil {
		return entities.CommandResult{}, err
	}

	c.mu.Lock()
	prev := *c.status.Load()
	now := c.now().UTC()

	next := prev
	next.Sequence = prev.Sequence + 1
	next.UpdatedAt = now

	res := entities.CommandResult{Command: cmd, TicketID: c.newTicket()}

	switch cmd {
	case entities.CommandStart:
		moisture := c.resolveMoisture(opts)
		res.SoilMoisture = &moisture

		verdict := interlock.Check(moisture)
		if !verdict.Safe {
			next.LastCommand = entities.CommandRejected
			res.State = entities.StateRejected
			res.Reason = verdict.Reason
			break
		}

		duration := DefaultSprayDuration
		if opts.Duration != nil {
			duration = *opts.Duration
		}
		startedAt := now
		next.State = entities.StateSpraying
		next.LastCommand = entities.CommandStart
		next.RequestedDuration = duration
		next.StartedAt = &startedAt
		res.Accepted = true
		res.State = entities.StateSpraying

	case entities.CommandStop:
		next.State = entities.StateIdle
		next.LastCommand = entities.CommandStop
		next.RequestedDuration = 0
		next.StartedAt = nil
		res.Accepted = true
		res.State = entities.StateIdle
	}

	c.status.Store(&next)
	c.mu.Unlock()

	res.Status = next
	if res.Accepted {
		c.logger.Printf("controller: %s accepted seq=%d state=%s duration=%ds", cmd, next.Sequence, next.State, next.RequestedDuration)
	} else {
		c.logger.Printf("controller: %s rejected seq=%d pump=%s reason=%q", cmd, next.Sequence, next.State, res.Reason)
	}
	return res, nil
}

// resolveMoisture must run under mu so the check uses one consistent value.
func (c *Controller) resolveMoisture(opts CommandOptions) float64 {
	if opts.SoilMoisture != nil {
		return *opts.SoilMoisture
	}
	return c.sensors.Snapshot().SoilMoisture
}

// --------------------- small helpers ---------------------

func validate(cmd entities.Command, opts CommandOptions) error {
	switch cmd {
	case entities.CommandStart:
	case entities.CommandStop:
		// STOP takes no options; whatever came along is ignored.
		return nil
	default:
		return entities.NewInputError("command", "invalid command %q, use START or STOP", string(cmd))
	}
	if opts.Duration != nil && *opts.Duration <= 0 {
		return entities.NewInputError("duration", "duration must be a positive number of seconds, got %d", *opts.Duration)
	}
	if m := opts.SoilMoisture; m != nil && (math.IsNaN(*m) || math.IsInf(*m, 0)) {
		return entities.NewInputError("soil_moisture", "soil moisture must be a number")
	}
	return nil
}
