// Package sensorstore keeps the latest environmental reading of the field station.
package sensorstore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// Store holds one reading. Writers are serialised so that two partial updates
// never lose each other's fields; readers load the published pointer and never
// block or observe a half-written reading.
type Store struct {
	writeMu sync.Mutex
	latest  atomic.Pointer[entities.SensorReading]
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for ObservedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInitial seeds the store with a reading instead of the station defaults.
func WithInitial(r entities.SensorReading) Option {
	return func(s *Store) {
		rr := r
		s.latest.Store(&rr)
	}
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.latest.Load() == nil {
		r := entities.DefaultSensorReading(s.now().UTC())
		s.latest.Store(&r)
	}
	return s
}

// Update merges the patch into the current reading and stamps it with the
// update time. It always succeeds: values are recorded as sent.
func (s *Store) Update(p entities.SensorPatch) entities.SensorReading {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := p.ApplyTo(*s.latest.Load(), s.now().UTC())
	s.latest.Store(&next)
	return next
}

// Snapshot returns a copy of the current reading.
func (s *Store) Snapshot() entities.SensorReading {
	return *s.latest.Load()
}
