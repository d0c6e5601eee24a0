package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SprayState is the commanded state of the sprayer pump.
type SprayState string

const (
	StateIdle     SprayState = "idle"
	StateSpraying SprayState = "spraying"
	// StateRejected only appears on a CommandResult: the stored status of
	// the pump never holds it.
	StateRejected SprayState = "rejected"
)

// Command is a control instruction for the pump.
type Command string

const (
	CommandNone     Command = ""
	CommandStart    Command = "START"
	CommandStop     Command = "STOP"
	CommandRejected Command = "REJECTED"
)

// MaxDurationSeconds bounds a requested spray duration so it fits any int.
const MaxDurationSeconds = math.MaxInt32

// DurationSeconds converts a decoded JSON number into whole seconds. Sign is
// left to the controller; fractions, NaN and out-of-range values are refused.
func DurationSeconds(v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, NewInputError("duration", "duration must be a whole number of seconds")
	}
	if math.Abs(v) > MaxDurationSeconds {
		return 0, NewInputError("duration", "duration out of range, at most %d seconds", MaxDurationSeconds)
	}
	return int(v), nil
}

// ParseCommand accepts START or STOP in any case, surrounding blanks ignored.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToUpper(strings.TrimSpace(s))); c {
	case CommandStart, CommandStop:
		return c, nil
	default:
		return CommandNone, NewInputError("command", "invalid command %q, use START or STOP", s)
	}
}

// SprayStatus is the single authoritative record of the actuator.
type SprayStatus struct {
	State             SprayState `json:"state"`
	LastCommand       Command    `json:"last_command,omitempty"`
	RequestedDuration int        `json:"spray_duration"` // seconds
	StartedAt         *time.Time `json:"last_spray_time,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Sequence          uint64     `json:"sequence"`
}

// IsSpraying reports whether the pump is commanded on.
func (s SprayStatus) IsSpraying() bool { return s.State == StateSpraying }

// CommandResult is the outcome of one submitted command.
type CommandResult struct {
	Command      Command     `json:"command"`
	Accepted     bool        `json:"success"`
	State        SprayState  `json:"state"`
	Reason       string      `json:"reason,omitempty"`
	SoilMoisture *float64    `json:"soil_moisture,omitempty"`
	Status       SprayStatus `json:"spray_status"`
	TicketID     string      `json:"ticket_id,omitempty"`
}

// Message is the operator-facing summary of the outcome.
func (r CommandResult) Message() string {
	switch {
	case !r.Accepted:
		return r.Reason + ". Cannot spray."
	case r.Command == CommandStart:
		return fmt.Sprintf("Spray started for %d seconds", r.Status.RequestedDuration)
	default:
		return "Spray stopped"
	}
}
