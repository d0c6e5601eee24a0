package messages

import (
	"time"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// SprayCommandEvent is published to the actuator after every accepted
// transition. Sequence grows by one per processed command, so a driver can
// drop events that arrive out of order.
type SprayCommandEvent struct {
	DeviceID  string              `json:"device_id"`
	TicketID  string              `json:"ticket_id"`
	Command   entities.Command    `json:"command"`
	NewState  entities.SprayState `json:"new_state"`
	Duration  int                 `json:"duration"` // seconds
	Sequence  uint64              `json:"sequence"`
	Timestamp time.Time           `json:"timestamp"`
}
