package model

import (
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	SensorData        = messages.SensorData
	SprayCommandEvent = messages.SprayCommandEvent
	SensorReading     = entities.SensorReading
	SensorPatch       = entities.SensorPatch
	SprayStatus       = entities.SprayStatus
	CommandResult     = entities.CommandResult
)

const (
	StateIdle     = entities.StateIdle
	StateSpraying = entities.StateSpraying
	StateRejected = entities.StateRejected
)
