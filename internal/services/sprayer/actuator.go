package sprayer

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sprayer_project/pkg/rabbitmq"
)

// CommandTopic expands the {device} placeholder of a topic template.
func CommandTopic(template, deviceID string) string {
	return strings.ReplaceAll(template, "{device}", deviceID)
}

// MQTTActuator publishes transitions on the device command topic (QoS 1).
type MQTTActuator struct {
	pub *rabbitmq.Publisher
}

var _ Actuator = (*MQTTActuator)(nil)

func NewMQTTActuator(client mqtt.Client, topicTemplate, deviceID string) *MQTTActuator {
	return &MQTTActuator{pub: rabbitmq.NewPublisher(client, CommandTopic(topicTemplate, deviceID))}
}

func (a *MQTTActuator) Topic() string { return a.pub.Topic() }

func (a *MQTTActuator) Actuate(ctx context.Context, ev messages.SprayCommandEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.pub.PublishMessage(ev)
}
