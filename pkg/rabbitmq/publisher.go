package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes to a fixed topic.
type IPublisher interface {
	PublishMessage(message any) error
	Close()
}

// Publisher holds the client and the topic it publishes to.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *log.Logger
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    QosFor(topic),
		logger: log.Default(),
	}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage sends strings and byte slices as they are and anything else
// as JSON.
func (p *Publisher) PublishMessage(message any) error {
	return PublishTo(p.client, p.topic, p.qos, message)
}

// PublishTo publishes one message and waits for the broker acknowledgement.
func PublishTo(client mqtt.Client, topic string, qos byte, message any) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", topic, err)
		}
		payload = b
	}

	token := client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Println("mqtt: publisher disconnected")
	}
}
