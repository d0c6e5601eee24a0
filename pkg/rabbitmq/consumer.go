package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message received on the subscription topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is implemented by Consumer and MultiConsumer.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes one topic filter on a shared client.
type Consumer struct {
	client  mqtt.Client
	handler Handler
	topic   string
	logger  *log.Logger
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
		logger:  log.Default(),
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

func (c *Consumer) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// QosFor returns the subscription/publish QoS for a topic. Sensor data and
// spray commands are at-least-once; anything else is fire and forget.
func QosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/") ||
		strings.HasPrefix(t, "event/SprayCommand") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes and dispatches to the handler until ctx is done.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, QosFor(c.topic), c.dispatch)
	if token.Wait() && token.Error() != nil {
		c.logger.Printf("mqtt: subscribe %s failed: %v", c.topic, token.Error())
		return
	}
	c.logger.Printf("mqtt: subscribed to %s", c.topic)

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
}

func (c *Consumer) dispatch(_ mqtt.Client, message mqtt.Message) {
	if c.handler == nil {
		c.logger.Printf("mqtt: no handler set for topic %s", c.topic)
		return
	}
	if err := c.handler(message.Topic(), message); err != nil {
		c.logger.Printf("mqtt: handling message on %s: %v", message.Topic(), err)
	}
}

// MultiConsumer subscribes several topic filters with one handler.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	logger  *log.Logger
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		handler: handler,
		logger:  log.Default(),
	}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.handler = handler
}

func (m *MultiConsumer) SetLogger(l *log.Logger) {
	if l != nil {
		m.logger = l
	}
}

// ConsumeMessage subscribes every filter. A failed filter is logged and the
// others keep running until ctx is done.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	var subscribed []string
	for _, topic := range m.topics {
		c := &Consumer{client: m.client, topic: topic, handler: m.handler, logger: m.logger}
		token := m.client.Subscribe(topic, QosFor(topic), c.dispatch)
		if token.Wait() && token.Error() != nil {
			m.logger.Printf("mqtt: subscribe %s failed: %v", topic, token.Error())
			continue
		}
		m.logger.Printf("mqtt: subscribed to %s", topic)
		subscribed = append(subscribed, topic)
	}

	<-ctx.Done()

	if len(subscribed) > 0 {
		m.client.Unsubscribe(subscribed...).Wait()
	}
}
