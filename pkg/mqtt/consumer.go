package mqtt

import (
	"context"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/envmonitor/envmonitor/internal/logger"
)

// IConsumer is the subscriber loop contract the ingestion service depends on.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler func(topic string, message paho.Message) error)
}

// Consumer subscribes to one topic and hands every message to its handler.
// Messages are dispatched in broker-delivery order, one at a time.
type Consumer struct {
	client  paho.Client
	topic   string
	handler func(topic string, message paho.Message) error
}

// NewConsumer creates a Consumer bound to the shared client and topic.
func NewConsumer(client paho.Client, topic string, handler func(topic string, message paho.Message) error) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler func(topic string, message paho.Message) error) {
	c.handler = handler
}

// ConsumeMessage subscribes at QoS 1 and processes messages until the context
// is cancelled, then unsubscribes. A handler error is logged; it never stops
// the loop.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	log := logger.WithComponent("mqtt")

	token := c.client.Subscribe(c.topic, 1, func(_ paho.Client, message paho.Message) {
		if c.handler == nil {
			log.Warn().Str("topic", c.topic).Msg("no handler set, message dropped")
			return
		}
		if err := c.handler(c.topic, message); err != nil {
			log.Error().Err(err).Str("topic", c.topic).Msg("message handler error")
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", c.topic).Msg("subscribe failed")
		return
	}
	log.Info().Str("topic", c.topic).Msg("subscribed")

	<-ctx.Done()

	unsubToken := c.client.Unsubscribe(c.topic)
	unsubToken.Wait()
}
