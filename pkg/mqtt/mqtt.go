// Package mqtt wraps the paho client with connection retry and a single-topic
// consumer loop.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/envmonitor/envmonitor/internal/logger"
)

// Config addresses one MQTT broker.
type Config struct {
	Broker   string
	Port     int
	User     string
	Password string
	ClientID string
}

// NewConn connects to the broker, retrying with exponential backoff. The
// returned client reconnects on its own after transient drops; messages
// published during an outage are not replayed. The connection is closed when
// ctx is cancelled.
func NewConn(cfg *Config, ctx context.Context) (paho.Client, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
	log := logger.WithComponent("mqtt")

	opts := paho.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("broker connection lost, client will reconnect")
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		log.Info().Str("broker", connAddr).Msg("connected to broker")
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := 5

	var client paho.Client
	err := backoff.Retry(func() error {
		client = paho.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Msg("broker connect attempt failed")
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Info().Msg("broker connection closed")
	}()

	return client, nil
}

// CloseConn disconnects the client if it is still connected.
func CloseConn(client paho.Client) {
	if client.IsConnected() {
		client.Disconnect(250)
	}
}
