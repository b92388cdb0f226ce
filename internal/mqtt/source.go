// Package mqtt receives switch button events published on an MQTT broker,
// for example by a zigbee2mqtt or Hue bridge relay.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/input"
)

// Source names triggers from MQTT.
const Source = "mqtt"

// Defaults.
const (
	DefaultTopic          = "hue/+/buttonevent"
	DefaultClientID       = "stripd"
	DefaultConnectTimeout = 10 * time.Second
)

// TriggerHandler receives decoded switch gestures.
type TriggerHandler interface {
	Handle(t input.Trigger) bool
}

// Config configures the MQTT source.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
}

// Subscriber listens for buttonevent messages.
type Subscriber struct {
	cfg Config
}

// New creates a subscriber, filling in defaults.
func New(cfg Config) *Subscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Subscriber{cfg: cfg}
}

// Run connects to the broker and delivers triggers until ctx is cancelled.
// The client reconnects and resubscribes on its own after the first
// connection.
func (s *Subscriber) Run(ctx context.Context, h TriggerHandler) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetOrderMatters(true)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Info().Str("broker", s.cfg.Broker).Str("topic", s.cfg.Topic).Msg("Connected to MQTT broker")
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ paho.Client, m paho.Message) {
			s.handle(m.Topic(), m.Payload(), h)
		})
		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				log.Error().Err(err).Str("topic", s.cfg.Topic).Msg("MQTT subscribe failed")
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost, reconnecting")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)
	}

	<-ctx.Done()
	client.Disconnect(250)
	log.Info().Msg("MQTT subscriber stopped")
	return nil
}

func (s *Subscriber) handle(topic string, payload []byte, h TriggerHandler) {
	t, err := ParseMessage(s.cfg.Topic, topic, payload)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Ignoring MQTT message")
		return
	}
	log.Debug().Str("topic", topic).Stringer("trigger", t).Msg("Button event")
	h.Handle(t)
}

// ParseMessage decodes a buttonevent message. The switch name is the topic
// level matched by the first wildcard of pattern, or the whole topic when
// pattern has none.
func ParseMessage(pattern, topic string, payload []byte) (input.Trigger, error) {
	button, action, err := input.ParseButtonEvent(string(payload))
	if err != nil {
		return input.Trigger{}, err
	}
	return input.Trigger{
		Source: Source,
		Device: deviceFromTopic(pattern, topic),
		Button: button,
		Action: action,
	}, nil
}

func deviceFromTopic(pattern, topic string) string {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, level := range pp {
		if i >= len(tp) {
			break
		}
		switch level {
		case "+":
			return tp[i]
		case "#":
			return strings.Join(tp[i:], "/")
		}
	}
	return topic
}
