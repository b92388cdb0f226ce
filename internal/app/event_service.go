package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/config"
	"github.com/dokzlo13/stripd/internal/control"
	"github.com/dokzlo13/stripd/internal/eventbus"
	"github.com/dokzlo13/stripd/internal/input"
	"github.com/dokzlo13/stripd/internal/ledger"
	"github.com/dokzlo13/stripd/internal/mqtt"
)

// EventService connects the input sources to the render loop. Sources feed
// the router, the router publishes control events on the bus and the bus
// hands them to the engine queue and the ledger.
type EventService struct {
	cfg    *config.Config
	bus    *eventbus.Bus
	engine *control.Engine
	ledger *ledger.Ledger // nil when the ledger is disabled

	Router *input.Router
	MQTT   *mqtt.Subscriber
}

// NewEventService creates a new EventService.
func NewEventService(cfg *config.Config, bus *eventbus.Bus, engine *control.Engine, l *ledger.Ledger) *EventService {
	s := &EventService{
		cfg:    cfg,
		bus:    bus,
		engine: engine,
		ledger: l,
		Router: input.NewRouter(cfg.Inputs.Bindings, bus, cfg.Inputs.RotaryDebounce.Duration()),
	}

	if mc := cfg.Inputs.MQTT; mc.Enabled {
		s.MQTT = mqtt.New(mqtt.Config{
			Broker:   mc.Broker,
			ClientID: mc.ClientID,
			Username: mc.Username,
			Password: mc.Password,
			Topic:    mc.Topic,
			QoS:      mc.QoS,
		})
	}
	return s
}

// Start sets up all event handlers and starts the MQTT source.
func (s *EventService) Start(ctx context.Context) {
	s.bus.SubscribeAll(s.handle)

	if s.MQTT != nil {
		go func() {
			if err := s.MQTT.Run(ctx, s.Router); err != nil {
				log.Error().Err(err).Msg("MQTT subscriber error")
			}
		}()
	}
}

// handle passes an event to the ledger and the engine. With the ledger
// enabled an event ID is applied at most once, so a client retrying a
// request with the same ID does not step the playlist twice.
func (s *EventService) handle(ev control.Event) {
	log.Debug().
		Str("event_id", ev.ID).
		Str("source", ev.Source).
		Str("event", ev.String()).
		Msg("Control event")

	if s.ledger != nil {
		if s.ledger.Has(ev.ID) {
			log.Info().Str("event_id", ev.ID).Str("source", ev.Source).Msg("Duplicate control event, skipping")
			return
		}
		if err := s.ledger.Record(ev); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to record control event")
		}
	}

	s.engine.Submit(ev)
}

// Close flushes pending dial rotation and drains the bus.
func (s *EventService) Close(timeout time.Duration) {
	s.Router.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.bus.Close(ctx)
}
