package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/config"
	"github.com/dokzlo13/stripd/internal/hue"
)

// HueService wraps the Hue bridge client and the switch source for the
// configured mode: the v2 event stream or v1 sensor polling.
type HueService struct {
	cfg *config.Config

	Client      *hue.Client
	EventStream *hue.EventStream
	Poller      *hue.SensorPoller
}

// NewHueService creates a new HueService with all components initialized but not connected.
func NewHueService(cfg *config.Config) *HueService {
	hc := cfg.Inputs.Hue

	// Initialize Hue client with configured timeout
	client := hue.NewClient(hc.Bridge, hc.Token, hc.Timeout.Duration())

	s := &HueService{
		cfg:    cfg,
		Client: client,
	}

	if hc.Mode == config.HueModePoll {
		s.Poller = hue.NewSensorPoller(client.Bridge(), hc.PollInterval.Duration(), hc.PollRPS, hc.Sensors)
		return s
	}

	// Initialize event stream with retry configuration
	eventStreamConfig := hue.EventStreamConfig{
		MinBackoff:    hc.MinRetryBackoff.Duration(),
		MaxBackoff:    hc.MaxRetryBackoff.Duration(),
		Multiplier:    hc.RetryMultiplier,
		MaxReconnects: hc.MaxReconnects,
	}
	s.EventStream = hue.NewEventStreamWithConfig(client, eventStreamConfig)
	return s
}

// Start connects to the Hue bridge. Only the event stream needs the v2
// button index; polling talks to the v1 API directly.
func (s *HueService) Start(ctx context.Context) error {
	if s.EventStream == nil {
		log.Info().Str("bridge", s.cfg.Inputs.Hue.Bridge).Msg("Polling Hue switch sensors")
		return nil
	}
	return s.Client.Connect(ctx)
}

// StartBackground starts the switch source goroutine.
// The optional onFatalError callback is called when a fatal error occurs (e.g., max reconnects exceeded).
func (s *HueService) StartBackground(ctx context.Context, h hue.TriggerHandler, onFatalError func(error)) {
	if s.Poller != nil {
		go func() {
			if err := s.Poller.Run(ctx, h); err != nil {
				log.Error().Err(err).Msg("Hue sensor poller error")
			}
		}()
		return
	}

	// Start event stream listener
	go func() {
		if err := s.EventStream.Run(ctx, h); err != nil {
			if err == hue.ErrMaxReconnectsExceeded {
				log.Error().Msg("Event stream: max reconnects exceeded, triggering shutdown")
				if onFatalError != nil {
					onFatalError(err)
				}
			} else {
				log.Error().Err(err).Msg("Event stream error")
			}
		}
	}()
}

// Close releases all resources.
func (s *HueService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
