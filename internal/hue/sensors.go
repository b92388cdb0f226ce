package hue

import (
	"context"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/stripd/internal/input"
)

// SensorSource names triggers from v1 sensor polling.
const SensorSource = "hue_v1"

// Default polling settings.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultPollRPS      = 5.0
)

// SensorLister is the part of the v1 bridge API the poller uses.
type SensorLister interface {
	GetSensorsContext(ctx context.Context) ([]huego.Sensor, error)
}

type sensorReading struct {
	code    int
	updated string
}

// SensorPoller polls v1 switch sensors and reports new button events.
// Bridges without the v2 event stream only expose switches this way.
type SensorPoller struct {
	sensors  SensorLister
	interval time.Duration
	limiter  *rate.Limiter
	// names restricts polling to these sensor names; empty means all switches.
	names map[string]bool

	last    map[int]sensorReading
	primed  bool
	failing bool
}

// NewSensorPoller creates a poller. rps caps bridge requests per second.
func NewSensorPoller(sensors SensorLister, interval time.Duration, rps float64, names []string) *SensorPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if rps <= 0 {
		rps = DefaultPollRPS
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &SensorPoller{
		sensors:  sensors,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		names:    set,
		last:     make(map[int]sensorReading),
	}
}

// Run polls until ctx is cancelled.
func (p *SensorPoller) Run(ctx context.Context, h TriggerHandler) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("Polling Hue switch sensors")

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil
		}
		p.poll(ctx, h)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *SensorPoller) poll(ctx context.Context, h TriggerHandler) {
	sensors, err := p.sensors.GetSensorsContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !p.failing {
			log.Warn().Err(err).Msg("Failed to poll Hue sensors")
			p.failing = true
		}
		return
	}
	if p.failing {
		log.Info().Msg("Hue sensor polling recovered")
		p.failing = false
	}

	for _, t := range p.diff(sensors) {
		h.Handle(t)
	}
}

// diff records the latest readings and returns triggers for sensors whose
// button event changed since the previous poll. The first poll only
// records.
func (p *SensorPoller) diff(sensors []huego.Sensor) []input.Trigger {
	var out []input.Trigger
	for _, s := range sensors {
		if len(p.names) > 0 && !p.names[s.Name] {
			continue
		}
		code, ok := buttonEvent(s.State)
		if !ok {
			continue
		}
		updated, _ := s.State["lastupdated"].(string)
		reading := sensorReading{code: code, updated: updated}

		prev, seen := p.last[s.ID]
		p.last[s.ID] = reading
		if !p.primed || (seen && prev == reading) {
			continue
		}

		button, action, err := input.DecodeButtonEvent(code)
		if err != nil {
			log.Debug().Err(err).Str("sensor", s.Name).Msg("Ignoring sensor state")
			continue
		}
		out = append(out, input.Trigger{
			Source: SensorSource,
			Device: s.Name,
			Button: button,
			Action: action,
			ID:     updated,
		})
	}
	p.primed = true
	return out
}

func buttonEvent(state map[string]interface{}) (int, bool) {
	switch v := state["buttonevent"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
