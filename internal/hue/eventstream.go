package hue

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/input"
)

// Source names triggers from the event stream.
const Source = "hue"

// TriggerHandler receives decoded switch gestures.
type TriggerHandler interface {
	Handle(t input.Trigger) bool
}

// ErrMaxReconnectsExceeded is returned when the maximum number of reconnect attempts is exceeded.
var ErrMaxReconnectsExceeded = errors.New("max reconnects exceeded")

// EventStreamConfig contains configuration for event stream reconnection.
type EventStreamConfig struct {
	MinBackoff    time.Duration // Minimum backoff between reconnects
	MaxBackoff    time.Duration // Maximum backoff between reconnects
	Multiplier    float64       // Backoff multiplier
	MaxReconnects int           // Max reconnect attempts, 0 = infinite
}

// DefaultEventStreamConfig returns sensible defaults for event stream configuration.
func DefaultEventStreamConfig() EventStreamConfig {
	return EventStreamConfig{
		MinBackoff:    1 * time.Second,
		MaxBackoff:    2 * time.Minute,
		Multiplier:    2.0,
		MaxReconnects: 0, // infinite
	}
}

// EventStream listens to the Hue event stream (SSE)
type EventStream struct {
	client     *Client
	httpClient *http.Client
	config     EventStreamConfig
}

// NewEventStream creates a new event stream listener
func NewEventStream(client *Client) *EventStream {
	return NewEventStreamWithConfig(client, DefaultEventStreamConfig())
}

// NewEventStreamWithConfig creates a new event stream listener with custom configuration
func NewEventStreamWithConfig(client *Client, config EventStreamConfig) *EventStream {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &EventStream{
		client: client,
		httpClient: &http.Client{
			Transport: transport,
			// No timeout for SSE - it's a long-lived connection
		},
		config: config,
	}
}

// Run starts listening to the event stream with automatic reconnection.
// Returns ErrMaxReconnectsExceeded if max reconnects is exceeded.
func (e *EventStream) Run(ctx context.Context, h TriggerHandler) error {
	retryCount := 0
	currentBackoff := e.config.MinBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := e.connect(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			retryCount++

			// Check if we exceeded max reconnects
			if e.config.MaxReconnects > 0 && retryCount > e.config.MaxReconnects {
				log.Error().
					Int("max_reconnects", e.config.MaxReconnects).
					Msg("Event stream: max reconnects exceeded, terminating")
				return ErrMaxReconnectsExceeded
			}

			log.Warn().
				Err(err).
				Dur("backoff", currentBackoff).
				Int("retry", retryCount).
				Int("max_reconnects", e.config.MaxReconnects).
				Msg("Event stream disconnected, reconnecting")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(currentBackoff):
			}

			// Calculate next backoff with multiplier, capped at max
			nextBackoff := time.Duration(float64(currentBackoff) * e.config.Multiplier)
			if nextBackoff > e.config.MaxBackoff {
				nextBackoff = e.config.MaxBackoff
			}
			currentBackoff = nextBackoff

			continue
		}

		// Reset retry count and backoff on successful connection
		retryCount = 0
		currentBackoff = e.config.MinBackoff
	}
}

func (e *EventStream) connect(ctx context.Context, h TriggerHandler) error {
	url := fmt.Sprintf("https://%s/eventstream/clip/v2", e.client.Address())

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("hue-application-key", e.client.token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	log.Info().Msg("Connected to Hue event stream")

	scanner := bufio.NewScanner(resp.Body)
	var dataBuffer strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// Handle intro message
		if line == ": hi" {
			log.Debug().Msg("Received event stream greeting")
			continue
		}

		// Empty line marks end of event
		if line == "" {
			if dataBuffer.Len() > 0 {
				e.processEvent(dataBuffer.String(), h)
				dataBuffer.Reset()
			}
			continue
		}

		// Collect data lines
		if strings.HasPrefix(line, "data: ") {
			dataBuffer.WriteString(strings.TrimPrefix(line, "data: "))
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

func (e *EventStream) processEvent(data string, h TriggerHandler) {
	var events []streamEvent
	if err := json.Unmarshal([]byte(data), &events); err != nil {
		log.Warn().Err(err).Str("data", data).Msg("Failed to parse event")
		return
	}

	for _, event := range events {
		e.handleEvent(event, h)
	}
}

func (e *EventStream) handleEvent(event streamEvent, h TriggerHandler) {
	for _, item := range event.Data {
		switch item.Type {
		case "button":
			e.handleButtonEvent(item, h)

		case "relative_rotary":
			e.handleRotaryEvent(item, h)

		case "zigbee_connectivity":
			log.Debug().
				Str("id", item.ID).
				Str("status", item.Status).
				Msg("Connectivity event")

		default:
			log.Trace().
				Str("event_type", event.Type).
				Str("item_type", item.Type).
				Str("id", item.ID).
				Msg("Unhandled event type")
		}
	}
}

// device resolves the switch a resource belongs to, falling back to the
// resource itself.
func (e *EventStream) device(item streamItem) string {
	if item.Owner != nil && item.Owner.RID != "" {
		return item.Owner.RID
	}
	if b, ok := e.client.Button(item.ID); ok && b.Device != "" {
		return b.Device
	}
	return item.ID
}

func (e *EventStream) handleButtonEvent(item streamItem, h TriggerHandler) {
	if item.Button == nil {
		return
	}

	action := item.Button.LastEvent
	var updated string
	if report := item.Button.ButtonReport; report != nil {
		action = report.Event
		updated = report.Updated
	}
	if action == "" {
		return
	}

	var number int
	if b, ok := e.client.Button(item.ID); ok {
		number = b.Number
	}

	// Generate a unique event ID from resource ID and timestamp
	eventID := fmt.Sprintf("%s-%s", item.ID, updated)

	log.Debug().
		Str("id", item.ID).
		Int("button", number).
		Str("action", action).
		Str("event_id", eventID).
		Msg("Button event")

	h.Handle(input.Trigger{
		Source: Source,
		Device: e.device(item),
		Button: number,
		Action: action,
		ID:     eventID,
	})
}

func (e *EventStream) handleRotaryEvent(item streamItem, h TriggerHandler) {
	rotary := item.RelativeRotary
	if rotary == nil || rotary.LastEvent == nil {
		return
	}

	rotation := rotary.LastEvent.Rotation
	if rotation.Direction == "" || rotation.Steps == 0 {
		return
	}

	var updated string
	if rotary.RotaryReport != nil {
		updated = rotary.RotaryReport.Updated
	}
	eventID := fmt.Sprintf("%s-%s", item.ID, updated)

	log.Debug().
		Str("id", item.ID).
		Str("action", rotary.LastEvent.Action).
		Str("direction", rotation.Direction).
		Int("steps", rotation.Steps).
		Str("event_id", eventID).
		Msg("Rotary event")

	h.Handle(input.Trigger{
		Source: Source,
		Device: e.device(item),
		Action: rotation.Direction,
		Steps:  rotation.Steps,
		ID:     eventID,
	})
}
