// Package input turns raw switch gestures from the various sources into
// control events according to configured bindings.
package input

import (
	"fmt"
	"strconv"
	"strings"
)

// Button actions, named as the Hue v2 API reports them.
const (
	ActionPress        = "initial_press"
	ActionRepeat       = "repeat"
	ActionShortRelease = "short_release"
	ActionLongRelease  = "long_release"
	ActionLongPress    = "long_press"
)

// Rotary directions.
const (
	DirectionClockwise        = "clock_wise"
	DirectionCounterClockwise = "counter_clock_wise"
)

// Trigger is one gesture reported by a source.
type Trigger struct {
	// Source names the input that produced the trigger ("hue", "mqtt", ...).
	Source string
	// Device identifies the switch: a Hue resource ID, sensor name or MQTT
	// switch name.
	Device string
	// Button is the 1-based button number, 0 when unknown or for dials.
	Button int
	// Action is a button action or a rotary direction.
	Action string
	// Steps is the rotation amount for dials, 0 for buttons.
	Steps int
	// ID identifies the gesture for logging; it may be empty.
	ID string
}

func (t Trigger) String() string {
	var b strings.Builder
	b.WriteString(t.Source)
	b.WriteByte('/')
	b.WriteString(t.Device)
	if t.Button > 0 {
		fmt.Fprintf(&b, "#%d", t.Button)
	}
	b.WriteByte(' ')
	b.WriteString(t.Action)
	if t.Steps != 0 {
		fmt.Fprintf(&b, " x%d", t.Steps)
	}
	return b.String()
}

// v1 button event code suffixes.
var codeActions = map[int]string{
	0: ActionPress,
	1: ActionRepeat,
	2: ActionShortRelease,
	3: ActionLongRelease,
}

// DecodeButtonEvent splits a Hue v1 buttonevent code such as 1002 into the
// button number (the thousands) and the action (the last digit).
func DecodeButtonEvent(code int) (button int, action string, err error) {
	if code < 1000 {
		return 0, "", fmt.Errorf("invalid button event %d", code)
	}
	action, ok := codeActions[code%1000]
	if !ok {
		return 0, "", fmt.Errorf("unknown button event action in %d", code)
	}
	return code / 1000, action, nil
}

// ParseButtonEvent decodes a textual buttonevent code, as published on MQTT.
func ParseButtonEvent(s string) (button int, action string, err error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, "", fmt.Errorf("invalid button event %q: %w", s, err)
	}
	return DecodeButtonEvent(code)
}
