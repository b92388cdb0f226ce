// Package control maps control events onto the playlist and compositor and
// runs the render loop that owns them.
package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a control event asks for.
type Kind string

const (
	KindNext           Kind = "next"
	KindPrevious       Kind = "previous"
	KindPowerOn        Kind = "on"
	KindPowerOff       Kind = "off"
	KindPowerToggle    Kind = "toggle"
	KindBrightnessUp   Kind = "brightness_up"
	KindBrightnessDown Kind = "brightness_down"
	KindSelect         Kind = "select"
	KindSetBrightness  Kind = "set_brightness"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindNext,
	KindPrevious,
	KindPowerOn,
	KindPowerOff,
	KindPowerToggle,
	KindBrightnessUp,
	KindBrightnessDown,
	KindSelect,
	KindSetBrightness,
}

var kindAliases = map[string]Kind{
	"prev":         KindPrevious,
	"power_on":     KindPowerOn,
	"power_off":    KindPowerOff,
	"power_toggle": KindPowerToggle,
	"up":           KindBrightnessUp,
	"down":         KindBrightnessDown,
	"brightness":   KindSetBrightness,
}

// ParseKind resolves a kind name, accepting a few short aliases.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown control event %q", s)
}

// Event is a single control request. Steps scales brightness steps and
// defaults to one; Index is used by select and Value by set_brightness.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Steps  int       `json:"steps,omitempty"`
	Index  int       `json:"index,omitempty"`
	Value  float64   `json:"value,omitempty"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent creates an event with a fresh ID stamped with the current time.
func NewEvent(kind Kind, source string) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Steps:  1,
		Source: source,
		At:     time.Now(),
	}
}

// steps is the step count to apply. Anything below one counts as one, so
// a brightness_up never dims the strip.
func (e Event) steps() int {
	if e.Steps < 1 {
		return 1
	}
	return e.Steps
}

func (e Event) String() string {
	switch e.Kind {
	case KindSelect:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Index)
	case KindSetBrightness:
		return fmt.Sprintf("%s(%.2f)", e.Kind, e.Value)
	case KindBrightnessUp, KindBrightnessDown:
		if s := e.steps(); s != 1 {
			return fmt.Sprintf("%s x%d", e.Kind, s)
		}
	}
	return string(e.Kind)
}
