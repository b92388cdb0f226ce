package input

import (
	"fmt"

	"github.com/dokzlo13/stripd/internal/control"
)

// Binding maps triggers to a control event. Empty Device, zero Button and
// empty Action match anything.
type Binding struct {
	Device string `yaml:"device"`
	Button int    `yaml:"button"`
	Action string `yaml:"action"`
	Event  string `yaml:"event"`
	// Steps multiplies brightness events. Default 1.
	Steps int `yaml:"steps"`
	// Divisor scales dial rotation down to brightness steps. Default 1.
	Divisor int `yaml:"divisor"`
	// Index and Value parameterise select and set_brightness.
	Index int     `yaml:"index"`
	Value float64 `yaml:"value"`

	kind control.Kind
}

// Matches reports whether t fires b.
func (b *Binding) Matches(t Trigger) bool {
	if b.Device != "" && b.Device != t.Device {
		return false
	}
	if b.Button != 0 && b.Button != t.Button {
		return false
	}
	if b.Action != "" && b.Action != t.Action {
		return false
	}
	return true
}

// Build creates the control event b produces for t.
func (b *Binding) Build(t Trigger) control.Event {
	ev := control.NewEvent(b.kind, t.Source)
	steps := max(b.Steps, 1)
	if t.Steps != 0 {
		steps *= max(abs(t.Steps)/max(b.Divisor, 1), 1)
	}
	ev.Steps = steps
	ev.Index = b.Index
	ev.Value = b.Value
	return ev
}

// Bindings is an ordered binding table; the first match wins.
type Bindings []Binding

// Compile validates the event names. It must be called before Match.
func (bs Bindings) Compile() error {
	for i := range bs {
		kind, err := control.ParseKind(bs[i].Event)
		if err != nil {
			return fmt.Errorf("binding %d: %w", i+1, err)
		}
		bs[i].kind = kind
	}
	return nil
}

// Match returns the first binding t fires.
func (bs Bindings) Match(t Trigger) (*Binding, bool) {
	for i := range bs {
		if bs[i].Matches(t) {
			return &bs[i], true
		}
	}
	return nil, false
}

// DefaultBindings reproduces the stock dimmer switch layout: the top button
// moves to the next routine, the bottom one to the previous, the middle
// buttons and any dial change brightness.
func DefaultBindings() Bindings {
	bs := Bindings{
		{Button: 1, Action: ActionShortRelease, Event: string(control.KindNext)},
		{Button: 1, Action: ActionRepeat, Event: string(control.KindNext)},
		{Button: 4, Action: ActionShortRelease, Event: string(control.KindPrevious)},
		{Button: 4, Action: ActionRepeat, Event: string(control.KindPrevious)},
		{Button: 4, Action: ActionLongPress, Event: string(control.KindPowerOff)},
		{Button: 2, Action: ActionShortRelease, Event: string(control.KindBrightnessUp)},
		{Button: 2, Action: ActionRepeat, Event: string(control.KindBrightnessUp)},
		{Button: 3, Action: ActionShortRelease, Event: string(control.KindBrightnessDown)},
		{Button: 3, Action: ActionRepeat, Event: string(control.KindBrightnessDown)},
		{Action: DirectionClockwise, Event: string(control.KindBrightnessUp), Divisor: DefaultRotaryDivisor},
		{Action: DirectionCounterClockwise, Event: string(control.KindBrightnessDown), Divisor: DefaultRotaryDivisor},
	}
	if err := bs.Compile(); err != nil {
		panic(err)
	}
	return bs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
