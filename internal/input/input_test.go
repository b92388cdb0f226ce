package input

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/control"
)

func TestDecodeButtonEvent(t *testing.T) {
	tests := []struct {
		code       int
		wantButton int
		wantAction string
		wantErr    bool
	}{
		{1000, 1, ActionPress, false},
		{1001, 1, ActionRepeat, false},
		{1002, 1, ActionShortRelease, false},
		{4003, 4, ActionLongRelease, false},
		{2002, 2, ActionShortRelease, false},
		{999, 0, "", true},
		{1004, 0, "", true},
	}

	for _, tt := range tests {
		button, action, err := DecodeButtonEvent(tt.code)
		if tt.wantErr {
			assert.Error(t, err, "code %d", tt.code)
			continue
		}
		require.NoError(t, err, "code %d", tt.code)
		assert.Equal(t, tt.wantButton, button)
		assert.Equal(t, tt.wantAction, action)
	}
}

func TestParseButtonEvent(t *testing.T) {
	button, action, err := ParseButtonEvent(" 4002\n")
	require.NoError(t, err)
	assert.Equal(t, 4, button)
	assert.Equal(t, ActionShortRelease, action)

	_, _, err = ParseButtonEvent("pressed")
	assert.Error(t, err)
}

func TestDefaultBindings(t *testing.T) {
	bs := DefaultBindings()

	tests := []struct {
		name    string
		trigger Trigger
		want    control.Kind
		ok      bool
	}{
		{"top short", Trigger{Button: 1, Action: ActionShortRelease}, control.KindNext, true},
		{"top hold", Trigger{Button: 1, Action: ActionRepeat}, control.KindNext, true},
		{"top press ignored", Trigger{Button: 1, Action: ActionPress}, "", false},
		{"bottom short", Trigger{Button: 4, Action: ActionShortRelease}, control.KindPrevious, true},
		{"bottom long press", Trigger{Button: 4, Action: ActionLongPress}, control.KindPowerOff, true},
		{"up", Trigger{Button: 2, Action: ActionShortRelease}, control.KindBrightnessUp, true},
		{"down hold", Trigger{Button: 3, Action: ActionRepeat}, control.KindBrightnessDown, true},
		{"dial", Trigger{Action: DirectionCounterClockwise, Steps: 30}, control.KindBrightnessDown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := bs.Match(tt.trigger)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, b.Build(tt.trigger).Kind)
			}
		})
	}
}

func TestBindingBuild(t *testing.T) {
	bs := Bindings{
		{Device: "kitchen", Button: 2, Event: "brightness_up", Steps: 2},
		{Action: DirectionClockwise, Event: "up", Divisor: 10},
		{Button: 1, Event: "select", Index: 3},
		{Button: 4, Event: "set_brightness", Value: 0.2},
	}
	require.NoError(t, bs.Compile())

	ev := bs[0].Build(Trigger{Source: "mqtt", Device: "kitchen", Button: 2})
	assert.Equal(t, control.KindBrightnessUp, ev.Kind)
	assert.Equal(t, 2, ev.Steps)
	assert.Equal(t, "mqtt", ev.Source)
	assert.NotEmpty(t, ev.ID)

	_, ok := bs.Match(Trigger{Device: "hall", Button: 2})
	assert.False(t, ok)

	assert.Equal(t, 4, bs[1].Build(Trigger{Action: DirectionClockwise, Steps: 45}).Steps)
	assert.Equal(t, 1, bs[1].Build(Trigger{Action: DirectionClockwise, Steps: 3}).Steps)
	assert.Equal(t, 3, bs[2].Build(Trigger{Button: 1}).Index)
	assert.Equal(t, 0.2, bs[3].Build(Trigger{Button: 4}).Value)

	bad := Bindings{{Event: "explode"}}
	assert.Error(t, bad.Compile())
}

type collector struct {
	mu     sync.Mutex
	events []control.Event
}

func (c *collector) Publish(ev control.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *collector) all() []control.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]control.Event(nil), c.events...)
}

func TestRouter_Buttons(t *testing.T) {
	c := &collector{}
	r := NewRouter(DefaultBindings(), c, DefaultRotaryDebounce)

	assert.True(t, r.Handle(Trigger{Source: "hue", Button: 1, Action: ActionShortRelease}))
	assert.False(t, r.Handle(Trigger{Source: "hue", Button: 1, Action: ActionPress}))
	assert.True(t, r.Handle(Trigger{Source: "hue", Button: 4, Action: ActionShortRelease}))

	got := c.all()
	require.Len(t, got, 2)
	assert.Equal(t, control.KindNext, got[0].Kind)
	assert.Equal(t, control.KindPrevious, got[1].Kind)
}

func TestRouter_DebouncesRotation(t *testing.T) {
	c := &collector{}
	r := NewRouter(DefaultBindings(), c, time.Hour)

	for i := 0; i < 3; i++ {
		r.Handle(Trigger{Source: "hue", Device: "dial", Action: DirectionClockwise, Steps: 15})
	}
	assert.Empty(t, c.all())

	r.Flush()
	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, control.KindBrightnessUp, got[0].Kind)
	assert.Equal(t, 3, got[0].Steps)

	r.Flush()
	assert.Len(t, c.all(), 1)
}

func TestRouter_DebounceTimerFires(t *testing.T) {
	c := &collector{}
	r := NewRouter(DefaultBindings(), c, 10*time.Millisecond)

	r.Handle(Trigger{Device: "dial", Action: DirectionCounterClockwise, Steps: 30})
	assert.Eventually(t, func() bool { return len(c.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, c.all()[0].Steps)
}

func TestRouter_NoDebounce(t *testing.T) {
	c := &collector{}
	r := NewRouter(DefaultBindings(), c, 0)

	r.Handle(Trigger{Device: "dial", Action: DirectionClockwise, Steps: 15})
	require.Len(t, c.all(), 1)
	assert.Equal(t, 1, c.all()[0].Steps)
}
