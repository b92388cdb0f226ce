package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/compositor"
	"github.com/dokzlo13/stripd/internal/playlist"
	"github.com/dokzlo13/stripd/internal/routine"
)

var (
	red  = color.New(255, 0, 0, 0)
	blue = color.New(0, 0, 255, 0)
)

func solid(name string, p color.Pixel) *routine.Static {
	return routine.NewStatic(name, color.RGBW{R: int(p.R), G: int(p.G), B: int(p.B), W: int(p.W)})
}

func newAdapter(fade time.Duration, routines ...routine.Routine) *Adapter {
	return NewAdapter(playlist.New(routines...), compositor.New(3), AdapterConfig{Fade: fade, Step: 0.25})
}

func ev(kind Kind) Event {
	return Event{Kind: kind, Steps: 1}
}

func requireSolid(t *testing.T, f color.Frame, want color.Pixel) {
	t.Helper()
	require.NotEmpty(t, f)
	for i, p := range f {
		require.Equal(t, want, p, "pixel %d", i)
	}
}

func TestAdapter_StartCutsWithoutFade(t *testing.T) {
	a := newAdapter(0, solid("red", red))
	require.NoError(t, a.Start())

	assert.True(t, a.Powered())
	requireSolid(t, a.Compositor().Tick(0), red)
}

func TestAdapter_StartFadesInFromBlack(t *testing.T) {
	a := newAdapter(time.Second, solid("red", red))
	require.NoError(t, a.Start())

	comp := a.Compositor()
	requireSolid(t, comp.Tick(0), color.Off)
	requireSolid(t, comp.Tick(time.Second), red)
}

func TestAdapter_NextPrevious(t *testing.T) {
	r, b := solid("red", red), solid("blue", blue)
	a := newAdapter(0, r, b)
	require.NoError(t, a.Start())

	require.NoError(t, a.Apply(ev(KindNext)))
	assert.Equal(t, 1, a.Playlist().Cursor())
	requireSolid(t, a.Compositor().Tick(0), blue)

	require.NoError(t, a.Apply(ev(KindNext)))
	assert.Equal(t, 0, a.Playlist().Cursor())

	require.NoError(t, a.Apply(ev(KindPrevious)))
	assert.Equal(t, 1, a.Playlist().Cursor())
	assert.Same(t, b, a.Compositor().Active())
}

func TestAdapter_NextStartsFade(t *testing.T) {
	r, b := solid("red", red), solid("blue", blue)
	a := newAdapter(time.Second, r, b)
	a.Compositor().Cut(r)

	require.NoError(t, a.Apply(ev(KindNext)))
	st := a.Compositor().State()
	require.True(t, st.Fading())
	assert.Same(t, r, st.Outgoing)
	assert.Same(t, b, st.Incoming)
	assert.Equal(t, time.Second, st.Total)
}

func TestAdapter_PowerCycleKeepsCursor(t *testing.T) {
	rainbow := routine.NewRainbow("rainbow", routine.DefaultRainbowParams())
	a := newAdapter(500*time.Millisecond, solid("red", red), rainbow, solid("blue", blue))
	require.NoError(t, a.Start())
	require.NoError(t, a.Apply(ev(KindNext)))
	require.Equal(t, 1, a.Playlist().Cursor())

	comp := a.Compositor()
	comp.Tick(time.Second)

	require.NoError(t, a.Apply(ev(KindPowerOff)))
	assert.False(t, a.Powered())
	requireSolid(t, comp.Tick(2*time.Second), color.Off)
	assert.Equal(t, 1, a.Playlist().Cursor())

	require.NoError(t, a.Apply(ev(KindPowerOn)))
	assert.True(t, a.Powered())
	assert.Equal(t, 1, a.Playlist().Cursor())
	comp.Tick(3 * time.Second)
	assert.Same(t, rainbow, comp.Active())
}

func TestAdapter_PowerOffIsIdempotent(t *testing.T) {
	a := newAdapter(time.Second, solid("red", red))
	require.NoError(t, a.Start())
	require.NoError(t, a.Apply(ev(KindPowerOff)))
	off := a.Compositor().Active()

	require.NoError(t, a.Apply(ev(KindPowerOff)))
	assert.Same(t, off, a.Compositor().Active())
}

func TestAdapter_Toggle(t *testing.T) {
	a := newAdapter(0, solid("red", red))

	require.NoError(t, a.Apply(ev(KindPowerToggle)))
	assert.True(t, a.Powered())
	requireSolid(t, a.Compositor().Tick(0), red)

	require.NoError(t, a.Apply(ev(KindPowerToggle)))
	assert.False(t, a.Powered())
	requireSolid(t, a.Compositor().Tick(time.Millisecond), color.Off)
}

func TestAdapter_NextWhileOffPowersOn(t *testing.T) {
	a := newAdapter(0, solid("red", red), solid("blue", blue))
	require.NoError(t, a.Apply(ev(KindPowerOff)))

	require.NoError(t, a.Apply(ev(KindNext)))
	assert.True(t, a.Powered())
	requireSolid(t, a.Compositor().Tick(0), blue)
}

func TestAdapter_Brightness(t *testing.T) {
	a := newAdapter(0, solid("red", red))
	comp := a.Compositor()

	require.NoError(t, a.Apply(ev(KindBrightnessDown)))
	assert.InDelta(t, 0.75, comp.Brightness(), 1e-9)

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessDown, Steps: 2}))
	assert.InDelta(t, 0.25, comp.Brightness(), 1e-9)

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessDown, Steps: 5}))
	assert.Equal(t, 0.0, comp.Brightness())

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessUp}))
	assert.InDelta(t, 0.25, comp.Brightness(), 1e-9)

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessUp, Steps: 10}))
	assert.Equal(t, 1.0, comp.Brightness())

	require.NoError(t, a.Apply(Event{Kind: KindSetBrightness, Value: 0.4}))
	assert.InDelta(t, 0.4, comp.Brightness(), 1e-9)
}

func TestAdapter_NonPositiveStepsCountAsOne(t *testing.T) {
	a := newAdapter(0, solid("red", red))
	comp := a.Compositor()
	require.NoError(t, a.Apply(Event{Kind: KindSetBrightness, Value: 0.5}))

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessUp, Steps: -3}))
	assert.InDelta(t, 0.75, comp.Brightness(), 1e-9)

	require.NoError(t, a.Apply(Event{Kind: KindBrightnessDown, Steps: -3}))
	assert.InDelta(t, 0.5, comp.Brightness(), 1e-9)
}

func TestAdapter_BrightnessIsImmediate(t *testing.T) {
	a := newAdapter(time.Second, solid("white", color.New(255, 255, 255, 255)))
	a.Compositor().Cut(a.Playlist().Items()[0])

	require.NoError(t, a.Apply(Event{Kind: KindSetBrightness, Value: 0.5}))
	requireSolid(t, a.Compositor().Tick(0), color.New(128, 128, 128, 128))
}

func TestAdapter_Errors(t *testing.T) {
	empty := newAdapter(0)
	assert.ErrorIs(t, empty.Start(), playlist.ErrEmptyPlaylist)
	assert.ErrorIs(t, empty.Apply(ev(KindNext)), playlist.ErrEmptyPlaylist)
	assert.ErrorIs(t, empty.Apply(ev(KindPrevious)), playlist.ErrEmptyPlaylist)
	assert.ErrorIs(t, empty.Apply(ev(KindPowerOn)), playlist.ErrEmptyPlaylist)
	assert.False(t, empty.Powered())

	a := newAdapter(0, solid("red", red))
	assert.ErrorIs(t, a.Apply(Event{Kind: KindSelect, Index: 3}), playlist.ErrIndexOutOfRange)
	assert.ErrorIs(t, a.Apply(ev("dance")), ErrUnknownKind)
}

func TestAdapter_Select(t *testing.T) {
	b := solid("blue", blue)
	a := newAdapter(0, solid("red", red), solid("green", color.New(0, 255, 0, 0)), b)

	require.NoError(t, a.Apply(Event{Kind: KindSelect, Index: 2}))
	assert.Equal(t, 2, a.Playlist().Cursor())
	assert.Same(t, b, a.Compositor().Active())
}

func TestAdapter_RemoveShowing(t *testing.T) {
	a := newAdapter(time.Second, solid("red", red), solid("blue", blue))
	a.Compositor().Cut(a.Playlist().Items()[0])
	require.NoError(t, a.Apply(ev(KindPowerOn)))

	require.NoError(t, a.Remove("red"))
	assert.Equal(t, 1, a.Playlist().Len())
	requireSolid(t, a.Compositor().Tick(0), blue)

	require.NoError(t, a.Remove("blue"))
	assert.False(t, a.Powered())
	requireSolid(t, a.Compositor().Tick(time.Millisecond), color.Off)

	assert.Error(t, a.Remove("missing"))
}

func TestAdapter_StateRestore(t *testing.T) {
	build := func() *Adapter {
		return newAdapter(0, solid("red", red), solid("blue", blue), solid("white", color.New(0, 0, 0, 255)))
	}

	a := build()
	require.NoError(t, a.Start())
	require.NoError(t, a.Apply(Event{Kind: KindSelect, Index: 2}))
	require.NoError(t, a.Apply(Event{Kind: KindSetBrightness, Value: 0.3}))

	st := a.State()
	assert.Equal(t, State{Routine: "white", Cursor: 2, Powered: true, Brightness: 0.3}, st)

	b := build()
	b.Restore(st)
	assert.Equal(t, 2, b.Playlist().Cursor())
	assert.InDelta(t, 0.3, b.Compositor().Brightness(), 1e-9)
	assert.False(t, b.Powered())

	c := build()
	c.Restore(State{Routine: "gone", Cursor: 1, Brightness: 1})
	assert.Equal(t, 1, c.Playlist().Cursor())

	d := build()
	d.Restore(State{Routine: "gone", Cursor: 9, Brightness: 1})
	assert.Equal(t, 0, d.Playlist().Cursor())
}

func TestAdapter_PowerOnDuringPowerOffFadeIsContinuous(t *testing.T) {
	white := color.New(0, 0, 0, 255)
	a := newAdapter(time.Second, solid("white", white))
	require.NoError(t, a.Start())

	comp := a.Compositor()
	comp.Tick(0)
	requireSolid(t, comp.Tick(time.Second), white)

	require.NoError(t, a.Apply(ev(KindPowerOff)))
	dimming := comp.Tick(1300 * time.Millisecond)[0]
	assert.InDelta(t, 179, float64(dimming.W), 1)

	require.NoError(t, a.Apply(ev(KindPowerOn)))
	assert.True(t, a.Powered())
	after := comp.Tick(1310 * time.Millisecond)[0]
	assert.InDelta(t, float64(dimming.W), float64(after.W), 3)

	prev := after.W
	for at := 1400 * time.Millisecond; at <= 2300*time.Millisecond; at += 100 * time.Millisecond {
		w := comp.Tick(at)[0].W
		assert.GreaterOrEqual(t, w, prev)
		prev = w
	}
	requireSolid(t, comp.Tick(2400*time.Millisecond), white)
}
