package compositor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/routine"
)

var (
	red   = color.New(255, 0, 0, 0)
	blue  = color.New(0, 0, 255, 0)
	green = color.New(0, 255, 0, 0)
)

type countingRoutine struct {
	name  string
	calls int
}

func (c *countingRoutine) Name() string { return c.name }

func (c *countingRoutine) Render(_ uint64, n int) color.Frame {
	c.calls++
	return color.Solid(n, color.New(1, 2, 3, 4))
}

func static(name string, p color.Pixel) *routine.Static {
	return routine.NewStatic(name, color.RGBW{R: int(p.R), G: int(p.G), B: int(p.B), W: int(p.W)})
}

func requireSolid(t *testing.T, f color.Frame, n int, want color.Pixel) {
	t.Helper()
	require.Len(t, f, n)
	for i, p := range f {
		require.Equal(t, want, p, "pixel %d", i)
	}
}

func TestTick_IdleWithoutRoutineIsOff(t *testing.T) {
	c := New(5)
	requireSolid(t, c.Tick(0), 5, color.Off)
	assert.False(t, c.State().Fading())
}

func TestTick_ZeroPixelsSkipsRoutines(t *testing.T) {
	r := &countingRoutine{name: "count"}
	c := New(0)
	c.Cut(r)

	f := c.Tick(time.Second)
	assert.NotNil(t, f)
	assert.Empty(t, f)
	assert.Equal(t, 0, r.calls)
}

func TestFade_RedToBlueAtTenHertz(t *testing.T) {
	c := New(4)
	c.Cut(static("red", red))
	blueR := static("blue", blue)
	c.StartFade(blueR, time.Second)

	frames := map[time.Duration]color.Frame{}
	for i := 0; i <= 15; i++ {
		now := time.Duration(i) * 100 * time.Millisecond
		frames[now] = c.Tick(now)
	}

	requireSolid(t, frames[0], 4, red)
	requireSolid(t, frames[500*time.Millisecond], 4, color.New(128, 0, 128, 0))
	requireSolid(t, frames[time.Second], 4, blue)
	requireSolid(t, frames[1500*time.Millisecond], 4, blue)

	assert.False(t, c.State().Fading())
	assert.Same(t, blueR, c.Active())
}

func TestFade_ProgressIsMonotonic(t *testing.T) {
	c := New(1)
	c.Cut(static("off", color.Off))
	c.StartFade(static("white", color.New(0, 0, 0, 255)), time.Second)

	prev := -1
	for i := 0; i <= 10; i++ {
		f := c.Tick(time.Duration(i) * 100 * time.Millisecond)
		w := int(f[0].W)
		assert.GreaterOrEqual(t, w, prev)
		prev = w
	}
	assert.Equal(t, 255, prev)
}

func TestStartFade_NoOps(t *testing.T) {
	redR := static("red", red)

	tests := []struct {
		name string
		to   routine.Routine
		d    time.Duration
	}{
		{"zero duration", static("blue", blue), 0},
		{"negative duration", static("blue", blue), -time.Second},
		{"same routine", redR, time.Second},
		{"nil routine", nil, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(2)
			c.Cut(redR)
			c.StartFade(tt.to, tt.d)

			assert.False(t, c.State().Fading())
			assert.Same(t, redR, c.Active())
			requireSolid(t, c.Tick(0), 2, red)
		})
	}
}

func requireNear(t *testing.T, want, got color.Pixel, delta int) {
	t.Helper()
	diff := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	require.LessOrEqual(t, diff(want.R, got.R), delta, "R: want %s got %s", want, got)
	require.LessOrEqual(t, diff(want.G, got.G), delta, "G: want %s got %s", want, got)
	require.LessOrEqual(t, diff(want.B, got.B), delta, "B: want %s got %s", want, got)
	require.LessOrEqual(t, diff(want.W, got.W), delta, "W: want %s got %s", want, got)
}

func TestStartFade_PreemptionIsContinuous(t *testing.T) {
	c := New(3)
	c.Cut(static("red", red))
	blueR := static("blue", blue)
	greenR := static("green", green)

	c.StartFade(blueR, time.Second)
	c.Tick(0)
	mid := c.Tick(500 * time.Millisecond)
	requireSolid(t, mid, 3, color.New(128, 0, 128, 0))

	c.StartFade(greenR, time.Second)
	st := c.State()
	require.True(t, st.Fading())
	assert.Same(t, greenR, st.Incoming)
	assert.Same(t, greenR, c.Active())

	requireSolid(t, c.Tick(500*time.Millisecond), 3, mid[0])
	requireNear(t, mid[0], c.Tick(510*time.Millisecond)[0], 3)

	// The interrupted mix only fades away from here on.
	last := mid[0]
	for i := 1; i <= 10; i++ {
		p := c.Tick(510*time.Millisecond + time.Duration(i)*100*time.Millisecond)[0]
		assert.LessOrEqual(t, p.R, last.R)
		assert.LessOrEqual(t, p.B, last.B)
		assert.GreaterOrEqual(t, p.G, last.G)
		last = p
	}
	requireSolid(t, c.Tick(2*time.Second), 3, green)
	assert.False(t, c.State().Fading())
}

func TestStartFade_PreemptionBackToOutgoing(t *testing.T) {
	redR := static("red", red)
	c := New(1)
	c.Cut(redR)
	c.StartFade(static("blue", blue), time.Second)
	c.Tick(0)
	before := c.Tick(500 * time.Millisecond)[0]

	c.StartFade(redR, time.Second)
	requireNear(t, before, c.Tick(510*time.Millisecond)[0], 3)
	requireSolid(t, c.Tick(1500*time.Millisecond), 1, red)
	assert.Same(t, redR, c.Active())
}

func TestStartFade_RepeatedPreemption(t *testing.T) {
	c := New(1)
	c.Cut(static("red", red))
	prev := c.Tick(0)[0]

	targets := []*routine.Static{
		static("blue", blue),
		static("green", green),
		static("white", color.New(0, 0, 0, 255)),
	}
	now := time.Duration(0)
	for _, r := range targets {
		c.StartFade(r, time.Second)
		for i := 0; i < 3; i++ {
			now += 10 * time.Millisecond
			p := c.Tick(now)[0]
			requireNear(t, prev, p, 8)
			prev = p
		}
	}
	requireSolid(t, c.Tick(now+time.Second), 1, color.New(0, 0, 0, 255))
}

func TestStartFade_FromNothingFadesInFromBlack(t *testing.T) {
	c := New(2)
	blueR := static("blue", blue)
	c.StartFade(blueR, time.Second)

	requireSolid(t, c.Tick(0), 2, color.Off)
	requireSolid(t, c.Tick(time.Second), 2, blue)
	assert.Same(t, blueR, c.Active())
}

func TestStartFade_UsesClock(t *testing.T) {
	c := New(1)
	c.Cut(static("red", red))
	c.Tick(10 * time.Second)

	c.SetClock(12 * time.Second)
	c.StartFade(static("blue", blue), time.Second)

	requireSolid(t, c.Tick(12*time.Second), 1, red)
	requireSolid(t, c.Tick(13*time.Second), 1, blue)
}

func TestSetClock_NeverGoesBack(t *testing.T) {
	c := New(1)
	c.SetClock(5 * time.Second)
	c.SetClock(time.Second)
	assert.Equal(t, 5*time.Second, c.Clock())
}

func TestBrightness(t *testing.T) {
	c := New(3, WithBrightness(0.5))
	c.Cut(static("white", color.New(255, 255, 255, 255)))

	requireSolid(t, c.Tick(0), 3, color.New(128, 128, 128, 128))

	c.SetBrightness(0)
	requireSolid(t, c.Tick(time.Millisecond), 3, color.Off)

	assert.Equal(t, 1.0, c.SetBrightness(4))
	assert.Equal(t, 0.0, c.SetBrightness(-1))
}

func TestBrightness_DoesNotMutateRoutine(t *testing.T) {
	white := static("white", color.New(255, 255, 255, 255))
	c := New(2, WithBrightness(0.25))
	c.Cut(white)
	c.Tick(0)

	assert.Equal(t, color.New(255, 255, 255, 255), white.Pixel())
	c.SetBrightness(1)
	requireSolid(t, c.Tick(time.Millisecond), 2, color.New(255, 255, 255, 255))
}

func TestRelease(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		r := static("red", red)
		c := New(2)
		c.Cut(r)
		c.Release(r)
		assert.Nil(t, c.Active())
		requireSolid(t, c.Tick(0), 2, color.Off)
	})

	t.Run("incoming", func(t *testing.T) {
		c := New(2)
		c.Cut(static("red", red))
		b := static("blue", blue)
		c.StartFade(b, time.Second)
		c.Release(b)
		assert.False(t, c.State().Fading())
		requireSolid(t, c.Tick(0), 2, color.Off)
	})

	t.Run("outgoing", func(t *testing.T) {
		r := static("red", red)
		b := static("blue", blue)
		c := New(2)
		c.Cut(r)
		c.StartFade(b, time.Second)
		c.Release(r)
		assert.Same(t, b, c.Active())
		requireSolid(t, c.Tick(0), 2, blue)
	})

	t.Run("inside interrupted fade", func(t *testing.T) {
		r := static("red", red)
		g := static("green", green)
		c := New(2)
		c.Cut(r)
		c.StartFade(static("blue", blue), time.Second)
		c.Tick(500 * time.Millisecond)
		c.StartFade(g, time.Second)

		c.Release(r)
		assert.False(t, c.State().Fading())
		assert.Same(t, g, c.Active())
		requireSolid(t, c.Tick(600*time.Millisecond), 2, green)
	})
}

func TestSetPixelCount(t *testing.T) {
	c := New(2)
	c.Cut(static("red", red))
	requireSolid(t, c.Tick(0), 2, red)

	c.SetPixelCount(5)
	requireSolid(t, c.Tick(time.Millisecond), 5, red)
	c.SetPixelCount(-3)
	assert.Equal(t, 0, c.PixelCount())
}

func TestCurves(t *testing.T) {
	for _, name := range []string{"", "linear", "ease", "smoothstep"} {
		curve, err := CurveByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, 0.0, curve(0))
		assert.Equal(t, 1.0, curve(1))
		assert.InDelta(t, 0.5, curve(0.5), 1e-9)
	}
	assert.Less(t, Ease(0.25), Linear(0.25))

	_, err := CurveByName("bounce")
	assert.Error(t, err)
}

func TestFade_EaseCurve(t *testing.T) {
	c := New(1, WithCurve(Ease))
	c.Cut(static("off", color.Off))
	c.StartFade(static("white", color.New(0, 0, 0, 200)), time.Second)
	c.Tick(0)
	f := c.Tick(250 * time.Millisecond)
	// smoothstep(0.25) = 0.15625
	assert.Equal(t, uint8(31), f[0].W)
}

func TestSnapshot(t *testing.T) {
	c := New(2, WithBrightness(0.5))
	assert.Equal(t, Snapshot{Brightness: 0.5, Pixels: 2}, c.Snapshot())

	c.Cut(static("red", red))
	c.StartFade(static("blue", blue), time.Second)
	c.Tick(0)
	c.SetClock(250 * time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, "blue", s.Active)
	assert.Equal(t, "red", s.From)
	assert.True(t, s.Fading)
	assert.InDelta(t, 0.25, s.Progress, 1e-9)
	assert.Equal(t, uint64(1), s.Ticks)
}
