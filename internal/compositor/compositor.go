// Package compositor turns routines into emitted frames: it owns the fade
// between the outgoing and incoming routine and applies global brightness.
package compositor

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/routine"
)

// FadeState describes an in-progress fade. The zero value means idle.
type FadeState struct {
	Outgoing routine.Routine
	Incoming routine.Routine
	Elapsed  time.Duration
	Total    time.Duration
}

// Fading reports whether a fade is in progress.
func (f FadeState) Fading() bool {
	return f.Incoming != nil
}

// Progress returns elapsed/total clamped to [0,1].
func (f FadeState) Progress() float64 {
	if !f.Fading() || f.Total <= 0 {
		return 0
	}
	p := float64(f.Elapsed) / float64(f.Total)
	if p > 1 {
		return 1
	}
	return p
}

type fade struct {
	outgoing routine.Routine
	incoming routine.Routine
	start    time.Duration
	total    time.Duration
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithCurve sets the fade curve.
func WithCurve(curve Curve) Option {
	return func(c *Compositor) {
		if curve != nil {
			c.curve = curve
		}
	}
}

// WithBrightness sets the initial brightness.
func WithBrightness(b float64) Option {
	return func(c *Compositor) {
		c.SetBrightness(b)
	}
}

// Compositor renders the active routine, or a blend of two routines while
// fading, and scales the result by brightness. It is owned by the render
// loop and is not safe for concurrent use.
type Compositor struct {
	pixels     int
	brightness float64
	curve      Curve

	active routine.Routine
	fade   *fade

	// blank stands in as the outgoing routine when fading in from nothing.
	blank routine.Routine

	ticks uint64
	clock time.Duration
}

// New creates an idle compositor for a strip of the given length.
func New(pixels int, opts ...Option) *Compositor {
	if pixels < 0 {
		pixels = 0
	}
	c := &Compositor{
		pixels:     pixels,
		brightness: 1,
		curve:      Linear,
		blank:      routine.NewOff("blank"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PixelCount returns the strip length frames are rendered for.
func (c *Compositor) PixelCount() int { return c.pixels }

// SetPixelCount changes the strip length for subsequent ticks.
func (c *Compositor) SetPixelCount(n int) {
	if n < 0 {
		n = 0
	}
	c.pixels = n
}

// Brightness returns the current brightness in [0,1].
func (c *Compositor) Brightness() float64 { return c.brightness }

// SetBrightness sets brightness, clamped to [0,1], effective on the next tick.
func (c *Compositor) SetBrightness(b float64) float64 {
	switch {
	case b < 0 || b != b:
		b = 0
	case b > 1:
		b = 1
	}
	c.brightness = b
	return b
}

// Ticks returns how many frames have been rendered.
func (c *Compositor) Ticks() uint64 { return c.ticks }

// Clock returns the timestamp of the latest Tick or SetClock.
func (c *Compositor) Clock() time.Duration { return c.clock }

// SetClock moves the compositor clock forward without rendering. Fades
// started afterwards begin at now.
func (c *Compositor) SetClock(now time.Duration) {
	if now > c.clock {
		c.clock = now
	}
}

// Active returns the routine that is, or is becoming, the only one shown:
// the incoming routine while fading. Nil means nothing is active.
func (c *Compositor) Active() routine.Routine {
	if c.fade != nil {
		return c.fade.incoming
	}
	return c.active
}

// State returns the current fade state.
func (c *Compositor) State() FadeState {
	if c.fade == nil {
		return FadeState{}
	}
	elapsed := c.clock - c.fade.start
	if elapsed < 0 {
		elapsed = 0
	}
	return FadeState{
		Outgoing: c.fade.outgoing,
		Incoming: c.fade.incoming,
		Elapsed:  elapsed,
		Total:    c.fade.total,
	}
}

// Cut makes r the active routine immediately, abandoning any fade.
func (c *Compositor) Cut(r routine.Routine) {
	c.fade = nil
	c.active = r
}

// StartFade begins a fade from whatever is currently showing to r over d.
//
// A fade already in progress is frozen at its current mix and that mix
// becomes the outgoing side of the new fade, so the output does not jump.
// Zero duration, a nil target, or a target that is already the active
// routine is a no-op.
func (c *Compositor) StartFade(r routine.Routine, d time.Duration) {
	current := c.Active()
	if r == nil || d <= 0 || r == current {
		return
	}

	var outgoing routine.Routine
	switch {
	case c.fade != nil:
		outgoing = &mix{
			outgoing: c.fade.outgoing,
			incoming: c.fade.incoming,
			alpha:    c.curve(c.progress()),
		}
	case current != nil:
		outgoing = current
	default:
		outgoing = c.blank
	}

	c.fade = &fade{
		outgoing: outgoing,
		incoming: r,
		start:    c.clock,
		total:    d,
	}
	log.Debug().
		Str("from", outgoing.Name()).
		Str("to", r.Name()).
		Dur("duration", d).
		Msg("Fade started")
}

// progress returns the raw fade position at the current clock.
func (c *Compositor) progress() float64 {
	elapsed := c.clock - c.fade.start
	if elapsed < 0 {
		elapsed = 0
	}
	alpha := float64(elapsed) / float64(c.fade.total)
	if alpha > 1 {
		return 1
	}
	return alpha
}

// Release forgets every reference to r. If r was being shown the
// compositor falls back to showing nothing (all off).
func (c *Compositor) Release(r routine.Routine) {
	if r == nil {
		return
	}
	if c.fade != nil {
		switch {
		case r == c.fade.incoming:
			c.fade = nil
			c.active = nil
			return
		case holds(c.fade.outgoing, r):
			c.active = c.fade.incoming
			c.fade = nil
			return
		}
	}
	if c.active == r {
		c.active = nil
	}
}

// Tick renders the frame for timestamp now, measured from the start of the
// render loop.
func (c *Compositor) Tick(now time.Duration) color.Frame {
	c.SetClock(now)

	n := c.pixels
	if n == 0 {
		return color.Frame{}
	}

	tick := c.ticks
	c.ticks++

	if c.fade != nil {
		alpha := c.progress()
		if alpha >= 1 {
			log.Debug().Str("routine", c.fade.incoming.Name()).Msg("Fade complete")
			c.active = c.fade.incoming
			c.fade = nil
		} else {
			out := c.fade.outgoing.Render(tick, n).Resize(n)
			in := c.fade.incoming.Render(tick, n).Resize(n)
			frame := color.BlendFrames(out, in, c.curve(alpha))
			frame.Scale(c.brightness)
			return frame
		}
	}

	if c.active == nil {
		return color.NewFrame(n)
	}

	frame := c.active.Render(tick, n).Resize(n)
	frame.Scale(c.brightness)
	return frame
}

// Snapshot is a point-in-time summary for status reporting.
type Snapshot struct {
	Active     string  `json:"active,omitempty"`
	Fading     bool    `json:"fading"`
	From       string  `json:"from,omitempty"`
	Progress   float64 `json:"progress,omitempty"`
	Brightness float64 `json:"brightness"`
	Pixels     int     `json:"pixels"`
	Ticks      uint64  `json:"ticks"`
}

// Snapshot summarises the compositor state.
func (c *Compositor) Snapshot() Snapshot {
	s := Snapshot{
		Brightness: c.brightness,
		Pixels:     c.pixels,
		Ticks:      c.ticks,
	}
	if r := c.Active(); r != nil {
		s.Active = r.Name()
	}
	if st := c.State(); st.Fading() {
		s.Fading = true
		s.From = st.Outgoing.Name()
		s.Progress = st.Progress()
	}
	return s
}
