// Package routine provides the units of animation the strip plays: static
// colours and procedural animations that render one frame per tick.
package routine

import (
	"github.com/dokzlo13/stripd/internal/color"
)

// Routine renders frames for the strip.
//
// Render must return exactly n pixels. Animated routines advance their
// internal state by the difference between tick and the tick of the
// previous call, so skipped ticks keep the animation continuous. Render is
// only ever called from the render loop and needs no locking.
type Routine interface {
	Name() string
	Render(tick uint64, n int) color.Frame
}

// Static renders the same pixel on every LED.
type Static struct {
	name  string
	pixel color.Pixel
}

// NewStatic creates a static routine from a colour specification.
func NewStatic(name string, spec color.Spec) *Static {
	return &Static{name: name, pixel: color.ToRGBW(spec)}
}

// NewOff creates a static routine that turns every LED off.
func NewOff(name string) *Static {
	return &Static{name: name}
}

// Name implements Routine.
func (s *Static) Name() string { return s.name }

// Pixel returns the colour every LED is set to.
func (s *Static) Pixel() color.Pixel { return s.pixel }

// Render implements Routine.
func (s *Static) Render(_ uint64, n int) color.Frame {
	return color.Solid(n, s.pixel)
}

// clock tracks the tick of the previous render call.
type clock struct {
	last    uint64
	started bool
}

// advance returns how many ticks passed since the previous call. The first
// call reports first; a tick that goes backwards reports zero.
func (c *clock) advance(tick uint64, first uint64) uint64 {
	if !c.started {
		c.started = true
		c.last = tick
		return first
	}
	if tick <= c.last {
		c.last = tick
		return 0
	}
	delta := tick - c.last
	c.last = tick
	return delta
}
