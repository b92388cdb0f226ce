package routine

import (
	"math"

	"github.com/dokzlo13/stripd/internal/color"
)

// RainbowParams configures a Rainbow.
type RainbowParams struct {
	Cycles  float64 `yaml:"cycles"`   // Full hue cycles across the strip
	HueStep float64 `yaml:"hue_step"` // Degrees between adjacent pixels, overrides Cycles when > 0
	Rate    float64 `yaml:"rate"`     // Degrees the pattern moves per tick
	White   float64 `yaml:"white"`    // Constant white element level, 0..1
}

// DefaultRainbowParams returns the parameters used when none are configured.
func DefaultRainbowParams() RainbowParams {
	return RainbowParams{
		Cycles: 4,
		Rate:   1.2,
		White:  0.3,
	}
}

// Rainbow shows a smooth hue gradient that moves along the strip.
type Rainbow struct {
	name   string
	params RainbowParams
	clock  clock
	phase  float64
}

// NewRainbow creates a rainbow routine.
func NewRainbow(name string, params RainbowParams) *Rainbow {
	return &Rainbow{name: name, params: params}
}

// Name implements Routine.
func (r *Rainbow) Name() string { return r.name }

// Render implements Routine.
func (r *Rainbow) Render(tick uint64, n int) color.Frame {
	if delta := r.clock.advance(tick, 0); delta > 0 {
		r.phase = math.Mod(r.phase+r.params.Rate*float64(delta), 360)
		if r.phase < 0 {
			r.phase += 360
		}
	}

	f := color.NewFrame(n)
	step := r.hueStep(n)
	for i := range f {
		f[i] = color.HSVW{
			H: r.phase + float64(i)*step,
			S: 1,
			V: 1,
			W: r.params.White,
		}.ToRGBW()
	}
	return f
}

func (r *Rainbow) hueStep(n int) float64 {
	if r.params.HueStep > 0 || n == 0 {
		return r.params.HueStep
	}
	return 360 * r.params.Cycles / float64(n)
}
