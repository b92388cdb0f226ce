// Package color provides the RGBW pixel model used by the strip, the colour
// specifications routines are configured with, and the conversions between
// them.
package color

import (
	"fmt"
	"math"
)

// Pixel is a single RGBW LED value. The white channel drives the dedicated
// white element of the LED instead of mixing white from red, green and blue.
type Pixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	W uint8 `json:"w"`
}

// Off is the all-zero pixel.
var Off = Pixel{}

// New returns a pixel from four channel values.
func New(r, g, b, w uint8) Pixel {
	return Pixel{R: r, G: g, B: b, W: w}
}

// Scale multiplies every channel by f, clamped to [0,1], rounding to nearest.
func (p Pixel) Scale(f float64) Pixel {
	f = clamp01(f)
	if f == 1 {
		return p
	}
	return Pixel{
		R: channel(float64(p.R) * f),
		G: channel(float64(p.G) * f),
		B: channel(float64(p.B) * f),
		W: channel(float64(p.W) * f),
	}
}

// Normalize moves the common part of R, G and B onto the white channel.
// Applying it twice yields the same pixel.
func (p Pixel) Normalize() Pixel {
	m := min(p.R, p.G, p.B)
	if room := 255 - p.W; m > room {
		m = room
	}
	return Pixel{R: p.R - m, G: p.G - m, B: p.B - m, W: p.W + m}
}

// Add sums two pixels channel by channel, saturating at 255.
func (p Pixel) Add(o Pixel) Pixel {
	return Pixel{
		R: channel(float64(p.R) + float64(o.R)),
		G: channel(float64(p.G) + float64(o.G)),
		B: channel(float64(p.B) + float64(o.B)),
		W: channel(float64(p.W) + float64(o.W)),
	}
}

// Blend linearly interpolates from a to b: a*(1-alpha) + b*alpha, rounded.
func Blend(a, b Pixel, alpha float64) Pixel {
	alpha = clamp01(alpha)
	mix := func(x, y uint8) uint8 {
		return channel(float64(x)*(1-alpha) + float64(y)*alpha)
	}
	return Pixel{
		R: mix(a.R, b.R),
		G: mix(a.G, b.G),
		B: mix(a.B, b.B),
		W: mix(a.W, b.W),
	}
}

func (p Pixel) String() string {
	return fmt.Sprintf("rgbw(%d,%d,%d,%d)", p.R, p.G, p.B, p.W)
}

// channel rounds and clamps a float channel value into [0,255].
func channel(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// clampByte clamps an integer channel value into [0,255].
func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
