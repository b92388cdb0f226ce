package color

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColorSpec is reported when a colour cannot be parsed. The
// conversion still yields a usable (off) pixel.
var ErrInvalidColorSpec = errors.New("invalid color spec")

// Spec is a colour specification a static routine can be built from.
// Implementations are RGBW, RGB, HSV and HSVW.
type Spec interface {
	ToRGBW() Pixel
}

// RGBW specifies all four channels directly. Values are clamped to [0,255].
type RGBW struct {
	R, G, B, W int
}

// ToRGBW implements Spec.
func (c RGBW) ToRGBW() Pixel {
	return Pixel{R: clampByte(c.R), G: clampByte(c.G), B: clampByte(c.B), W: clampByte(c.W)}
}

// RGB specifies red, green and blue; white is derived from their minimum.
type RGB struct {
	R, G, B int
}

// ToRGBW implements Spec.
func (c RGB) ToRGBW() Pixel {
	return DeriveWhite(clampByte(c.R), clampByte(c.G), clampByte(c.B))
}

// HSV specifies hue in degrees [0,360) (wrapped), saturation and value in [0,1].
type HSV struct {
	H, S, V float64
}

// ToRGBW implements Spec.
func (c HSV) ToRGBW() Pixel {
	r, g, b := hsvToRGB(c.H, c.S, c.V)
	return DeriveWhite(r, g, b)
}

// HSVW is an HSV colour with an explicitly driven white element. The white
// level is in [0,1] and is added on top of the derived white.
type HSVW struct {
	H, S, V, W float64
}

// ToRGBW implements Spec. Once the white element saturates the remaining
// common part stays on R, G and B.
func (c HSVW) ToRGBW() Pixel {
	r, g, b := hsvToRGB(c.H, c.S, c.V)
	return Pixel{R: r, G: g, B: b, W: channel(clamp01(c.W) * 255)}.Normalize()
}

// ToRGBW converts any Spec to a pixel. A nil spec is off.
func ToRGBW(s Spec) Pixel {
	if s == nil {
		return Off
	}
	return s.ToRGBW()
}

// DeriveWhite moves the common minimum of r, g and b onto the white channel.
func DeriveWhite(r, g, b uint8) Pixel {
	return Pixel{R: r, G: g, B: b}.Normalize()
}

// ParseHex parses "#rrggbb" or "#rgb" into an RGB spec. On failure it
// returns an off RGB spec together with ErrInvalidColorSpec.
func ParseHex(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q: %v", ErrInvalidColorSpec, s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return RGB{R: int(r), G: int(g), B: int(b)}, nil
}

// hsvToRGB performs the six-sector conversion with hue wrapped into [0,360).
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		h = 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return colorful.Hsv(h, clamp01(s), clamp01(v)).Clamped().RGB255()
}
