package color

import "math"

// GammaTable is a per-channel lookup table applied to frames right before
// they are written to the strip.
type GammaTable struct {
	gamma float64
	lut   [256]uint8
}

// NewGammaTable builds a table for the given exponent. Values <= 0 or 1
// produce the identity table.
func NewGammaTable(gamma float64) *GammaTable {
	t := &GammaTable{gamma: gamma}
	for i := range t.lut {
		if gamma <= 0 || gamma == 1 {
			t.lut[i] = uint8(i)
			continue
		}
		t.lut[i] = channel(math.Pow(float64(i)/255, gamma) * 255)
	}
	return t
}

// Gamma returns the exponent the table was built with.
func (t *GammaTable) Gamma() float64 {
	return t.gamma
}

// IsIdentity reports whether applying the table is a no-op.
func (t *GammaTable) IsIdentity() bool {
	return t == nil || t.gamma <= 0 || t.gamma == 1
}

// Apply corrects the frame in place.
func (t *GammaTable) Apply(f Frame) {
	if t.IsIdentity() {
		return
	}
	for i, p := range f {
		f[i] = Pixel{R: t.lut[p.R], G: t.lut[p.G], B: t.lut[p.B], W: t.lut[p.W]}
	}
}
