package color

// Frame is one full strip of pixels; index is the physical LED position.
type Frame []Pixel

// NewFrame returns an all-off frame of n pixels.
func NewFrame(n int) Frame {
	if n < 0 {
		n = 0
	}
	return make(Frame, n)
}

// Solid returns a frame of n copies of p.
func Solid(n int, p Pixel) Frame {
	f := NewFrame(n)
	f.Fill(p)
	return f
}

// Fill sets every pixel to p.
func (f Frame) Fill(p Pixel) {
	for i := range f {
		f[i] = p
	}
}

// Scale multiplies every pixel by brightness in place.
func (f Frame) Scale(brightness float64) {
	if brightness >= 1 {
		return
	}
	for i := range f {
		f[i] = f[i].Scale(brightness)
	}
}

// Resize returns a frame of exactly n pixels, reusing f when it fits.
// Missing pixels are off.
func (f Frame) Resize(n int) Frame {
	if n < 0 {
		n = 0
	}
	if len(f) == n {
		return f
	}
	if cap(f) >= n {
		g := f[:n]
		for i := len(f); i < n; i++ {
			g[i] = Off
		}
		return g
	}
	g := NewFrame(n)
	copy(g, f)
	return g
}

// BlendFrames blends a into b by alpha, writing into a fresh frame of
// len(a). b is treated as off where it is shorter than a.
func BlendFrames(a, b Frame, alpha float64) Frame {
	out := NewFrame(len(a))
	for i := range a {
		var pb Pixel
		if i < len(b) {
			pb = b[i]
		}
		out[i] = Blend(a[i], pb, alpha)
	}
	return out
}
