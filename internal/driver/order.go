package driver

import (
	"fmt"
	"strings"

	"github.com/dokzlo13/stripd/internal/color"
)

// Order is the byte order of the four channels on the wire.
type Order [4]byte

// Common orders.
var (
	OrderRGBW = Order{'r', 'g', 'b', 'w'}
	OrderGRBW = Order{'g', 'r', 'b', 'w'}
)

// DefaultOrder matches SK6812 RGBW strips.
var DefaultOrder = OrderGRBW

// ParseOrder parses a four letter permutation of "rgbw". Empty means the
// default order.
func ParseOrder(s string) (Order, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultOrder, nil
	}
	if len(s) != 4 {
		return Order{}, fmt.Errorf("channel order %q: want 4 letters", s)
	}

	var o Order
	seen := map[byte]bool{}
	for i := 0; i < 4; i++ {
		c := s[i]
		if !strings.ContainsRune("rgbw", rune(c)) || seen[c] {
			return Order{}, fmt.Errorf("channel order %q: must be a permutation of rgbw", s)
		}
		seen[c] = true
		o[i] = c
	}
	return o, nil
}

func (o Order) String() string {
	return string(o[:])
}

// Put writes p into dst[0:4] in this order.
func (o Order) Put(dst []byte, p color.Pixel) {
	for i, c := range o {
		switch c {
		case 'r':
			dst[i] = p.R
		case 'g':
			dst[i] = p.G
		case 'b':
			dst[i] = p.B
		case 'w':
			dst[i] = p.W
		}
	}
}
