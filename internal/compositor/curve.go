package compositor

import "fmt"

// Curve maps linear fade progress in [0,1] to blend weight in [0,1].
type Curve func(progress float64) float64

// Linear is the default fade curve.
func Linear(p float64) float64 { return p }

// Ease is a smoothstep curve: slow start and finish.
func Ease(p float64) float64 { return p * p * (3 - 2*p) }

// CurveByName resolves a configured curve name. Empty means linear.
func CurveByName(name string) (Curve, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "ease", "smoothstep":
		return Ease, nil
	default:
		return nil, fmt.Errorf("unknown fade curve %q", name)
	}
}
