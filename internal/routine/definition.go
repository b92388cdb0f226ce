package routine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/stripd/internal/color"
)

// Routine types understood by the default registry.
const (
	TypeStatic  = "static"
	TypeRainbow = "rainbow"
	TypeSparkle = "sparkle"
	TypeScript  = "script"
)

// Definition describes one playlist entry as written in the configuration.
type Definition struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"`
	Color   ColorDef      `yaml:"color"`
	Rainbow RainbowParams `yaml:"rainbow"`
	Sparkle SparkleParams `yaml:"sparkle"`
	Script  ScriptParams  `yaml:"script"`
}

// UnmarshalYAML fills in default animation parameters before decoding so
// that only overridden keys need to be written.
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	type plain Definition
	p := plain{
		Rainbow: DefaultRainbowParams(),
		Sparkle: DefaultSparkleParams(),
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = Definition(p)
	return nil
}

// ColorDef is the configuration form of a colour. The first non-empty field
// in the order rgbw, rgb, hsv, hex wins.
type ColorDef struct {
	RGBW []int     `yaml:"rgbw,omitempty"`
	RGB  []int     `yaml:"rgb,omitempty"`
	HSV  []float64 `yaml:"hsv,omitempty"`
	Hex  string    `yaml:"hex,omitempty"`
}

// Spec converts the definition to a colour spec. Malformed input still
// yields a usable spec (missing channels are zero) alongside an error
// wrapping color.ErrInvalidColorSpec.
func (c ColorDef) Spec() (color.Spec, error) {
	switch {
	case len(c.RGBW) > 0:
		v := pad(c.RGBW, 4)
		return color.RGBW{R: v[0], G: v[1], B: v[2], W: v[3]}, arity("rgbw", len(c.RGBW), 4)
	case len(c.RGB) > 0:
		v := pad(c.RGB, 3)
		return color.RGB{R: v[0], G: v[1], B: v[2]}, arity("rgb", len(c.RGB), 3)
	case len(c.HSV) > 0:
		v := pad(c.HSV, 3)
		return color.HSV{H: v[0], S: v[1], V: v[2]}, arity("hsv", len(c.HSV), 3)
	case c.Hex != "":
		return color.ParseHex(c.Hex)
	default:
		return color.RGBW{}, fmt.Errorf("%w: no colour given", color.ErrInvalidColorSpec)
	}
}

func pad[T int | float64](v []T, n int) []T {
	out := make([]T, n)
	copy(out, v)
	return out
}

func arity(kind string, got, want int) error {
	if got == want {
		return nil
	}
	return fmt.Errorf("%w: %s needs %d values, got %d", color.ErrInvalidColorSpec, kind, want, got)
}
