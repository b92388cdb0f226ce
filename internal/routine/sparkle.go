package routine

import (
	"math/rand"
	"time"

	"github.com/ojrac/opensimplex-go"

	"github.com/dokzlo13/stripd/internal/color"
)

// maxCatchUp bounds how many skipped ticks are simulated in one call.
// Sparks have long decayed by then.
const maxCatchUp = 64

// SparkleParams configures a Sparkle.
type SparkleParams struct {
	BaseHue   float64 `yaml:"base_hue"`   // Centre hue in degrees
	HueRange  float64 `yaml:"hue_range"`  // Maximum hue deviation either side of BaseHue
	Ignite    float64 `yaml:"ignite"`     // Probability per pixel per tick of a new spark
	Decay     float64 `yaml:"decay"`      // Spark level lost per tick
	Smear     bool    `yaml:"smear"`      // Spread spark levels to neighbouring pixels
	BaseLevel float64 `yaml:"base_level"` // Brightness of the background field
	Drift     float64 `yaml:"drift"`      // Background field movement per tick
	Scale     float64 `yaml:"scale"`      // Background field detail per pixel
	White     float64 `yaml:"white"`      // White element per unit of spark level
	Seed      int64   `yaml:"seed"`       // Random seed, 0 picks one at construction
}

// DefaultSparkleParams returns the parameters used when none are configured.
func DefaultSparkleParams() SparkleParams {
	return SparkleParams{
		BaseHue:   198,
		HueRange:  18,
		Ignite:    0.015,
		Decay:     0.08,
		BaseLevel: 0.15,
		Drift:     0.01,
		Scale:     0.05,
		White:     0.4,
	}
}

// Sparkle is the aurora routine: a slowly shifting background colour field
// with short-lived sparks that ignite at random and decay linearly.
type Sparkle struct {
	name   string
	params SparkleParams
	rng    *rand.Rand
	noise  opensimplex.Noise
	clock  clock
	t      float64
	levels []float64
	hues   []float64
}

// NewSparkle creates a sparkle routine.
func NewSparkle(name string, params SparkleParams) *Sparkle {
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sparkle{
		name:   name,
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		noise:  opensimplex.NewNormalized(seed),
	}
}

// Name implements Routine.
func (s *Sparkle) Name() string { return s.name }

// Render implements Routine.
func (s *Sparkle) Render(tick uint64, n int) color.Frame {
	s.resize(n)

	delta := s.clock.advance(tick, 1)
	steps := delta
	if steps > maxCatchUp {
		steps = maxCatchUp
	}
	for i := uint64(0); i < steps; i++ {
		s.step()
	}
	s.t += s.params.Drift * float64(delta)

	f := color.NewFrame(n)
	for i := range f {
		v := s.noise.Eval2(float64(i)*s.params.Scale, s.t)
		fieldHue := s.params.BaseHue + (v-0.5)*2*s.params.HueRange
		fieldLevel := s.params.BaseLevel * v

		l := s.levels[i]
		f[i] = color.HSVW{
			H: fieldHue*(1-l) + s.hues[i]*l,
			S: 1,
			V: fieldLevel + (1-fieldLevel)*l,
			W: s.params.White * l,
		}.ToRGBW()
	}
	return f
}

// step advances spark state by exactly one tick.
func (s *Sparkle) step() {
	n := len(s.levels)
	if n == 0 {
		return
	}

	for i := range s.levels {
		s.levels[i] -= s.params.Decay
		if s.levels[i] < 0 {
			s.levels[i] = 0
		}
	}

	if s.params.Smear && n > 2 {
		smeared := make([]float64, n)
		for i := range s.levels {
			prev := s.levels[(i-1+n)%n]
			next := s.levels[(i+1)%n]
			smeared[i] = (prev + 2*s.levels[i] + next) / 4
		}
		s.levels = smeared
	}

	for i := range s.levels {
		if s.rng.Float64() < s.params.Ignite {
			s.levels[i] = 1
			s.hues[i] = s.params.BaseHue + (s.rng.Float64()*2-1)*s.params.HueRange
		}
	}
}

func (s *Sparkle) resize(n int) {
	if n < 0 {
		n = 0
	}
	if len(s.levels) == n {
		return
	}
	levels := make([]float64, n)
	hues := make([]float64, n)
	copy(levels, s.levels)
	copy(hues, s.hues)
	for i := len(s.hues); i < n; i++ {
		hues[i] = s.params.BaseHue
	}
	s.levels = levels
	s.hues = hues
}
