package compositor

import (
	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/routine"
)

// mix is an interrupted fade held at a fixed position. It keeps rendering
// both of its routines so it can fade out as a whole.
type mix struct {
	outgoing routine.Routine
	incoming routine.Routine
	alpha    float64
}

func (m *mix) Name() string {
	return m.outgoing.Name() + ">" + m.incoming.Name()
}

func (m *mix) Render(tick uint64, n int) color.Frame {
	out := m.outgoing.Render(tick, n).Resize(n)
	in := m.incoming.Render(tick, n).Resize(n)
	return color.BlendFrames(out, in, m.alpha)
}

// holds reports whether r is, or is part of, src.
func holds(src, r routine.Routine) bool {
	if src == r {
		return true
	}
	if m, ok := src.(*mix); ok {
		return holds(m.outgoing, r) || holds(m.incoming, r)
	}
	return false
}
