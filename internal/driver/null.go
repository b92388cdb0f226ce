package driver

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/color"
)

// Null discards frames. It lets the daemon run without hardware.
type Null struct {
	frames uint64
}

// NewNull creates a null sink.
func NewNull() *Null {
	log.Warn().Msg("No strip driver configured, frames are discarded")
	return &Null{}
}

// Write implements Sink.
func (n *Null) Write(_ context.Context, f color.Frame) error {
	n.frames++
	if e := log.Trace(); e.Enabled() {
		first := color.Off
		if len(f) > 0 {
			first = f[0]
		}
		e.Uint64("frame", n.frames).Int("pixels", len(f)).Stringer("first", first).Msg("Frame")
	}
	return nil
}

// Frames returns how many frames were written.
func (n *Null) Frames() uint64 { return n.frames }

// Close implements Sink.
func (n *Null) Close() error { return nil }
