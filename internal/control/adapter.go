package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/compositor"
	"github.com/dokzlo13/stripd/internal/playlist"
	"github.com/dokzlo13/stripd/internal/routine"
)

// Default adapter settings.
const (
	DefaultFade           = 2 * time.Second
	DefaultBrightnessStep = 0.1
)

// ErrUnknownKind is returned for events the adapter does not handle.
var ErrUnknownKind = errors.New("unknown control event kind")

// AdapterConfig holds the adapter settings.
type AdapterConfig struct {
	// Fade is the cross-fade duration for routine changes and power. Zero
	// switches immediately.
	Fade time.Duration
	// Step is the brightness change per brightness_up/down step.
	Step float64
}

// State is the part of the adapter that survives restarts.
type State struct {
	Routine    string  `json:"routine"`
	Cursor     int     `json:"cursor"`
	Powered    bool    `json:"powered"`
	Brightness float64 `json:"brightness"`
}

// Adapter applies control events to a playlist and a compositor. Like the
// compositor it is owned by the render loop.
type Adapter struct {
	playlist *playlist.Playlist
	comp     *compositor.Compositor
	off      routine.Routine

	fade    time.Duration
	step    float64
	powered bool
}

// NewAdapter creates an adapter. The strip starts powered off until Start.
func NewAdapter(pl *playlist.Playlist, comp *compositor.Compositor, cfg AdapterConfig) *Adapter {
	if cfg.Step <= 0 {
		cfg.Step = DefaultBrightnessStep
	}
	if cfg.Fade < 0 {
		cfg.Fade = 0
	}
	return &Adapter{
		playlist: pl,
		comp:     comp,
		off:      routine.NewOff("off"),
		fade:     cfg.Fade,
		step:     cfg.Step,
	}
}

// Playlist returns the playlist the adapter drives.
func (a *Adapter) Playlist() *playlist.Playlist { return a.playlist }

// Compositor returns the compositor the adapter drives.
func (a *Adapter) Compositor() *compositor.Compositor { return a.comp }

// Powered reports whether the strip is on.
func (a *Adapter) Powered() bool { return a.powered }

// Start powers the strip on, fading the current routine in from black.
// An empty playlist leaves the strip off.
func (a *Adapter) Start() error {
	return a.powerOn()
}

// Apply handles one control event.
func (a *Adapter) Apply(ev Event) error {
	switch ev.Kind {
	case KindNext:
		return a.show(a.playlist.Next())
	case KindPrevious:
		return a.show(a.playlist.Previous())
	case KindSelect:
		r, err := a.playlist.Select(ev.Index)
		if err != nil {
			return err
		}
		return a.show(r)
	case KindPowerOn:
		return a.powerOn()
	case KindPowerOff:
		a.powerOff()
		return nil
	case KindPowerToggle:
		if a.powered {
			a.powerOff()
			return nil
		}
		return a.powerOn()
	case KindBrightnessUp:
		a.adjustBrightness(a.step * float64(ev.steps()))
		return nil
	case KindBrightnessDown:
		a.adjustBrightness(-a.step * float64(ev.steps()))
		return nil
	case KindSetBrightness:
		b := a.comp.SetBrightness(ev.Value)
		log.Debug().Float64("brightness", b).Msg("Brightness set")
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
}

// Remove drops the named routine from the playlist. If it was showing, the
// new current routine takes over.
func (a *Adapter) Remove(name string) error {
	i := a.playlist.Find(name)
	if i < 0 {
		return fmt.Errorf("routine %q not in playlist", name)
	}
	r, err := a.playlist.Remove(i)
	if err != nil {
		return err
	}
	wasShowing := a.comp.Active() == r
	a.comp.Release(r)
	if c, ok := r.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("routine", name).Msg("Failed to close removed routine")
		}
	}

	if !wasShowing || !a.powered {
		return nil
	}
	cur, err := a.playlist.Current()
	if err != nil {
		a.powered = false
		return nil
	}
	a.comp.Cut(cur)
	return nil
}

// State returns the restartable adapter state.
func (a *Adapter) State() State {
	s := State{
		Cursor:     a.playlist.Cursor(),
		Powered:    a.powered,
		Brightness: a.comp.Brightness(),
	}
	if cur, err := a.playlist.Current(); err == nil {
		s.Routine = cur.Name()
	}
	return s
}

// Restore moves the cursor to the saved routine, preferring the name over
// the index, and restores brightness. It does not change power; call Start
// afterwards if s.Powered.
func (a *Adapter) Restore(s State) {
	if i := a.playlist.Find(s.Routine); i >= 0 {
		_, _ = a.playlist.Select(i)
	} else if _, err := a.playlist.Select(s.Cursor); err != nil {
		log.Debug().Int("cursor", s.Cursor).Msg("Saved cursor out of range, keeping default")
	}
	a.comp.SetBrightness(s.Brightness)
}

func (a *Adapter) show(r routine.Routine) error {
	if r == nil {
		return playlist.ErrEmptyPlaylist
	}
	a.powered = true
	a.transition(r)
	return nil
}

func (a *Adapter) powerOn() error {
	cur, err := a.playlist.Current()
	if err != nil {
		return err
	}
	return a.show(cur)
}

func (a *Adapter) powerOff() {
	a.powered = false
	a.transition(a.off)
}

func (a *Adapter) adjustBrightness(delta float64) {
	b := a.comp.SetBrightness(a.comp.Brightness() + delta)
	log.Debug().Float64("brightness", b).Msg("Brightness adjusted")
}

func (a *Adapter) transition(r routine.Routine) {
	if a.fade <= 0 {
		a.comp.Cut(r)
		return
	}
	a.comp.StartFade(r, a.fade)
}
