// Package playlist holds the ordered, cursor-addressed set of routines the
// control buttons scroll through.
package playlist

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/stripd/internal/routine"
)

var (
	// ErrEmptyPlaylist is returned when an operation needs a current routine
	// and the playlist has none.
	ErrEmptyPlaylist = errors.New("playlist is empty")
	// ErrIndexOutOfRange is returned for positions outside the playlist.
	ErrIndexOutOfRange = errors.New("playlist index out of range")
)

// Playlist is an ordered sequence of routines with a cursor. The cursor is
// always a valid index while the playlist is non-empty and 0 otherwise.
//
// A Playlist is owned by the render loop and is not safe for concurrent use.
type Playlist struct {
	items  []routine.Routine
	cursor int
}

// New creates a playlist with the cursor on the first routine.
func New(items ...routine.Routine) *Playlist {
	p := &Playlist{}
	for _, item := range items {
		if item != nil {
			p.items = append(p.items, item)
		}
	}
	return p
}

// Len returns the number of routines.
func (p *Playlist) Len() int {
	return len(p.items)
}

// Cursor returns the index of the current routine.
func (p *Playlist) Cursor() int {
	return p.cursor
}

// Items returns a copy of the routines in scroll order.
func (p *Playlist) Items() []routine.Routine {
	out := make([]routine.Routine, len(p.items))
	copy(out, p.items)
	return out
}

// Current returns the routine under the cursor.
func (p *Playlist) Current() (routine.Routine, error) {
	if len(p.items) == 0 {
		return nil, ErrEmptyPlaylist
	}
	return p.items[p.cursor], nil
}

// Next advances the cursor with wraparound and returns the new current
// routine, or nil when the playlist is empty.
func (p *Playlist) Next() routine.Routine {
	return p.move(1)
}

// Previous retreats the cursor with wraparound and returns the new current
// routine, or nil when the playlist is empty.
func (p *Playlist) Previous() routine.Routine {
	return p.move(-1)
}

func (p *Playlist) move(delta int) routine.Routine {
	n := len(p.items)
	if n == 0 {
		return nil
	}
	p.cursor = ((p.cursor+delta)%n + n) % n
	return p.items[p.cursor]
}

// Select moves the cursor to index.
func (p *Playlist) Select(index int) (routine.Routine, error) {
	if len(p.items) == 0 {
		return nil, ErrEmptyPlaylist
	}
	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(p.items))
	}
	p.cursor = index
	return p.items[index], nil
}

// IndexOf returns the position of r, or -1.
func (p *Playlist) IndexOf(r routine.Routine) int {
	for i, item := range p.items {
		if item == r {
			return i
		}
	}
	return -1
}

// Find returns the position of the first routine with the given name, or -1.
func (p *Playlist) Find(name string) int {
	for i, item := range p.items {
		if item.Name() == name {
			return i
		}
	}
	return -1
}

// Append adds r at the end.
func (p *Playlist) Append(r routine.Routine) {
	p.items = append(p.items, r)
}

// Insert places r at index (0..Len). The current routine stays current.
func (p *Playlist) Insert(index int, r routine.Routine) error {
	if r == nil {
		return errors.New("cannot insert nil routine")
	}
	if index < 0 || index > len(p.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(p.items))
	}

	p.items = append(p.items, nil)
	copy(p.items[index+1:], p.items[index:])
	p.items[index] = r

	if len(p.items) > 1 && index <= p.cursor {
		p.cursor++
	}
	return nil
}

// Remove deletes the routine at index and returns it. Removing the current
// routine makes the following one current, clamped to the last position.
func (p *Playlist) Remove(index int) (routine.Routine, error) {
	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(p.items))
	}

	removed := p.items[index]
	copy(p.items[index:], p.items[index+1:])
	p.items[len(p.items)-1] = nil
	p.items = p.items[:len(p.items)-1]

	switch {
	case len(p.items) == 0:
		p.cursor = 0
	case index < p.cursor:
		p.cursor--
	case p.cursor >= len(p.items):
		p.cursor = len(p.items) - 1
	}
	return removed, nil
}

// Clear removes every routine and returns them.
func (p *Playlist) Clear() []routine.Routine {
	removed := p.items
	p.items = nil
	p.cursor = 0
	return removed
}
