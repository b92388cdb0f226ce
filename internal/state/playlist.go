package state

import (
	"github.com/dokzlo13/stripd/internal/control"
)

// Playlist state location.
const (
	KindPlaylist      = "playlist"
	DefaultPlaylistID = "default"
)

// PlaylistStore saves and loads the playlist position, power and
// brightness so a restart resumes where it left off.
type PlaylistStore struct {
	typed *TypedStore[control.State]
	id    string
}

// NewPlaylistStore creates a playlist store for the named playlist.
func NewPlaylistStore(store *Store, id string) *PlaylistStore {
	if id == "" {
		id = DefaultPlaylistID
	}
	return &PlaylistStore{
		typed: NewTypedStore[control.State](store, KindPlaylist),
		id:    id,
	}
}

// Load returns the saved state. ok is false when nothing was saved.
func (p *PlaylistStore) Load() (st control.State, ok bool, err error) {
	st, version, err := p.typed.Get(p.id)
	if err != nil {
		return control.State{}, false, err
	}
	return st, version > 0, nil
}

// Save stores st.
func (p *PlaylistStore) Save(st control.State) error {
	return p.typed.Set(p.id, st)
}

// Clear forgets the saved state.
func (p *PlaylistStore) Clear() error {
	return p.typed.Delete(p.id)
}
