package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/control"
	"github.com/dokzlo13/stripd/internal/ledger"
	"github.com/dokzlo13/stripd/internal/state"
)

// RenderService runs the render loop and, when resuming is enabled, saves
// the playlist state whenever a control event changes it.
type RenderService struct {
	Engine *control.Engine

	store  *state.PlaylistStore // nil when resume is disabled
	ledger *ledger.Ledger
	wg     sync.WaitGroup
}

// NewRenderService creates a new RenderService.
func NewRenderService(engine *control.Engine, store *state.PlaylistStore, l *ledger.Ledger) *RenderService {
	return &RenderService{
		Engine: engine,
		store:  store,
		ledger: l,
	}
}

// Restore applies saved state to the adapter before the loop starts. It
// reports whether saved state was found.
func (s *RenderService) Restore(a *control.Adapter) (control.State, bool) {
	if s.store == nil {
		return control.State{}, false
	}
	st, ok, err := s.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load playlist state, starting fresh")
		return control.State{}, false
	}
	if !ok {
		return control.State{}, false
	}

	a.Restore(st)
	log.Info().
		Str("routine", st.Routine).
		Int("cursor", st.Cursor).
		Bool("powered", st.Powered).
		Float64("brightness", st.Brightness).
		Msg("Restored playlist state")

	if s.ledger != nil {
		if err := s.ledger.Append(ledger.EventStateRestored, "startup", map[string]any{
			"routine":    st.Routine,
			"cursor":     st.Cursor,
			"powered":    st.Powered,
			"brightness": st.Brightness,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to record state restore")
		}
	}
	return st, true
}

// Start runs the render loop and the state saver.
func (s *RenderService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Render loop error")
		}
	}()

	if s.store == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-s.Engine.Changes():
				s.save(st)
			}
		}
	}()
}

// Wait blocks until the render loop has written its last frame.
func (s *RenderService) Wait() {
	s.wg.Wait()
}

// SaveNow stores the current state; it is called once more on shutdown.
func (s *RenderService) SaveNow() {
	if s.store == nil {
		return
	}
	var st control.State
	_ = s.Engine.Do(func(a *control.Adapter) error {
		st = a.State()
		return nil
	})
	s.save(st)
}

func (s *RenderService) save(st control.State) {
	if err := s.store.Save(st); err != nil {
		log.Error().Err(err).Msg("Failed to save playlist state")
		return
	}
	log.Debug().
		Str("routine", st.Routine).
		Bool("powered", st.Powered).
		Float64("brightness", st.Brightness).
		Msg("Saved playlist state")
}
