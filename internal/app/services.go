package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/compositor"
	"github.com/dokzlo13/stripd/internal/config"
	"github.com/dokzlo13/stripd/internal/control"
	"github.com/dokzlo13/stripd/internal/db"
	"github.com/dokzlo13/stripd/internal/driver"
	"github.com/dokzlo13/stripd/internal/eventbus"
	"github.com/dokzlo13/stripd/internal/ledger"
	"github.com/dokzlo13/stripd/internal/playlist"
	"github.com/dokzlo13/stripd/internal/routine"
	"github.com/dokzlo13/stripd/internal/state"
	"github.com/dokzlo13/stripd/internal/webhook"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger // nil when disabled

	// State store (generic JSON store)
	Store         *state.Store
	PlaylistStore *state.PlaylistStore

	// Rendering
	Routines []routine.Routine
	Adapter  *control.Adapter
	Sink     driver.Sink
	Bus      *eventbus.Bus

	// High-level services
	Render  *RenderService
	Events  *EventService
	Hue     *HueService // nil when disabled
	Ledgers *LedgerService
	Webhook *WebhookService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	if cfg.Ledger.IsEnabled() {
		s.Ledger = ledger.New(database.DB)
		s.Ledgers = NewLedgerService(
			s.Ledger,
			retentionPeriod(cfg.Ledger.RetentionDays),
			cfg.Ledger.CleanupInterval.Duration(),
		)
	}

	// Initialize generic state store
	s.Store = state.NewStore(database.DB)
	s.PlaylistStore = state.NewPlaylistStore(s.Store, cfg.Playlist.Name)

	// Build the playlist
	s.Routines, err = routine.NewRegistry().BuildAll(cfg.Playlist.Routines)
	if err != nil {
		s.Close()
		return nil, err
	}
	if len(s.Routines) == 0 {
		log.Warn().Msg("Playlist is empty, the strip will stay off")
	}

	curve, err := compositor.CurveByName(cfg.Fade.Curve)
	if err != nil {
		s.Close()
		return nil, err
	}
	comp := compositor.New(cfg.Strip.Pixels,
		compositor.WithCurve(curve),
		compositor.WithBrightness(cfg.Brightness.GetInitial()),
	)
	s.Adapter = control.NewAdapter(playlist.New(s.Routines...), comp, control.AdapterConfig{
		Fade: cfg.Fade.GetDuration(),
		Step: cfg.Brightness.Step,
	})

	// Open the strip
	s.Sink, err = driver.Open(driver.Config{
		Type:    cfg.Driver.Type,
		Address: cfg.Driver.Address,
		Channel: cfg.Driver.Channel,
		RGBW:    cfg.Driver.RGBW,
		Device:  cfg.Driver.Device,
		Baud:    cfg.Driver.Baud,
		Order:   cfg.Driver.Order,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open driver: %w", err)
	}

	engine := control.NewEngine(s.Adapter, s.Sink, control.EngineConfig{
		FPS:           cfg.Strip.FPS,
		Gamma:         cfg.Strip.Gamma,
		StatsInterval: cfg.Metrics.Interval.Duration(),
		BlankOnExit:   cfg.Strip.GetBlankOnExit(),
	})

	var saved *state.PlaylistStore
	if cfg.Playlist.Resume {
		saved = s.PlaylistStore
	}
	s.Render = NewRenderService(engine, saved, s.Ledger)

	// Initialize event bus
	s.Bus = eventbus.NewWithQueueSize(cfg.EventBus.GetQueueSize())
	s.Events = NewEventService(cfg, s.Bus, engine, s.Ledger)

	if cfg.Inputs.Hue.Enabled {
		s.Hue = NewHueService(cfg)
	}

	// A nil *ledger.Ledger must not end up in a non-nil interface
	var history webhook.History
	if s.Ledger != nil {
		history = s.Ledger
	}
	s.Webhook = NewWebhookService(cfg, engine, s.Bus, history)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., max reconnects exceeded).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	powered := !s.cfg.Playlist.StartOff
	if st, ok := s.Render.Restore(s.Adapter); ok {
		powered = st.Powered
	}
	if powered && len(s.Routines) > 0 {
		if err := s.Adapter.Start(); err != nil {
			return err
		}
	}

	// Connect to Hue bridge before anything can publish
	if s.Hue != nil {
		if err := s.Hue.Start(ctx); err != nil {
			return err
		}
	}

	s.Events.Start(ctx)
	s.Render.Start(ctx)

	if s.Hue != nil {
		s.Hue.StartBackground(ctx, s.Events.Router, onFatalError)
	}
	if s.Ledgers != nil {
		s.Ledgers.Start(ctx)
	}
	s.Webhook.Start(ctx)

	return nil
}

// ClearState forgets the saved playlist state.
func (s *Services) ClearState() error {
	return s.PlaylistStore.Clear()
}

// Stop gracefully stops all services. The context passed to Start must
// already be cancelled.
func (s *Services) Stop() error {
	s.Events.Close(s.cfg.GetShutdownTimeout())
	s.Render.Wait()
	if s.cfg.Playlist.Resume {
		s.Render.SaveNow()
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Hue != nil {
		s.Hue.Close()
	}
	if s.Sink != nil {
		if err := s.Sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close driver")
		}
	}
	routine.CloseAll(s.Routines)
	if s.DB != nil {
		s.DB.Close()
	}
}
