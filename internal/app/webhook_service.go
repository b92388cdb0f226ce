package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/config"
	"github.com/dokzlo13/stripd/internal/webhook"
)

// WebhookService wraps the HTTP control and status server.
type WebhookService struct {
	cfg    *config.Config
	server *webhook.Server
}

// NewWebhookService creates a new WebhookService. history may be nil.
func NewWebhookService(cfg *config.Config, engine webhook.Engine, bus webhook.Publisher, history webhook.History) *WebhookService {
	server := webhook.NewServer(cfg.HTTP.GetHost(), cfg.HTTP.GetPort(), engine, bus, history)
	return &WebhookService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the HTTP server if enabled.
func (s *WebhookService) Start(ctx context.Context) {
	if !s.cfg.HTTP.Enabled {
		log.Debug().Msg("HTTP server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}
