package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/ledger"
)

// LedgerService prunes old ledger entries.
type LedgerService struct {
	ledger    *ledger.Ledger
	retention time.Duration
	interval  time.Duration
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(l *ledger.Ledger, retention, interval time.Duration) *LedgerService {
	return &LedgerService{
		ledger:    l,
		retention: retention,
		interval:  interval,
	}
}

// Start runs one cleanup immediately and then periodically.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

// runCleanup periodically cleans up old ledger entries.
func (s *LedgerService) runCleanup(ctx context.Context) {
	s.cleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *LedgerService) cleanup() {
	deleted, err := s.ledger.DeleteOlderThan(s.retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", s.retention).Msg("Cleaned up old ledger entries")
	}
}

func retentionPeriod(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
