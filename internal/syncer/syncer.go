package syncer

import (
	"context"
	"log"
	"time"

	"lock-sync-backend/config"
)

// Resyncer re-reads the authoritative state of every managed lock.
type Resyncer interface {
	ResyncAll(ctx context.Context) error
}

// Service periodically resyncs all locks so that missed push events are eventually corrected.
type Service struct {
	cfg   config.SyncConfig
	locks Resyncer
}

// NewService creates a resync loop.
func NewService(cfg config.SyncConfig, locks Resyncer) *Service {
	return &Service{cfg: cfg, locks: locks}
}

// Run resyncs every configured interval until ctx is cancelled. The first cycle runs after one interval
// since onboarding already hydrated every lock.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Periodic sync is disabled. Not starting.")
		return
	}
	if s.cfg.Interval <= 0 {
		log.Printf("Invalid sync interval %v. Not starting.", s.cfg.Interval)
		return
	}
	log.Printf("Starting sync service (every %s)...", s.cfg.Interval)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sync service shutting down.")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SyncOnce performs a single resync round.
func (s *Service) SyncOnce(ctx context.Context) {
	log.Println("Executing sync cycle...")
	start := time.Now()
	if err := s.locks.ResyncAll(ctx); err != nil {
		log.Printf("Sync cycle finished with errors: %v", err)
		return
	}
	log.Printf("Sync cycle finished in %s.", time.Since(start).Round(time.Millisecond))
}
