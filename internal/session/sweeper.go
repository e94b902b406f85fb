package session

import (
	"context"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/logger"
	"go.uber.org/zap"
)

// ExpiredDeleter removes expired session rows in bounded batches.
type ExpiredDeleter interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time, limit int) (int64, error)
}

// Sweeper complements lazy read-time expiry with a bounded periodic sweep so
// storage shrinks even for sessions that are never read again.
type Sweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	batch    int
	done     chan struct{}
}

// NewSweeper creates a sweeper; Start must be called to begin sweeping.
func NewSweeper(store ExpiredDeleter, cfg *config.Config) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: cfg.Session.SweepInterval,
		batch:    cfg.Session.SweepBatch,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.done)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteExpiredSessions(ctx, time.Now(), s.batch)
	if err != nil {
		logger.Warn("Session sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		logger.Info("Swept expired sessions", zap.Int64("deleted", deleted))
	}
}
