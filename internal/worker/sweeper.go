package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
)

// Sweepable is the reconciliation work a sweep performs.
type Sweepable interface {
	AutoSync(ctx context.Context) error
	RefreshStatuses(ctx context.Context, bots []models.Bot) []models.Bot
}

// ActiveBots lists bots whose status may still change.
type ActiveBots interface {
	ListActive(ctx context.Context, host string) ([]models.Bot, error)
}

// Sweeper periodically refreshes active bot statuses and runs the bounded auto-sync,
// so recordings appear even when nobody opens the dashboard and a webhook was lost.
type Sweeper struct {
	sync     Sweepable
	bots     ActiveBots
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval defaults to five minutes.
func NewSweeper(svc Sweepable, bots ActiveBots, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{sync: svc, bots: bots, interval: interval, logger: logger}
}

// Start begins the sweep loop. Call Stop to release resources.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	<-s.done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged; the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	active, err := s.bots.ListActive(ctx, "")
	if err != nil {
		s.logger.Warn("sweep: list active bots failed", zap.Error(err))
	} else if len(active) > 0 {
		s.sync.RefreshStatuses(ctx, active)
	}
	if err := s.sync.AutoSync(ctx); err != nil {
		s.logger.Warn("sweep: auto-sync failed", zap.Error(err))
	}
}
