package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/metrics"
)

// Scanner is the periodic job the scheduler drives
type Scanner interface {
	ScanAll(ctx context.Context) error
}

// AlertScheduler sweeps for low stock and expiring batches on a fixed
// interval. Each sweep gets at most one interval to finish so a slow
// database cannot stack sweeps up.
type AlertScheduler struct {
	scanner  Scanner
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAlertScheduler creates a scheduler; m may be nil. A non-positive
// interval means hourly.
func NewAlertScheduler(scanner Scanner, interval time.Duration, m *metrics.Metrics, log *logger.Logger) *AlertScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AlertScheduler{
		scanner:  scanner,
		interval: interval,
		metrics:  m,
		logger:   log.WithComponent("alert_scheduler"),
	}
}

// Start sweeps once right away, then on every tick, until Stop or ctx ends.
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.sweep(ctx)

			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the scheduler and waits for a running sweep to return
func (s *AlertScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *AlertScheduler) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	start := time.Now()
	err := s.scanner.ScanAll(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.ObserveSweep("error", elapsed)
		s.logger.Error().Err(err).Dur("duration", elapsed).Msg("alert sweep finished with errors")
		return
	}
	s.metrics.ObserveSweep("ok", elapsed)
	s.logger.Debug().Dur("duration", elapsed).Msg("alert sweep completed")
}
