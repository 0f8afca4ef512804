package reservation

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sweeper periodically expires overdue reservations. It runs until its
// context is cancelled.
type Sweeper struct {
	coord    *Coordinator
	interval time.Duration
	logger   *zap.Logger
	swept    prometheus.Counter
}

type SweeperOption func(*Sweeper)

// WithSweepCounter wires a metric incremented per expired reservation.
func WithSweepCounter(c prometheus.Counter) SweeperOption {
	return func(s *Sweeper) {
		s.swept = c
	}
}

func NewSweeper(coord *Coordinator, interval time.Duration, logger *zap.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		coord:    coord,
		interval: interval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.coord.SweepExpired(ctx)
			if n > 0 {
				s.logger.Info("expired reservations released", zap.Int("count", n))
				if s.swept != nil {
					s.swept.Add(float64(n))
				}
			}
		}
	}
}
