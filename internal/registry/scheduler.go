package registry

import (
	"context"
	"log/slog"
	"time"

	"papertrade/internal/telemetry"
)

// Scheduler drives Refresh on a fixed interval. Refresh failures are logged
// and the loop keeps running; only context cancellation stops it.
type Scheduler struct {
	interval time.Duration
	service  *Service
}

func NewScheduler(interval time.Duration, service *Service) *Scheduler {
	return &Scheduler{interval: interval, service: service}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.service.Refresh(ctx)
	telemetry.RefreshRun(result.Updated)
	if err != nil {
		slog.Error("price refresh failed", "error", err, "updated", result.Updated, "total", result.Total)
		return
	}
	if result.Updated > 0 {
		slog.Info("prices refreshed", "updated", result.Updated, "total", result.Total)
	}
}
