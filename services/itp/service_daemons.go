package itp

import (
	"context"
	"log/slog"
	"time"
)

// RefreshDaemon re-checks every vehicle on the configured interval
// until the context is cancelled. Each sweep gets its own deadline so
// a wedged upstream cannot block the next cycle forever.
func (s *Service) RefreshDaemon(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Hour)
			slog.InfoContext(sweepCtx, "starting scheduled itp refresh", "vehicles", len(s.vehicles))
			s.RefreshAll(sweepCtx)
			cancel()
		}
	}
}
