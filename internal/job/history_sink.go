package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/history"
)

// sendHistoryAsync dispatches one audit event off the supervisor goroutine
// with a short timeout. The sink is write-only and fire-and-forget (§3 of
// the domain stack): a slow or unreachable sink must never stall a tick.
func sendHistoryAsync(sink history.Sink, e history.Event, log *slog.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sink.Send(ctx, e); err != nil {
			log.Warn("history sink send failed", "error", err)
		}
	}()
}
