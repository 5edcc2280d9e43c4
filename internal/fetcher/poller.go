package fetcher

import (
	"context"
	"time"

	"articlewave/internal/logger"
)

// Refresher: то, что умеет фоново обновить текущий список.
type Refresher interface {
	Refresh()
}

// StartPolling вызывает r.Refresh раз в interval, пока ctx не отменён.
// Блокирует вызывающего; запускать в отдельной горутине.
func StartPolling(ctx context.Context, r Refresher, interval time.Duration) {
	log := logger.Log.WithFields(logger.Fields{
		"service":  "poller",
		"interval": interval.String(),
	})
	if interval <= 0 {
		log.Info("Polling disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug("Starting new refresh cycle")
			r.Refresh()

		case <-ctx.Done():
			log.Info("Stopping poller by context")
			return
		}
	}
}
