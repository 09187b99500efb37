package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/peopleops/internal/store"
)

// purgeExpiredKeys deletes expired idempotency keys every interval until ctx
// is done. Keys past their TTL are already ignored by Reserve, this only
// reclaims the space.
func purgeExpiredKeys(ctx context.Context, log zerolog.Logger, purger store.ExpiredKeyPurger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, interval)
			removed, err := purger.PurgeExpired(purgeCtx)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("Failed to purge expired idempotency keys")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Purged expired idempotency keys")
			}
		case <-ctx.Done():
			return
		}
	}
}
