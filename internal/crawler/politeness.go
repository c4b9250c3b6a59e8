package crawler

import (
	"context"
	"time"
)

// DefaultPolitenessDelay separates consecutive page fetches against the site.
const DefaultPolitenessDelay = 2 * time.Second

// sleepCtx blocks for d or until ctx ends, whichever comes first. It reports
// whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
