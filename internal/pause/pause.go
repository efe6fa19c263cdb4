// Package pause holds the fixed, context-aware waits used between remote calls.
package pause

import (
	"context"
	"time"
)

// For waits d or until ctx is done, whichever comes first. It returns
// ctx.Err() when the wait was cut short, and also when d is not positive
// and ctx is already done.
func For(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
