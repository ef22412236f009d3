package orchestrator

import (
	"context"
	"time"
)

// withTimeout wraps context.WithTimeout, treating a non-positive duration as
// "no extra timeout" (parent ctx's own deadline/cancellation still applies).
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
