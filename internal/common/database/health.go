package database

import (
	"context"
	"time"
)

// Pinger is any backing service that can report liveness.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency with its own timeout and returns the
// status per dependency name ("ok" or the error text).
func CheckAll(ctx context.Context, timeout time.Duration, deps ...Pinger) (map[string]string, bool) {
	status := make(map[string]string, len(deps))
	healthy := true
	for _, d := range deps {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := d.Ping(pingCtx)
		cancel()
		if err != nil {
			status[d.Name()] = err.Error()
			healthy = false
			continue
		}
		status[d.Name()] = "ok"
	}
	return status, healthy
}
