package utils

import (
	"context"
	"time"
)

// NewTicker calls f every interval until f reports done, f fails or ctx ends.
// It returns true only when f reported done.
func NewTicker(ctx context.Context, interval time.Duration, f func() (bool, error), immediate bool) (bool, error) {
	if immediate {
		if done, err := f(); done || err != nil {
			return done, err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			done, err := f()
			if err != nil {
				return false, err
			}
			if done {
				return true, nil
			}
		}
	}
}
