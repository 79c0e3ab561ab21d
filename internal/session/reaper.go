package session

import (
	"context"
	"log"
	"time"
)

// Reaper is the only deletion path for vacated sessions. It sweeps the
// registry on a fixed period and removes sessions that have been fully
// vacant past the grace period, bounding memory growth from abandoned
// rooms.
type Reaper struct {
	registry *Registry
	period   time.Duration
	grace    time.Duration
}

// NewReaper creates a reaper sweeping registry every period, deleting
// sessions vacant for longer than grace.
func NewReaper(registry *Registry, period, grace time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		period:   period,
		grace:    grace,
	}
}

// Run sweeps until ctx is cancelled.
func (rp *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if reaped := rp.registry.reap(rp.grace); reaped > 0 {
				log.Printf("Reaped %d abandoned sessions, %d live", reaped, rp.registry.Len())
			}
		case <-ctx.Done():
			log.Println("Session reaper stopped")
			return
		}
	}
}
