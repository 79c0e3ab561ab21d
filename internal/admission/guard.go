package admission

import (
	"context"
	"log"
	"sync"
	"time"
)

// Guard admits or rejects new connections by source address. Each source
// keeps a ledger of its admission timestamps inside a trailing window; a
// source over budget is denied until its oldest admission ages out.
type Guard struct {
	mu     sync.Mutex
	window time.Duration
	budget int
	ledger map[string][]time.Time
}

// NewGuard creates a guard allowing budget admissions per source within
// each trailing window.
func NewGuard(window time.Duration, budget int) *Guard {
	return &Guard{
		window: window,
		budget: budget,
		ledger: make(map[string][]time.Time),
	}
}

// Allow records an admission attempt from source and reports whether it is
// within budget. Denied attempts are not recorded, so a flooding source is
// re-admitted as soon as its oldest successful admission leaves the window.
func (g *Guard) Allow(source string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	stamps := pruneBefore(g.ledger[source], now.Add(-g.window))

	if len(stamps) >= g.budget {
		g.ledger[source] = stamps
		return false
	}

	g.ledger[source] = append(stamps, now)
	return true
}

// Sweep drops ledger entries whose admissions have all aged out, bounding
// memory for sources that stop connecting.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.window)
	for source, stamps := range g.ledger {
		stamps = pruneBefore(stamps, cutoff)
		if len(stamps) == 0 {
			delete(g.ledger, source)
		} else {
			g.ledger[source] = stamps
		}
	}
}

// Run sweeps the ledger on the given interval until ctx is cancelled.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-ctx.Done():
			log.Println("Admission sweep stopped")
			return
		}
	}
}

// pruneBefore drops leading timestamps at or before cutoff. Stamps are
// appended in order, so the suffix from the first live stamp is the window.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
