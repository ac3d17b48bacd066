package provider

import (
	"context"
	"sync/atomic"
	"time"
)

// Gate bounds the number of concurrent provider calls and carries a shared
// rate-limit cooldown. When any worker receives a rate-limit response it arms
// the cooldown; every worker about to start a call waits for it to expire
// first, so one 429 slows the whole fan-out instead of each goroutine
// discovering the limit on its own.
type Gate struct {
	sem chan struct{}

	// cooldownUntil is a unix-nano deadline; 0 means no active cooldown.
	cooldownUntil atomic.Int64
}

// NewGate returns a Gate admitting at most n concurrent calls. n < 1 is
// treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: make(chan struct{}, n)}
}

// Acquire blocks until a concurrency slot is free and any active cooldown
// has expired. Callers must Release the slot when the call finishes.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := g.WaitCooldown(ctx); err != nil {
		<-g.sem
		return err
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	<-g.sem
}

// ArmCooldown pauses all new calls for at least d. Concurrent arms keep the
// latest deadline; an earlier one never shortens an active cooldown.
func (g *Gate) ArmCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d).UnixNano()
	for {
		cur := g.cooldownUntil.Load()
		if cur >= deadline {
			return
		}
		if g.cooldownUntil.CompareAndSwap(cur, deadline) {
			return
		}
	}
}

// WaitCooldown blocks until the active cooldown (if any) expires.
func (g *Gate) WaitCooldown(ctx context.Context) error {
	for {
		until := g.cooldownUntil.Load()
		if until == 0 {
			return nil
		}
		wait := time.Until(time.Unix(0, until))
		if wait <= 0 {
			// Expired; clear it so later waiters skip the timer path.
			g.cooldownUntil.CompareAndSwap(until, 0)
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// CoolingDown reports whether a cooldown is currently active.
func (g *Gate) CoolingDown() bool {
	until := g.cooldownUntil.Load()
	return until != 0 && time.Now().UnixNano() < until
}
