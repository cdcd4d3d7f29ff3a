package engine

import (
	"sync"
	"time"
)

// Countdown is a Scheduler backed by time.AfterFunc. Each Arm is tagged with
// a generation number that is passed to fire; a tick whose generation is no
// longer Current was superseded by a later Arm and must be dropped.
type Countdown struct {
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
	fire    func(gen uint64)
}

// NewCountdown calls fire from a timer goroutine whenever an armed countdown
// runs out.
func NewCountdown(fire func(gen uint64)) *Countdown {
	return &Countdown{fire: fire}
}

// Arm cancels any pending countdown and starts a new one of length d.
func (c *Countdown) Arm(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(d, func() { c.fire(gen) })
}

// Stop cancels the pending countdown. Later Arm calls are ignored.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Current reports whether gen is the latest armed countdown and it has not
// been stopped.
func (c *Countdown) Current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped && gen == c.gen
}

func (c *Countdown) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
