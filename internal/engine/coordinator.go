package engine

import "sync"

// Coordinator serializes poll passes: at most one runs at a time, with at
// most one follow-up queued. Explicit triggers arriving mid-pass coalesce
// into that single follow-up; timer triggers arriving mid-pass are shed
// entirely, so a saturated loop degrades to eventually-consistent instead
// of building a backlog.
type Coordinator struct {
	mu      sync.Mutex
	running bool
	pending bool
	idle    *sync.Cond
	run     func()
}

func NewCoordinator(run func()) *Coordinator {
	c := &Coordinator{run: run}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Trigger requests a pass. When idle, the pass starts immediately on a new
// goroutine. When running, explicit triggers set the pending flag; timer
// triggers return without queueing.
func (c *Coordinator) Trigger(explicit bool) {
	c.mu.Lock()
	if c.running {
		if explicit {
			c.pending = true
		}
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.loop()
}

func (c *Coordinator) loop() {
	for {
		c.run()

		c.mu.Lock()
		if c.pending {
			c.pending = false
			c.mu.Unlock()
			continue
		}
		c.running = false
		c.idle.Broadcast()
		c.mu.Unlock()
		return
	}
}

// Wait blocks until no pass is running or queued. Used on shutdown so an
// in-flight pass finishes before publishers close.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	for c.running {
		c.idle.Wait()
	}
	c.mu.Unlock()
}
