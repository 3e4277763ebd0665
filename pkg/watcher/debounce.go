package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events per key. Repeated calls for the same key
// within the delay reset its timer so only the last callback fires.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{timers: make(map[string]*time.Timer), delay: delay}
}

// Debounce schedules fn to run after the delay, replacing any pending
// callback for the same key.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Clear cancels every pending callback.
func (d *Debouncer) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Pending returns the number of callbacks waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
