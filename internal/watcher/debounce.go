package watcher

import (
	"sync"
	"time"
)

// debouncer implements spec.md §4.2's rule verbatim: "an event is processed
// (emitted) only if no prior event for the same path occurred within
// DEBOUNCE_MS". Every event — allowed or not — updates the path's
// last-seen timestamp, so a burst of edits produces exactly one emission
// (the leading one) followed by silence until the window has fully
// elapsed with no further events.
type debouncer struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	window   time.Duration
	now      func() time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		lastSeen: make(map[string]time.Time),
		window:   window,
		now:      time.Now,
	}
}

// allow reports whether an event of the given kind for path should be
// processed now. isDelete events always clear tracked state and pass,
// matching the Python handler's DELETED short-circuit.
func (d *debouncer) allow(path string, isDelete bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if isDelete {
		delete(d.lastSeen, path)
		return true
	}

	now := d.now()
	last, seen := d.lastSeen[path]
	d.lastSeen[path] = now
	return !seen || now.Sub(last) >= d.window
}
