package ratelimit

import (
	"sync"
	"time"
)

// window tracks request timestamps for one key within the sliding window.
type window struct {
	mu     sync.Mutex
	hits   []time.Time
	window time.Duration
	limit  int
}

// allow reports whether another request fits in the window, recording it if so.
func (w *window) allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept

	if len(w.hits) >= w.limit {
		return false
	}

	w.hits = append(w.hits, now)
	return true
}

// Limiter is a per-key sliding-window rate limiter for a single process.
type Limiter struct {
	mu      sync.RWMutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

// NewLimiter creates a limiter allowing limit requests per period per key.
func NewLimiter(limit int, period time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether a request from key is within the limit.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		w, ok = l.windows[key]
		if !ok {
			w = &window{window: l.period, limit: l.limit}
			l.windows[key] = w
		}
		l.mu.Unlock()
	}

	return w.allow(now)
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanupLoop drops idle windows so the map does not grow unbounded.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-l.period)

		l.mu.Lock()
		for key, w := range l.windows {
			w.mu.Lock()
			idle := len(w.hits) == 0 || !w.hits[len(w.hits)-1].After(cutoff)
			w.mu.Unlock()
			if idle {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}
