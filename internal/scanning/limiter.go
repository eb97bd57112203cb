package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter bounds the number of nmap processes running at once. Scheduled
// scans and API-triggered scans share one limiter so they never overlap
// beyond its capacity.
type Limiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	mutex     sync.RWMutex
	closed    bool
}

// NewLimiter creates a limiter with the given number of slots.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &Limiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free for runID or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, runID string) error {
	l.mutex.RLock()
	closed := l.closed
	l.mutex.RUnlock()
	if closed {
		return fmt.Errorf("scan limiter is closed")
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mutex.Lock()
		l.active[runID] = time.Now()
		l.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot for runID only if one is free right now.
func (l *Limiter) TryAcquire(runID string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return false
	}

	select {
	case l.semaphore <- struct{}{}:
		l.active[runID] = time.Now()
		return true
	default:
		return false
	}
}

// Release frees the slot held by runID. Unknown ids are ignored.
func (l *Limiter) Release(runID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, exists := l.active[runID]; !exists {
		return
	}
	delete(l.active, runID)
	select {
	case <-l.semaphore:
	default:
	}
}

// Active returns the number of running scans.
func (l *Limiter) Active() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.active)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.capacity - len(l.active)
}

// Close rejects further acquisitions and drops all held slots.
func (l *Limiter) Close() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.active = make(map[string]time.Time)
	for {
		select {
		case <-l.semaphore:
		default:
			return
		}
	}
}
