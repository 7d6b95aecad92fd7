package globaltime

import (
	"sync"
	"time"
)

var (
	mu  sync.RWMutex
	now = time.Now
)

// Now returns the current time, or the mocked time when one is set.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return now()
}

func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime pins the clock for tests.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	now = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	now = time.Now
}
