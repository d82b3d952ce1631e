// Package monitoring reports sink failures and goroutine panics to an error
// tracker. The default monitor discards everything.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

// NopMonitor is used when no tracker is configured.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process monitor and returns the previous one so
// tests can restore it. A nil monitor is ignored.
func Init(m Monitor) Monitor {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if m != nil {
		current = m
	}
	return prev
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// CaptureSinkError tags err with the session it was produced for.
func CaptureSinkError(sessionID string, err error) {
	CaptureException(err, map[string]string{"module": "sink", "session_id": sessionID})
}

// Recover reports a panic and re-raises it. It must be deferred directly:
// defer monitoring.Recover().
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.CapturePanic(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Go runs fn in a goroutine guarded by Recover.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
