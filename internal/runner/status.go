package runner

import (
	"sync/atomic"
	"time"
)

// StatusKey is one of the nine tagged states a Runner's lifecycle can be
// in. See spec.md §3/§4.3 for the full state machine.
type StatusKey string

const (
	StatusBooting      StatusKey = "BOOTING"
	StatusBlocking     StatusKey = "BLOCKING"
	StatusRunningReady StatusKey = "RUNNING_READY"
	StatusRunning      StatusKey = "RUNNING"
	StatusStopping     StatusKey = "STOPPING"
	StatusStopped      StatusKey = "STOPPED"
	StatusDestroyed    StatusKey = "DESTROYED"
	StatusSignalReady  StatusKey = "SIGNAL_READY"
	StatusSignalSent   StatusKey = "SIGNAL_SENT"
)

// Status is a tagged value: a key plus its key-specific data. Every
// transition builds a new Status rather than mutating the prior one —
// readers always see a complete, consistent snapshot. Data always
// carries "changed_time"; the other keys listed in spec.md §3 are added
// by whichever transition produced this Status.
type Status struct {
	Key  StatusKey
	Data map[string]any
}

func newStatus(key StatusKey, data map[string]any) Status {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["changed_time"] = time.Now()
	return Status{Key: key, Data: out}
}

// statusBox holds the current Status behind an atomic pointer so that
// many concurrent observers (status_snapshot callers, RPC handlers) can
// read it without taking a lock, while the single owning monitor
// goroutine is the only writer. This is the Go realization of spec.md
// §5's "status writes are sequential and synchronous relative to their
// owning task" guarantee.
type statusBox struct {
	v atomic.Pointer[Status]
}

func (b *statusBox) set(key StatusKey, data map[string]any) Status {
	s := newStatus(key, data)
	b.v.Store(&s)
	return s
}

func (b *statusBox) get() Status {
	p := b.v.Load()
	if p == nil {
		return Status{Key: "", Data: map[string]any{}}
	}
	return *p
}
