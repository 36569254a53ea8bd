// Package breaker implements a named-resource circuit breaker used by
// the data and search cascades. Each named resource (one per upstream
// source) moves through CLOSED -> OPEN -> HALF_OPEN independently.
package breaker

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// State is the breaker state for one named resource.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 300 * time.Second
	DefaultHalfOpenMaxCalls = 1
)

// Options tune one breaker instance. Zero values fall back to defaults.
type Options struct {
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenMaxCalls int
}

// entry tracks breaker state for one named resource.
type entry struct {
	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenCalls   int
	lastReason      string
}

// Breaker is a process-wide circuit breaker keyed by resource name.
// Callers consult IsAvailable before issuing a request and report the
// outcome with RecordSuccess / RecordFailure afterwards.
type Breaker struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
	logger  arbor.ILogger

	// onTransition is invoked (outside hot paths, under lock) whenever a
	// resource changes state; used to feed metrics.
	onTransition func(name string, from, to State)
}

// New creates a breaker with the given options.
func New(opts Options, logger arbor.ILogger) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.HalfOpenMaxCalls <= 0 {
		opts.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	return &Breaker{
		entries: make(map[string]*entry),
		opts:    opts,
		logger:  logger,
	}
}

// OnTransition registers a state-change callback. Must be called before
// the breaker is shared across goroutines.
func (b *Breaker) OnTransition(fn func(name string, from, to State)) {
	b.onTransition = fn
}

func (b *Breaker) get(name string) *entry {
	e, ok := b.entries[name]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[name] = e
	}
	return e
}

func (b *Breaker) transition(name string, e *entry, to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	if b.logger != nil {
		b.logger.Debug().
			Str("resource", name).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Circuit breaker state change")
	}
	if b.onTransition != nil {
		b.onTransition(name, from, to)
	}
}

// IsAvailable reports whether the named resource may be called now.
// An OPEN resource whose cooldown has elapsed moves to HALF_OPEN and
// becomes available for a bounded number of probes.
func (b *Breaker) IsAvailable(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(name)
	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(e.lastFailureTime) >= b.opts.Cooldown {
			b.transition(name, e, StateHalfOpen)
			e.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if e.halfOpenCalls < b.opts.HalfOpenMaxCalls {
			e.halfOpenCalls++
			return true
		}
		return false
	}
	return true
}

// RecordSuccess reports a successful call against the named resource.
// In HALF_OPEN this closes the breaker; in CLOSED it decrements the
// failure counter toward zero.
func (b *Breaker) RecordSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(name)
	switch e.state {
	case StateHalfOpen:
		b.transition(name, e, StateClosed)
		e.failureCount = 0
		e.halfOpenCalls = 0
		e.lastReason = ""
	case StateClosed:
		if e.failureCount > 0 {
			e.failureCount--
		}
	}
}

// RecordFailure reports a failed call against the named resource. The
// optional reason is retained for status reporting.
func (b *Breaker) RecordFailure(name string, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(name)
	e.lastReason = reason

	switch e.state {
	case StateClosed:
		e.failureCount++
		if e.failureCount >= b.opts.FailureThreshold {
			e.lastFailureTime = time.Now()
			b.transition(name, e, StateOpen)
		}
	case StateHalfOpen:
		e.lastFailureTime = time.Now()
		e.halfOpenCalls = 0
		b.transition(name, e, StateOpen)
	case StateOpen:
		e.lastFailureTime = time.Now()
	}
}

// ResourceStatus is the reported state of one named resource.
type ResourceStatus struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastReason      string    `json:"last_reason,omitempty"`
}

// GetStatus returns a snapshot of all known resources.
func (b *Breaker) GetStatus() []ResourceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	statuses := make([]ResourceStatus, 0, len(b.entries))
	for name, e := range b.entries {
		statuses = append(statuses, ResourceStatus{
			Name:            name,
			State:           e.state,
			FailureCount:    e.failureCount,
			LastFailureTime: e.lastFailureTime,
			LastReason:      e.lastReason,
		})
	}
	return statuses
}

// Reset clears breaker state for one resource, or for all resources
// when name is empty.
func (b *Breaker) Reset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		for n, e := range b.entries {
			b.transition(n, e, StateClosed)
		}
		b.entries = make(map[string]*entry)
		return
	}
	if e, ok := b.entries[name]; ok {
		b.transition(name, e, StateClosed)
		delete(b.entries, name)
	}
}
