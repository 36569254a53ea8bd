// Package search implements the news/search provider cascade with
// per-provider API key rotation and a bounded result cache.
package search

import (
	"strings"
	"sync"
)

// keyErrorThreshold disables a key after this many consecutive errors.
const keyErrorThreshold = 3

// KeyPool rotates through a provider's API keys round-robin. A key that
// errors repeatedly is benched until a success on it resets the count,
// so one exhausted key does not stall the whole provider.
type KeyPool struct {
	mu   sync.Mutex
	raw  string
	keys []*poolKey
	next int
}

type poolKey struct {
	value  string
	errors int
}

// NewKeyPool parses a comma-separated key list.
func NewKeyPool(raw string) *KeyPool {
	p := &KeyPool{}
	p.Replace(raw)
	return p
}

// Replace swaps the key set when the configured list changed. Error
// counts reset; a settings update is the operator's retry signal.
func (p *KeyPool) Replace(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if raw == p.raw && p.keys != nil {
		return
	}
	p.raw = raw
	p.keys = nil
	p.next = 0
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			p.keys = append(p.keys, &poolKey{value: key})
		}
	}
}

// Next returns the next usable key round-robin, or false when every
// key is benched or the pool is empty.
func (p *KeyPool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	for i := 0; i < n; i++ {
		k := p.keys[p.next%n]
		p.next++
		if k.errors < keyErrorThreshold {
			return k.value, true
		}
	}
	return "", false
}

// ReportSuccess decrements the error count for a key toward zero.
func (p *KeyPool) ReportSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k.value == key && k.errors > 0 {
			k.errors--
		}
	}
}

// ReportFailure increments the error count for a key.
func (p *KeyPool) ReportFailure(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k.value == key {
			k.errors++
		}
	}
}

// HasUsable reports whether at least one key is below the threshold.
func (p *KeyPool) HasUsable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k.errors < keyErrorThreshold {
			return true
		}
	}
	return false
}
