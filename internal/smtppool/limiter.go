// Package smtppool bounds how many SMTP sessions are open at once towards
// each mail exchanger. Batch runs tend to concentrate on a few large
// providers, which throttle or greylist clients opening many parallel
// sessions.
package smtppool

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxPerHost is used when New is given a non-positive limit.
const DefaultMaxPerHost = 3

// Limiter hands out session slots per MX host.
type Limiter struct {
	max int64

	mu    sync.Mutex
	hosts map[string]*host
}

type host struct {
	sem  *semaphore.Weighted
	refs int
}

func New(maxPerHost int) *Limiter {
	if maxPerHost <= 0 {
		maxPerHost = DefaultMaxPerHost
	}
	return &Limiter{
		max:   int64(maxPerHost),
		hosts: make(map[string]*host),
	}
}

// Acquire blocks until a session slot for mxHost is free or ctx is done.
// On success the returned func releases the slot and must be called
// exactly once.
func (l *Limiter) Acquire(ctx context.Context, mxHost string) (release func(), err error) {
	key := strings.ToLower(strings.TrimSuffix(mxHost, "."))

	l.mu.Lock()
	h, ok := l.hosts[key]
	if !ok {
		h = &host{sem: semaphore.NewWeighted(l.max)}
		l.hosts[key] = h
	}
	h.refs++
	l.mu.Unlock()

	if err := h.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, h)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.sem.Release(1)
			l.unref(key, h)
		})
	}, nil
}

// unref drops the host entry once nobody holds or waits for a slot.
func (l *Limiter) unref(key string, h *host) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h.refs--
	if h.refs == 0 {
		delete(l.hosts, key)
	}
}

// Hosts returns the number of hosts with sessions open or pending.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}
