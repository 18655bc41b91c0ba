// Package dnscache wraps a resolver.Resolver with a thread-safe, TTL-based
// cache. Concurrent lookups of the same name and type are deduplicated.
package dnscache

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/optimode/mailverify/internal/resolver"
)

// Cache is a caching resolver.Resolver.
// Concurrent lookups for the same key are deduplicated:
// only one actual DNS query is performed, and all waiters receive the result.
// Results, including errors, are kept for the configured TTL.
type Cache struct {
	mu       sync.Mutex
	entries  map[key]*entry
	ttl      time.Duration
	upstream resolver.Resolver
	now      func() time.Time
}

type kind uint8

const (
	kindHost kind = iota
	kindMX
	kindTXT
)

type key struct {
	kind kind
	name string
}

type entry struct {
	strs    []string
	mx      []*net.MX
	err     error
	expires time.Time
	done    chan struct{} // closed when lookup is complete
	// aborted is set when the lookup failed because the context of the
	// caller that issued it ended. Waiters then retry with their own.
	aborted bool
}

// New wraps upstream with a cache holding results for ttl.
func New(upstream resolver.Resolver, ttl time.Duration) *Cache {
	return &Cache{
		entries:  make(map[key]*entry),
		ttl:      ttl,
		upstream: upstream,
		now:      time.Now,
	}
}

// LookupHost implements resolver.Resolver.
func (c *Cache) LookupHost(ctx context.Context, host string) ([]string, error) {
	e := c.get(ctx, key{kindHost, host}, func(ctx context.Context, e *entry) {
		e.strs, e.err = c.upstream.LookupHost(ctx, host)
	})
	return copyStrings(e.strs), e.err
}

// LookupTXT implements resolver.Resolver.
func (c *Cache) LookupTXT(ctx context.Context, name string) ([]string, error) {
	e := c.get(ctx, key{kindTXT, name}, func(ctx context.Context, e *entry) {
		e.strs, e.err = c.upstream.LookupTXT(ctx, name)
	})
	return copyStrings(e.strs), e.err
}

// LookupMX implements resolver.Resolver.
func (c *Cache) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	e := c.get(ctx, key{kindMX, name}, func(ctx context.Context, e *entry) {
		e.mx, e.err = c.upstream.LookupMX(ctx, name)
	})
	return copyMX(e.mx), e.err
}

func (c *Cache) get(ctx context.Context, k key, fetch func(context.Context, *entry)) *entry {
	c.mu.Lock()

	if e, ok := c.entries[k]; ok {
		select {
		case <-e.done:
			// Completed entry - check if still valid
			if c.now().Before(e.expires) {
				c.mu.Unlock()
				return e
			}
			// Expired, fall through to refresh
		default:
			// Lookup in progress - wait for it
			c.mu.Unlock()
			select {
			case <-e.done:
				if e.aborted {
					return c.get(ctx, k, fetch)
				}
				return e
			case <-ctx.Done():
				return &entry{err: ctx.Err()}
			}
		}
	}

	e := &entry{done: make(chan struct{})}
	c.entries[k] = e
	c.mu.Unlock()

	fetch(ctx, e)

	// Caller-side cancellation says nothing about the name; do not keep it.
	if ctx.Err() != nil && e.err != nil {
		e.aborted = true
		c.mu.Lock()
		if c.entries[k] == e {
			delete(c.entries, k)
		}
		c.mu.Unlock()
	}

	e.expires = c.now().Add(c.ttl)
	close(e.done)
	return e
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// copyMX returns a deep copy of MX records to prevent callers from
// mutating cached data (e.g., via sort.Slice).
func copyMX(records []*net.MX) []*net.MX {
	if records == nil {
		return nil
	}
	out := make([]*net.MX, len(records))
	for i, r := range records {
		cp := *r
		out[i] = &cp
	}
	return out
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
