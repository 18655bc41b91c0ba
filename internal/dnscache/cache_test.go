package dnscache_test

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/dnscache"
)

// mockResolver tracks how many lookups reached it.
type mockResolver struct {
	hosts   []string
	records []*net.MX
	txt     []string
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (m *mockResolver) LookupHost(_ context.Context, _ string) ([]string, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	return m.hosts, m.err
}

func (m *mockResolver) LookupMX(_ context.Context, _ string) ([]*net.MX, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	return m.records, m.err
}

func (m *mockResolver) LookupTXT(_ context.Context, _ string) ([]string, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	return m.txt, m.err
}

func TestCache_BasicCaching(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.example.com.", Pref: 10}},
	}
	c := dnscache.New(r, time.Minute)
	ctx := context.Background()

	recs, err := c.LookupMX(ctx, "example.com")
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(1), r.calls.Load())

	recs, err = c.LookupMX(ctx, "example.com")
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_KeyedByType(t *testing.T) {
	r := &mockResolver{
		hosts:   []string{"192.0.2.1"},
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
		txt:     []string{"v=spf1 -all"},
	}
	c := dnscache.New(r, time.Minute)
	ctx := context.Background()

	hosts, err := c.LookupHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, hosts)

	txt, err := c.LookupTXT(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"v=spf1 -all"}, txt)

	_, _ = c.LookupMX(ctx, "example.com")

	assert.Equal(t, int64(3), r.calls.Load())
	assert.Equal(t, 3, c.Len())
}

func TestCache_DifferentNames(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := dnscache.New(r, time.Minute)

	_, _ = c.LookupMX(context.Background(), "a.com")
	_, _ = c.LookupMX(context.Background(), "b.com")
	assert.Equal(t, int64(2), r.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := dnscache.New(r, 50*time.Millisecond)

	_, _ = c.LookupMX(context.Background(), "example.com")
	assert.Equal(t, int64(1), r.calls.Load())

	time.Sleep(100 * time.Millisecond)

	_, _ = c.LookupMX(context.Background(), "example.com")
	assert.Equal(t, int64(2), r.calls.Load())
}

func TestCache_Singleflight(t *testing.T) {
	r := &mockResolver{
		txt:   []string{"v=spf1 -all"},
		delay: 20 * time.Millisecond,
	}
	c := dnscache.New(r, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := c.LookupTXT(context.Background(), "example.com")
			assert.NoError(t, err)
			assert.Len(t, recs, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_CachesErrors(t *testing.T) {
	r := &mockResolver{
		err: &net.DNSError{Err: "no such host", IsNotFound: true},
	}
	c := dnscache.New(r, time.Minute)

	_, err := c.LookupHost(context.Background(), "bad.com")
	assert.Error(t, err)

	_, err = c.LookupHost(context.Background(), "bad.com")
	assert.Error(t, err)
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_DropsCancelledLookups(t *testing.T) {
	r := &mockResolver{err: context.Canceled}
	c := dnscache.New(r, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.LookupHost(ctx, "example.com")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ReturnsCopy(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{
			{Host: "mx2.", Pref: 20},
			{Host: "mx1.", Pref: 10},
		},
	}
	c := dnscache.New(r, time.Minute)

	recs1, _ := c.LookupMX(context.Background(), "example.com")
	recs2, _ := c.LookupMX(context.Background(), "example.com")

	recs1[0].Host = "modified."
	assert.NotEqual(t, recs1[0].Host, recs2[0].Host)
}

// ctxResolver fails its first lookup when the caller's context ends and
// answers every later one.
type ctxResolver struct {
	mockResolver
	started chan struct{}
	first   atomic.Bool
}

func (r *ctxResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.calls.Add(1)
	if r.first.CompareAndSwap(false, true) {
		close(r.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []string{"192.0.2.1"}, nil
}

func TestCache_WaiterRetriesAfterCancelledLeader(t *testing.T) {
	r := &ctxResolver{started: make(chan struct{})}
	c := dnscache.New(r, time.Minute)

	leaderCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.LookupHost(leaderCtx, "example.com")
		leaderErr <- err
	}()
	<-r.started

	addrs, err := c.LookupHost(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, addrs)

	assert.ErrorIs(t, <-leaderErr, context.DeadlineExceeded)
	assert.Equal(t, int64(2), r.calls.Load())
}
