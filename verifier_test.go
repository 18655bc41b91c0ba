package mailverify_test

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foxcpp/go-mockdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify"
	"github.com/optimode/mailverify/internal/testutil"
	"github.com/optimode/mailverify/types"
)

func newTestVerifier(t *testing.T, r mailverify.Resolver, reject ...string) *mailverify.Verifier {
	t.Helper()
	return mailverify.New().
		WithLogger(testutil.Logger(t)).
		WithDNS(mailverify.DNSOptions{Resolver: r, Timeout: time.Second}).
		WithDNSBL(mailverify.DNSBLOptions{Zones: []string{"bl.example.org"}}).
		WithSMTP(mailverify.SMTPOptions{
			HeloDomain: "verifier.test",
			MailFrom:   "verify@verifier.test",
			Timeout:    2 * time.Second,
			Dialer:     testutil.SMTPDialer(testutil.AcceptAll, reject...),
		})
}

func TestVerify_FullPass(t *testing.T) {
	r := testutil.NewResolver(testutil.Zones("example.com"))
	v := newTestVerifier(t, r)

	out, err := v.Verify(context.Background(), "  user@example.com ")
	require.NoError(t, err)
	assert.True(t, out.Passed(), "failed at %s: %v", out.FailedStage, out.Err)
	assert.Equal(t, mailverify.StageAll, out.Verification())
	assert.Equal(t, "user@example.com", out.Email)
	assert.Equal(t, testutil.MXHost, out.MXHost)
	assert.Equal(t, 250, out.SMTPCode)
	assert.False(t, out.CheckedAt.IsZero())
	assert.Len(t, out.Stages, len(v.Stages()))
	for _, s := range out.Stages {
		assert.True(t, s.Passed, s.Stage)
	}
}

func TestVerify_InputRejectedWithoutLookups(t *testing.T) {
	for _, raw := range []string{
		"",
		"a@example.com,b@example.com",
		"a@example.com;b@example.com",
		"a@example.com b@example.com",
		"Bob bob@example.com",
	} {
		t.Run(raw, func(t *testing.T) {
			r := testutil.NewResolver(testutil.Zones("example.com"))
			out, err := newTestVerifier(t, r).Verify(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, mailverify.StageInput, out.Verification())
			assert.Equal(t, types.KindInput, out.Err.Kind)
			assert.Zero(t, r.Calls())
		})
	}
}

func TestVerify_SyntaxRejectedWithoutLookups(t *testing.T) {
	for _, raw := range []string{"userexample.com", "user@localhost", "a@b@c.com", "user@"} {
		t.Run(raw, func(t *testing.T) {
			r := testutil.NewResolver(testutil.Zones("example.com", "localhost", "c.com"))
			out, err := newTestVerifier(t, r).Verify(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, mailverify.StageSyntax, out.Verification())
			assert.Zero(t, r.Calls())
		})
	}
}

func TestVerify_DisposableRegardlessOfDNS(t *testing.T) {
	for name, zones := range map[string]map[string]mockdns.Zone{
		"resolvable": testutil.Zones("mailinator.com"),
		"missing":    {},
	} {
		t.Run(name, func(t *testing.T) {
			r := testutil.NewResolver(zones)
			out, err := newTestVerifier(t, r).Verify(context.Background(), "user@Mailinator.com")
			require.NoError(t, err)
			assert.Equal(t, mailverify.StageDisposable, out.Verification())
			assert.Zero(t, r.Calls())
		})
	}
}

func TestVerify_DNSStages(t *testing.T) {
	tests := []struct {
		name  string
		zones map[string]mockdns.Zone
		want  mailverify.StageName
	}{
		{
			name:  "no A records",
			zones: map[string]mockdns.Zone{"example.com.": {MX: []net.MX{{Host: "mx.example.com.", Pref: 10}}}},
			want:  mailverify.StageDNS,
		},
		{
			name:  "domain missing",
			zones: map[string]mockdns.Zone{},
			want:  mailverify.StageDNS,
		},
		{
			name:  "A but no MX",
			zones: map[string]mockdns.Zone{"example.com.": {A: []string{"192.0.2.1"}}},
			want:  mailverify.StageMX,
		},
		{
			name: "only blank exchanges",
			zones: map[string]mockdns.Zone{"example.com.": {
				A:  []string{"192.0.2.1"},
				MX: []net.MX{{Host: "", Pref: 10}},
			}},
			want: mailverify.StageMX,
		},
		{
			name: "no SPF",
			zones: map[string]mockdns.Zone{
				"example.com.":    {A: []string{"192.0.2.1"}, MX: []net.MX{{Host: "mx.example.com.", Pref: 10}}},
				"mx.example.com.": {A: []string{"192.0.2.25"}},
			},
			want: mailverify.StageSPF,
		},
		{
			name: "no DMARC",
			zones: map[string]mockdns.Zone{
				"example.com.": {
					A:   []string{"192.0.2.1"},
					MX:  []net.MX{{Host: "mx.example.com.", Pref: 10}},
					TXT: []string{"v=spf1 -all"},
				},
				"mx.example.com.": {A: []string{"192.0.2.25"}},
			},
			want: mailverify.StageDMARC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTestVerifier(t, testutil.NewResolver(tt.zones)).
				Verify(context.Background(), "user@example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Verification())
			assert.Equal(t, mailverify.StatusFailed, out.Status)

			last := out.Stages[len(out.Stages)-1]
			assert.Equal(t, tt.want, last.Stage)
			assert.False(t, last.Passed)
		})
	}
}

func TestVerify_DNSBLPolarity(t *testing.T) {
	zones := testutil.Zones("example.com")
	zones["25.2.0.192.bl.example.org."] = mockdns.Zone{A: []string{"127.0.0.2"}}

	out, err := newTestVerifier(t, testutil.NewResolver(zones)).Verify(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mailverify.StageDNSBL, out.Verification())
	assert.Equal(t, types.KindReputation, out.Err.Kind)
	assert.Contains(t, out.Message, "192.0.2.25")

	// Not-found answers from every zone never fail the stage.
	out, err = newTestVerifier(t, testutil.NewResolver(testutil.Zones("example.com"))).
		Verify(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, out.Passed())
}

func TestVerify_MailboxRejected(t *testing.T) {
	r := testutil.NewResolver(testutil.Zones("example.com"))
	out, err := newTestVerifier(t, r, "ghost@example.com").Verify(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Equal(t, mailverify.StageSMTP, out.Verification())
	assert.Equal(t, 550, out.SMTPCode)
}

func TestVerify_PanicReportedAsUnknown(t *testing.T) {
	r := testutil.NewResolver(testutil.Zones("example.com"))
	r.PanicOn = "example.com"

	out, err := newTestVerifier(t, r).Verify(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mailverify.StatusFailed, out.Status)
	assert.Equal(t, mailverify.StageUnknown, out.Verification())
	assert.Equal(t, types.KindInternal, out.Err.Kind)
	assert.False(t, out.CheckedAt.IsZero())
}

func TestVerify_Idempotent(t *testing.T) {
	v := newTestVerifier(t, testutil.NewResolver(testutil.Zones("example.com")))

	for _, raw := range []string{"user@example.com", "user@mailinator.com", "a@b@c.com"} {
		first, err := v.Verify(context.Background(), raw)
		require.NoError(t, err)
		second, err := v.Verify(context.Background(), raw)
		require.NoError(t, err)

		assert.Equal(t, first.Status, second.Status, raw)
		assert.Equal(t, first.Verification(), second.Verification(), raw)
	}
}

func TestVerify_TypoSuggestion(t *testing.T) {
	v := newTestVerifier(t, testutil.NewResolver(testutil.Zones("gmial.com")))

	out, err := v.Verify(context.Background(), "user@gmial.com")
	require.NoError(t, err)
	assert.True(t, out.Passed())
	assert.Equal(t, "gmail.com", out.Suggestion)
}

func TestStages_Order(t *testing.T) {
	v := mailverify.New()
	assert.Equal(t, []mailverify.StageName{
		mailverify.StageInput,
		mailverify.StageSyntax,
		mailverify.StageDomainExtraction,
		mailverify.StageDisposable,
		mailverify.StageDNS,
		mailverify.StageMX,
		mailverify.StageDNSBL,
		mailverify.StageSPF,
		mailverify.StageDMARC,
		mailverify.StageSMTP,
	}, v.Stages())

	// Enabling DKIM inserts it between SPF and DMARC and moves nothing else.
	v.WithPolicy(mailverify.PolicyOptions{DKIM: true})
	assert.Equal(t, types.Order, v.Stages())
}

func TestVerify_DKIMEnabled(t *testing.T) {
	zones := testutil.Zones("example.com")
	v := newTestVerifier(t, testutil.NewResolver(zones)).
		WithPolicy(mailverify.PolicyOptions{DKIM: true, DKIMSelectors: []string{"s1"}})

	out, err := v.Verify(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mailverify.StageDKIM, out.Verification())

	zones["s1._domainkey.example.com."] = mockdns.Zone{TXT: []string{"v=DKIM1; k=rsa; p=MIGf"}}
	out, err = v.Verify(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, out.Passed())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := mailverify.New().WithSMTP(mailverify.SMTPOptions{}).Verify(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, mailverify.ErrInvalidSMTPOptions)

	_, err = mailverify.New().
		WithDNSBL(mailverify.DNSBLOptions{Zones: []string{"bad zone..org"}}).
		Verify(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, mailverify.ErrInvalidDNSBLZone)

	_, err = mailverify.New().
		WithDNSBL(mailverify.DNSBLOptions{Zones: []string{"bad zone..org"}}).
		VerifyMany(context.Background(), []string{"user@example.com"})
	assert.ErrorIs(t, err, mailverify.ErrInvalidDNSBLZone)
}

func TestVerifyMany_PreservesOrder(t *testing.T) {
	v := newTestVerifier(t, testutil.NewResolver(testutil.Zones("example.com")))
	emails := []string{"a@example.com", "invalid", "b@mailinator.com", "c@example.com"}

	results, err := v.VerifyMany(context.Background(), emails, mailverify.ConcurrencyOptions{Width: 3})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.True(t, results[0].Passed())
	assert.Equal(t, mailverify.StageSyntax, results[1].Verification())
	assert.Equal(t, mailverify.StageDisposable, results[2].Verification())
	assert.True(t, results[3].Passed())
}

func TestOutcome_StageFor(t *testing.T) {
	v := newTestVerifier(t, testutil.NewResolver(testutil.Zones("example.com")))
	out, _ := v.Verify(context.Background(), "user@example.com")

	mx, found := out.StageFor(mailverify.StageMX)
	assert.True(t, found)
	assert.True(t, mx.Passed)
	assert.Contains(t, mx.Details, testutil.MXHost)

	_, found = out.StageFor(mailverify.StageDKIM)
	assert.False(t, found)
}

// countingConn reports its Close once to the dialer that opened it.
type countingConn struct {
	net.Conn
	once   sync.Once
	closed func()
}

func (c *countingConn) Close() error {
	c.once.Do(c.closed)
	return c.Conn.Close()
}

func TestVerifyMany_SessionsPerHostBounded(t *testing.T) {
	var active, peak atomic.Int32
	dial := testutil.SMTPDialer(testutil.AcceptAll)
	countingDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		// Keep the session open long enough for siblings to overlap.
		time.Sleep(5 * time.Millisecond)
		return &countingConn{Conn: conn, closed: func() { active.Add(-1) }}, nil
	}

	v := newTestVerifier(t, testutil.NewResolver(testutil.Zones("example.com"))).
		WithSMTP(mailverify.SMTPOptions{
			HeloDomain:         "verifier.test",
			MailFrom:           "verify@verifier.test",
			Timeout:            2 * time.Second,
			MaxSessionsPerHost: 1,
			Dialer:             countingDial,
		})

	emails := make([]string, 8)
	for i := range emails {
		emails[i] = "user@example.com"
	}
	results, err := v.VerifyMany(context.Background(), emails, mailverify.ConcurrencyOptions{Width: 8})
	require.NoError(t, err)
	for _, out := range results {
		assert.True(t, out.Passed(), "failed at %s: %v", out.FailedStage, out.Err)
	}
	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, active.Load())
}
