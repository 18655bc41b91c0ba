package mailverify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/optimode/mailverify/check"
	"github.com/optimode/mailverify/internal/disposable"
	"github.com/optimode/mailverify/internal/dnscache"
	"github.com/optimode/mailverify/internal/resolver"
	"github.com/optimode/mailverify/internal/smtppool"
	"github.com/optimode/mailverify/internal/smtpprobe"
	"github.com/optimode/mailverify/types"
)

// Observer receives per-stage timings and final outcomes, e.g. to export
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveStage(stage StageName, passed bool, elapsed time.Duration)
	ObserveOutcome(status Status, stage StageName)
}

// Verifier is the main fluent builder struct.
// Instantiate with the New() function. Configure it before the first
// Verify call; a configured Verifier is safe for concurrent use.
type Verifier struct {
	dnsOpts    DNSOptions
	domainOpts DomainOptions
	dnsblOpts  DNSBLOptions
	policyOpts PolicyOptions
	smtpOpts   SMTPOptions

	stages   []check.Stage
	err      error // configuration error, returned on Verify()
	log      logrus.FieldLogger
	observer Observer
}

// New creates a Verifier running every stage with default options: the
// system resolver, the built-in disposable list and DNSBL zones, and an
// SMTP probe identifying as localhost.
func New() *Verifier {
	v := &Verifier{
		dnsOpts:    defaultDNSOptions(),
		domainOpts: defaultDomainOptions(),
		dnsblOpts:  defaultDNSBLOptions(),
		smtpOpts:   defaultSMTPOptions(),
		log:        logrus.StandardLogger(),
	}
	v.build()
	return v
}

// WithDNS overrides the DNS client options. Unset values keep their defaults.
func (v *Verifier) WithDNS(opts DNSOptions) *Verifier {
	if opts.Timeout == 0 {
		opts.Timeout = defaultDNSOptions().Timeout
	}
	v.dnsOpts = opts
	v.build()
	return v
}

// WithDomain overrides the disposable domain stage options.
func (v *Verifier) WithDomain(opts DomainOptions) *Verifier {
	v.domainOpts = opts
	v.build()
	return v
}

// WithDNSBL overrides the blacklist zones and probe budget.
func (v *Verifier) WithDNSBL(opts DNSBLOptions) *Verifier {
	if opts.Budget == 0 {
		opts.Budget = defaultDNSBLOptions().Budget
	}
	v.dnsblOpts = opts
	v.build()
	return v
}

// WithPolicy configures the policy record stages, including the optional
// DKIM stage.
func (v *Verifier) WithPolicy(opts PolicyOptions) *Verifier {
	v.policyOpts = opts
	v.build()
	return v
}

// WithSMTP overrides the mailbox probe options.
// SMTPOptions.HeloDomain and MailFrom are required.
func (v *Verifier) WithSMTP(opts SMTPOptions) *Verifier {
	def := defaultSMTPOptions()
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Port == "" {
		opts.Port = def.Port
	}
	if opts.MaxMXHosts == 0 {
		opts.MaxMXHosts = def.MaxMXHosts
	}
	if opts.MaxSessionsPerHost == 0 {
		opts.MaxSessionsPerHost = def.MaxSessionsPerHost
	}
	v.smtpOpts = opts
	v.build()
	return v
}

// WithLogger sets the logger used for stage failures and faults.
func (v *Verifier) WithLogger(log logrus.FieldLogger) *Verifier {
	if log != nil {
		v.log = log
	}
	v.build()
	return v
}

// WithObserver registers an Observer for stage timings and outcomes.
func (v *Verifier) WithObserver(o Observer) *Verifier {
	v.observer = o
	return v
}

// Err returns the configuration error Verify would return, if any.
func (v *Verifier) Err() error {
	return v.err
}

// Stages returns the names of the configured stages in execution order.
func (v *Verifier) Stages() []StageName {
	names := make([]StageName, len(v.stages))
	for i, s := range v.stages {
		names[i] = s.Name()
	}
	return names
}

// build recreates the stage list from the current options. The order
// always follows types.Order.
func (v *Verifier) build() {
	v.err = nil

	if v.smtpOpts.HeloDomain == "" || v.smtpOpts.MailFrom == "" {
		v.err = ErrInvalidSMTPOptions
		return
	}
	for _, z := range v.dnsblOpts.Zones {
		if _, ok := dns.IsDomainName(z); !ok || strings.TrimSpace(z) == "" {
			v.err = fmt.Errorf("%w: %q", ErrInvalidDNSBLZone, z)
			return
		}
	}

	r := v.dnsOpts.Resolver
	if r == nil {
		var err error
		r, err = resolver.New(v.dnsOpts.Server, v.dnsOpts.Timeout)
		if err != nil {
			v.err = fmt.Errorf("%w: %v", ErrInvalidDNSOptions, err)
			return
		}
	}
	if v.dnsOpts.CacheTTL > 0 {
		r = dnscache.New(r, v.dnsOpts.CacheTTL)
	}
	dnsCfg := check.DNSConfig{Resolver: r, Timeout: v.dnsOpts.Timeout}

	stages := []check.Stage{
		check.NewInputNormalizer(),
		check.NewSyntaxChecker(),
		check.NewDomainExtractor(),
		check.NewDisposableChecker(check.DomainConfig{
			Disposable:    disposable.Default(v.domainOpts.ExtraDisposable...),
			CheckTypos:    v.domainOpts.CheckTypos,
			TypoThreshold: v.domainOpts.TypoThreshold,
		}),
		check.NewDNSChecker(dnsCfg),
		check.NewMXChecker(dnsCfg),
		check.NewReputationProbe(check.DNSBLConfig{
			Resolver: r,
			Zones:    v.dnsblOpts.Zones,
			Budget:   v.dnsblOpts.Budget,
		}),
		check.NewSPFChecker(dnsCfg),
	}
	if v.policyOpts.DKIM {
		stages = append(stages, check.NewDKIMChecker(dnsCfg, v.policyOpts.DKIMSelectors))
	}
	stages = append(stages,
		check.NewDMARCChecker(dnsCfg),
		check.NewMailboxChecker(check.SMTPConfig{
			Prober: &smtpprobe.Prober{
				HeloDomain: v.smtpOpts.HeloDomain,
				MailFrom:   v.smtpOpts.MailFrom,
				Port:       v.smtpOpts.Port,
				Timeout:    v.smtpOpts.Timeout,
				Dial:       v.smtpOpts.Dialer,
				Sessions:   smtppool.New(v.smtpOpts.MaxSessionsPerHost),
				Log:        v.log,
			},
			MaxMXHosts: v.smtpOpts.MaxMXHosts,
		}),
	)
	v.stages = stages
}

// Verify runs the stages in order on raw. The pipeline short-circuits:
// the first failing stage ends the run and is reported in the Outcome.
// A panic inside a stage is reported as StageUnknown.
// The returned error is non-nil only for an invalid configuration.
func (v *Verifier) Verify(ctx context.Context, raw string) (Outcome, error) {
	if v.err != nil {
		return Outcome{}, v.err
	}
	return v.run(ctx, raw), nil
}

func (v *Verifier) run(ctx context.Context, raw string) (out Outcome) {
	st := &check.State{Raw: raw}
	out.Email = strings.TrimSpace(raw)

	defer func() {
		if r := recover(); r != nil {
			v.log.WithFields(logrus.Fields{
				"email": out.Email,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("verification stage panicked")

			out = Outcome{
				Email:       out.Email,
				Status:      StatusFailed,
				FailedStage: StageUnknown,
				Message:     "Unexpected error during email verification.",
				Stages:      out.Stages,
				Err: &types.StageError{
					Stage:   StageUnknown,
					Kind:    types.KindInternal,
					Message: "Unexpected error during email verification.",
					Err:     fmt.Errorf("panic: %v", r),
				},
			}
		}
		out.CheckedAt = time.Now().UTC()
		if v.observer != nil {
			v.observer.ObserveOutcome(out.Status, out.Verification())
		}
	}()

	for _, s := range v.stages {
		start := time.Now()
		details, err := s.Check(ctx, st)
		if v.observer != nil {
			v.observer.ObserveStage(s.Name(), err == nil, time.Since(start))
		}

		if err != nil {
			var se *types.StageError
			if !errors.As(err, &se) {
				se = &types.StageError{Stage: s.Name(), Kind: types.KindInternal, Message: err.Error(), Err: err}
			}
			out.Stages = append(out.Stages, StageResult{Stage: se.Stage, Passed: false, Details: se.Error()})
			out.Status = StatusFailed
			out.FailedStage = se.Stage
			out.Message = se.Message
			out.Err = se
			fill(&out, st)

			v.log.WithFields(logrus.Fields{
				"email": out.Email,
				"stage": se.Stage,
				"kind":  se.Kind,
			}).WithError(se.Err).Debug("verification failed")
			return out
		}
		out.Stages = append(out.Stages, StageResult{Stage: s.Name(), Passed: true, Details: details})
	}

	out.Status = StatusPassed
	out.Message = "Email validation passed."
	fill(&out, st)
	return out
}

func fill(out *Outcome, st *check.State) {
	if st.Address != "" {
		out.Email = st.Address
	}
	out.MXHost = st.MXHost
	out.SMTPCode = st.SMTPCode
	out.Suggestion = st.Suggestion
}

// VerifyMany verifies emails in windows of ConcurrencyOptions.Width
// addresses. Each window runs concurrently and completes before the next
// one starts. The result order matches the input slice order.
func (v *Verifier) VerifyMany(ctx context.Context, emails []string, opts ...ConcurrencyOptions) ([]Outcome, error) {
	if v.err != nil {
		return nil, v.err
	}

	o := defaultConcurrencyOptions()
	if len(opts) > 0 && opts[0].Width > 0 {
		o = opts[0]
	}

	results := make([]Outcome, len(emails))
	for _, w := range windows(len(emails), o.Width) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var g errgroup.Group
		for i := w.start; i < w.end; i++ {
			i := i
			g.Go(func() error {
				results[i] = v.run(ctx, emails[i])
				return nil
			})
		}
		_ = g.Wait()
	}
	return results, nil
}

type window struct{ start, end int }

// windows splits n items into consecutive windows of at most width.
func windows(n, width int) []window {
	if width <= 0 {
		width = 1
	}
	out := make([]window, 0, (n+width-1)/width)
	for start := 0; start < n; start += width {
		out = append(out, window{start: start, end: min(start+width, n)})
	}
	return out
}
