package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/optimode/mailverify/internal/smtpprobe"
	"github.com/optimode/mailverify/types"
)

const smtpFailed = "Email failed to pass smtp validation test."

// MailboxProber asks a mail exchanger whether it accepts a recipient.
// *smtpprobe.Prober implements it.
type MailboxProber interface {
	Probe(ctx context.Context, host, rcpt string) (smtpprobe.Reply, error)
}

// SMTPConfig is the mailbox stage configuration.
type SMTPConfig struct {
	Prober MailboxProber
	// MaxMXHosts is how many MX hosts, in preference order, may be tried
	// when the previous one could not give an answer. Defaults to 1.
	MaxMXHosts int
}

// MailboxChecker runs an SMTP RCPT TO probe against the primary MX.
// A refused or unanswered probe fails the stage; it is never retried.
type MailboxChecker struct {
	cfg SMTPConfig
}

func NewMailboxChecker(cfg SMTPConfig) *MailboxChecker {
	if cfg.MaxMXHosts <= 0 {
		cfg.MaxMXHosts = 1
	}
	return &MailboxChecker{cfg: cfg}
}

func (c *MailboxChecker) Name() types.StageName { return types.StageSMTP }

func (c *MailboxChecker) Check(ctx context.Context, st *State) (string, error) {
	if len(st.MX) == 0 {
		return "", fail(types.StageSMTP, types.KindSMTP, smtpFailed, errors.New("no MX host to probe"))
	}

	hosts := st.MX
	if len(hosts) > c.cfg.MaxMXHosts {
		hosts = hosts[:c.cfg.MaxMXHosts]
	}
	rcpt := st.Email.Local + "@" + st.Email.Domain

	var lastErr error
	for _, mx := range hosts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		reply, err := c.cfg.Prober.Probe(ctx, mx.Host, rcpt)
		if err != nil {
			lastErr = err
			continue
		}

		st.MXHost = mx.Host
		st.SMTPCode = reply.Code
		switch {
		case reply.Accepted():
			return fmt.Sprintf("RCPT TO accepted by %s", mx.Host), nil
		case reply.Temporary():
			lastErr = fmt.Errorf("%s: temporary failure: %s", mx.Host, reply)
		default:
			return "", fail(types.StageSMTP, types.KindSMTP, smtpFailed,
				fmt.Errorf("%s: rejected: %s", mx.Host, reply))
		}
	}

	return "", fail(types.StageSMTP, types.KindSMTP, smtpFailed, lastErr)
}
