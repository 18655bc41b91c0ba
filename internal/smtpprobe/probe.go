// Package smtpprobe asks a mail exchanger whether it would accept a
// recipient, without sending a message. Each probe opens its own
// connection and closes it before returning.
package smtpprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"
)

// Reply is the server's answer to the last command of a probe.
type Reply struct {
	Command string // EHLO (also for the greeting), MAIL or RCPT
	Code    int
	Message string
}

// Accepted reports whether the recipient was accepted.
func (r Reply) Accepted() bool {
	return r.Code >= 200 && r.Code < 300
}

// Temporary reports a 4xx reply.
func (r Reply) Temporary() bool {
	return r.Code >= 400 && r.Code < 500
}

func (r Reply) String() string {
	return fmt.Sprintf("%s %d %s", r.Command, r.Code, r.Message)
}

// Prober runs EHLO, MAIL FROM, RCPT TO and QUIT against a host.
type Prober struct {
	HeloDomain string
	MailFrom   string
	Port       string
	// Timeout bounds the whole session, from dial to QUIT.
	Timeout time.Duration
	// Dial opens the connection. Defaults to a net.Dialer.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
	// Sessions, when set, bounds concurrent sessions per host. Waiting
	// for a slot does not count against Timeout.
	Sessions SessionLimiter
	Log      logrus.FieldLogger
}

// SessionLimiter is implemented by *smtppool.Limiter.
type SessionLimiter interface {
	Acquire(ctx context.Context, host string) (release func(), err error)
}

// Probe checks rcpt against host. A negative SMTP reply is not an error:
// it comes back as a Reply with the server's code. The error is set only
// when no reply could be obtained (dial failure, timeout, broken session).
func (p *Prober) Probe(ctx context.Context, host, rcpt string) (Reply, error) {
	if p.Sessions != nil {
		release, err := p.Sessions.Acquire(ctx, host)
		if err != nil {
			return Reply{}, fmt.Errorf("smtpprobe: waiting for a session slot on %s: %w", host, err)
		}
		defer release()
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	port := p.Port
	if port == "" {
		port = "25"
	}

	conn, err := dial(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return Reply{}, fmt.Errorf("smtpprobe: dial %s: %w", host, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// The greeting is read by the first command, so a refused banner
	// surfaces from Hello.
	cl := smtp.NewClient(conn)
	defer cl.Close()
	if p.Timeout > 0 {
		cl.CommandTimeout = p.Timeout
	}

	if err := cl.Hello(p.HeloDomain); err != nil {
		return p.reply(ctx, "EHLO", err)
	}
	if err := cl.Mail(p.MailFrom, &smtp.MailOptions{}); err != nil {
		return p.reply(ctx, "MAIL", err)
	}

	reply := Reply{Command: "RCPT", Code: 250, Message: "recipient accepted"}
	if err := cl.Rcpt(rcpt, nil); err != nil {
		reply, err = p.reply(ctx, "RCPT", err)
		if err != nil {
			return Reply{}, err
		}
	}

	if err := cl.Quit(); err != nil {
		p.logger().WithError(err).WithField("host", host).Debug("smtp probe: QUIT failed")
	}

	p.logger().WithFields(logrus.Fields{
		"host": host,
		"code": reply.Code,
	}).Debug("smtp probe finished")
	return reply, nil
}

func (p *Prober) reply(ctx context.Context, cmd string, err error) (Reply, error) {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return Reply{Command: cmd, Code: smtpErr.Code, Message: smtpErr.Message}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Reply{}, fmt.Errorf("smtpprobe: %s: %w", cmd, ctxErr)
	}
	return Reply{}, fmt.Errorf("smtpprobe: %s: %w", cmd, err)
}

func (p *Prober) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
