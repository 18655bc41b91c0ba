// Command mailverify verifies email addresses, either one at a time over
// HTTP ("serve") or from a CSV file ("batch").
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/optimode/mailverify"
	"github.com/optimode/mailverify/internal/config"
	"github.com/optimode/mailverify/internal/csvio"
	"github.com/optimode/mailverify/internal/logging"
	"github.com/optimode/mailverify/internal/metrics"
	"github.com/optimode/mailverify/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "mailverify",
		Usage: "check email deliverability without sending a message",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv `FILE` to load before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve POST /api/verify-email",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "listen `PORT`, overrides SERVER_PORT"},
				},
				Action: serve,
			},
			{
				Name:  "batch",
				Usage: "verify every address of a CSV file",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "width", Usage: "addresses verified concurrently, overrides BATCH_WIDTH"},
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input CSV `FILE`, overrides BATCH_INPUT"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output CSV `FILE`, overrides BATCH_OUTPUT"},
				},
				Action: batch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Error("mailverify failed")
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}

	if c.IsSet("port") {
		cfg.ServerPort = c.String("port")
	}
	if c.IsSet("width") {
		cfg.BatchWidth = c.Int("width")
	}
	if c.IsSet("input") {
		cfg.BatchInput = c.String("input")
	}
	if c.IsSet("output") {
		cfg.BatchOutput = c.String("output")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newVerifier maps the configuration onto verifier options.
func newVerifier(cfg *config.Config, log logrus.FieldLogger) *mailverify.Verifier {
	domain := mailverify.DomainOptions{
		ExtraDisposable: cfg.DisposableDomains,
		CheckTypos:      true,
	}
	return mailverify.New().
		WithLogger(log).
		WithDNS(mailverify.DNSOptions{
			Server:   cfg.DNSServer,
			Timeout:  cfg.DNSTimeout,
			CacheTTL: cfg.DNSCacheTTL,
		}).
		WithDomain(domain).
		WithDNSBL(mailverify.DNSBLOptions{
			Zones:  cfg.DNSBLZones,
			Budget: cfg.DNSBLBudget,
		}).
		WithPolicy(mailverify.PolicyOptions{
			DKIM:          cfg.DKIMEnabled,
			DKIMSelectors: cfg.DKIMSelectors,
		}).
		WithSMTP(mailverify.SMTPOptions{
			HeloDomain: cfg.SMTPHeloDomain,
			MailFrom:   cfg.SMTPMailFrom,
			Timeout:    cfg.SMTPTimeout,
			Port:       cfg.SMTPPort,
			MaxMXHosts: cfg.SMTPMaxMXHosts,

			MaxSessionsPerHost: cfg.SMTPMaxSessions,
		})
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	m := metrics.New()
	v := newVerifier(cfg, log).WithObserver(m)
	if err := v.Err(); err != nil {
		return err
	}

	srv := server.New(server.Config{Verifier: v, Log: log, Metrics: m.Handler()})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(":" + cfg.ServerPort) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func batch(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	in, err := os.Open(cfg.BatchInput)
	if err != nil {
		return fmt.Errorf("opening batch input: %w", err)
	}
	defer in.Close()

	emails, err := csvio.ReadEmails(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.BatchInput, err)
	}

	out, err := os.Create(cfg.BatchOutput)
	if err != nil {
		return fmt.Errorf("creating batch output: %w", err)
	}
	w := csvio.NewRowWriter(out)
	if err := w.WriteHeader(); err != nil {
		_ = out.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := mailverify.NewBatchRunner(newVerifier(cfg, log), log,
		mailverify.ConcurrencyOptions{Width: cfg.BatchWidth})
	sum, runErr := runner.Run(ctx, emails, w)

	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing batch output: %w", err)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.WithField("written", sum.Total).Warn("batch interrupted")
		}
		return runErr
	}

	fmt.Fprintf(c.App.Writer, "%d addresses verified: %d passed, %d failed (written to %s)\n",
		sum.Total, sum.Passed, sum.Failed, cfg.BatchOutput)
	return nil
}
