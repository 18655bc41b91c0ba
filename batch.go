package mailverify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Row is one line of batch output.
type Row struct {
	Email      string
	MethodUsed StageName // failing stage, StageAll on pass, StageUnknown on fault
	Status     Status
}

// RowWriter persists batch rows. BatchRunner never calls WriteRow
// concurrently.
type RowWriter interface {
	WriteRow(Row) error
}

// Summary counts the rows written by a batch run.
type Summary struct {
	ID      string
	Total   int
	Passed  int
	Failed  int
	Windows int
	Elapsed time.Duration
}

// BatchRunner drives a Verifier over a list of addresses in fixed-size
// windows. Every address processed yields exactly one row, whatever
// happens to the other addresses of its window.
type BatchRunner struct {
	verifier *Verifier
	width    int
	log      logrus.FieldLogger
}

// NewBatchRunner creates a BatchRunner. A zero Width uses the default of 10.
func NewBatchRunner(v *Verifier, log logrus.FieldLogger, opts ...ConcurrencyOptions) *BatchRunner {
	o := defaultConcurrencyOptions()
	if len(opts) > 0 && opts[0].Width > 0 {
		o = opts[0]
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BatchRunner{verifier: v, width: o.Width, log: log}
}

// Run verifies emails and writes one row per address to w. It stops
// before the next window when ctx is cancelled or a row cannot be
// written; rows of the current window are still written.
func (b *BatchRunner) Run(ctx context.Context, emails []string, w RowWriter) (Summary, error) {
	sum := Summary{ID: uuid.NewString()}
	if b.verifier.err != nil {
		return sum, b.verifier.err
	}

	log := b.log.WithField("batch", sum.ID)
	log.WithFields(logrus.Fields{
		"addresses": len(emails),
		"width":     b.width,
	}).Info("batch started")
	start := time.Now()

	var mu sync.Mutex
	for _, win := range windows(len(emails), b.width) {
		if err := ctx.Err(); err != nil {
			return b.finish(log, sum, start), err
		}
		sum.Windows++

		var g errgroup.Group
		for i := win.start; i < win.end; i++ {
			i := i
			g.Go(func() error {
				out := b.verifier.run(ctx, emails[i])
				row := Row{Email: out.Email, MethodUsed: out.Verification(), Status: out.Status}

				mu.Lock()
				defer mu.Unlock()
				if err := w.WriteRow(row); err != nil {
					return fmt.Errorf("writing row for %q: %w", row.Email, err)
				}
				sum.Total++
				if out.Passed() {
					sum.Passed++
				} else {
					sum.Failed++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return b.finish(log, sum, start), err
		}

		log.WithFields(logrus.Fields{
			"window": sum.Windows,
			"done":   sum.Total,
		}).Info("batch window finished")
	}

	return b.finish(log, sum, start), nil
}

func (b *BatchRunner) finish(log logrus.FieldLogger, sum Summary, start time.Time) Summary {
	sum.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"total":   sum.Total,
		"passed":  sum.Passed,
		"failed":  sum.Failed,
		"windows": sum.Windows,
		"elapsed": sum.Elapsed.String(),
	}).Info("batch finished")
	return sum
}
