// Package testutil holds fakes shared by the tests of several packages:
// a logrus logger writing to the test log, canned DNS zones and an
// in-memory SMTP server.
package testutil

import (
	"flag"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

var debugLog = flag.Bool("test.debuglog", false, "(mailverify) Turn on debug log messages")

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// Logger returns a logger that writes to t.Log.
func Logger(t *testing.T) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(testWriter{t: t})
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *debugLog {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}
