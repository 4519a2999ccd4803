package testutils

import (
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestHelper bundles a test with a logger that writes through t.Log.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper whose debug logs appear only for failed or verbose tests.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{T: t, Logger: NewTestLogger(t)}
}

// NewTestLogger returns a debug-level logger routed to t.Log. Lines written by
// background goroutines after the test finished are dropped.
func NewTestLogger(t testing.TB) *logrus.Logger {
	w := &testLogWriter{t: t}
	t.Cleanup(w.close)

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger
}

type testLogWriter struct {
	mu     sync.Mutex
	t      testing.TB
	closed bool
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.t.Log(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (w *testLogWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
