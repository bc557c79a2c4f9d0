// Package testutil provides testing utilities for idconnect
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/idconnect/pkg/logger"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// UseTestLogger routes the global logger to the test output until the test
// ends. Anything that must stop logging, such as a facade, has to be closed
// by a cleanup registered after this call.
func UseTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	prev := logger.Get()
	l := zaptest.NewLogger(t)
	logger.Set(l)
	t.Cleanup(func() { logger.Set(prev) })
	return l
}

// TestContext returns a context with a 30-second timeout that is cancelled
// when the test ends.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
