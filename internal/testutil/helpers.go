package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestContext creates a context with timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertTimeWithin asserts that a time is within an expected range
func AssertTimeWithin(t *testing.T, actual, expected time.Time, delta time.Duration) {
	t.Helper()
	diff := actual.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, diff, delta,
		"expected time %v to be within %v of %v, but difference was %v",
		actual, delta, expected, diff)
}

// Ptr returns a pointer to the given value (useful for optional fields)
func Ptr[T any](v T) *T {
	return &v
}

// FixedClock returns a clock function that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
