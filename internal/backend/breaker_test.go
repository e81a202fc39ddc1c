package backend

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func unavailable() error {
	return &Error{Code: CodeUnavailable, Message: "boom"}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	boom := unavailable()

	for i := 0; i < failureThreshold; i++ {
		err := cb.Execute("respond", func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State("respond"))

	err := cb.Execute("respond", func() error {
		t.Fatal("should not be called while open")
		return nil
	})
	require.Error(t, err)

	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeUnavailable, berr.Code)
}

func TestCircuitBreakerIgnoresNonTransientFailures(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	rejected := &Error{Code: CodeRejected, Message: "bad request"}

	for i := 0; i < failureThreshold*2; i++ {
		err := cb.Execute("respond", func() error { return rejected })
		require.ErrorIs(t, err, rejected)
	}

	assert.Equal(t, StateClosed, cb.State("respond"))
}

func TestCircuitBreakerKeysAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	boom := unavailable()

	for i := 0; i < failureThreshold; i++ {
		_ = cb.Execute("summarize", func() error { return boom })
	}

	assert.Equal(t, StateOpen, cb.State("summarize"))
	assert.Equal(t, StateClosed, cb.State("title"))

	err := cb.Execute("title", func() error { return nil })
	assert.NoError(t, err)
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	boom := unavailable()

	for i := 0; i < failureThreshold; i++ {
		_ = cb.Execute("respond", func() error { return boom })
	}
	require.Equal(t, StateOpen, cb.State("respond"))

	// Age the failure past the open timeout.
	cb.mu.Lock()
	cb.breakers["respond"].lastFailure = cb.breakers["respond"].lastFailure.Add(-2 * openTimeout)
	cb.mu.Unlock()

	assert.Equal(t, StateHalfOpen, cb.State("respond"))

	for i := 0; i < successThreshold; i++ {
		err := cb.Execute("respond", func() error { return nil })
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.State("respond"))
}

func TestCircuitBreakerReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	boom := unavailable()

	for i := 0; i < failureThreshold; i++ {
		_ = cb.Execute("respond", func() error { return boom })
	}

	cb.mu.Lock()
	cb.breakers["respond"].lastFailure = cb.breakers["respond"].lastFailure.Add(-2 * openTimeout)
	cb.mu.Unlock()

	err := cb.Execute("respond", func() error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, StateOpen, cb.State("respond"))
}

func TestCircuitBreakerClosedResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(testLogger())
	boom := unavailable()

	for i := 0; i < failureThreshold-1; i++ {
		_ = cb.Execute("respond", func() error { return boom })
	}

	require.NoError(t, cb.Execute("respond", func() error { return nil }))

	// The earlier failures no longer count toward the threshold.
	for i := 0; i < failureThreshold-1; i++ {
		_ = cb.Execute("respond", func() error { return boom })
	}
	assert.Equal(t, StateClosed, cb.State("respond"))
}
