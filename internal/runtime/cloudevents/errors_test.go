package cloudevents

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrRetryAfter(t *testing.T) {
	cause := errors.New("rate limited")
	err := ErrRetryAfter(5*time.Second, cause)

	assert.Equal(t, 5*time.Second, err.Delay)
	assert.Contains(t, err.Error(), "retry after 5s")
	assert.Contains(t, err.Error(), "rate limited")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrRetry)
}

func TestErrRetryAfterWithoutCause(t *testing.T) {
	err := ErrRetryAfter(time.Minute, nil)
	assert.Contains(t, err.Error(), "retry after 1m0s")
	assert.NoError(t, err.Unwrap())
}

func TestErrDeadLetterWithReason(t *testing.T) {
	cause := errors.New("duplicate payment")
	err := ErrDeadLetterWithReason("payment already processed", cause)

	assert.Equal(t, "payment already processed", err.Reason)
	assert.Contains(t, err.Error(), "payment already processed")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDeadLetter)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      HandlerResult
		wantDelay time.Duration
	}{
		{"nil acks", nil, ResultAck, 0},
		{"retry sentinel", ErrRetry, ResultRetry, 0},
		{"retry after", ErrRetryAfter(10*time.Second, nil), ResultRetryAfter, 10 * time.Second},
		{"dead letter sentinel", ErrDeadLetter, ResultDeadLetter, 0},
		{"dead letter with reason", ErrDeadLetterWithReason("bad", nil), ResultDeadLetter, 0},
		{"skip sentinel", ErrSkip, ResultSkip, 0},
		{"unprocessable goes to DLQ", ErrUnprocessable, ResultDeadLetter, 0},
		{"unknown errors retry", errors.New("boom"), ResultRetry, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, delay := ClassifyError(tc.err)
			assert.Equal(t, tc.want, result)
			assert.Equal(t, tc.wantDelay, delay)
		})
	}
}

func TestClassifyErrorUnwrapsWrappedSentinels(t *testing.T) {
	result, _ := ClassifyError(fmt.Errorf("handler: %w", ErrSkip))
	assert.Equal(t, ResultSkip, result)

	result, delay := ClassifyError(fmt.Errorf("handler: %w", ErrRetryAfter(time.Second, nil)))
	assert.Equal(t, ResultRetryAfter, result)
	assert.Equal(t, time.Second, delay)

	result, _ = ClassifyError(fmt.Errorf("handler: %w", ErrDeadLetter))
	assert.Equal(t, ResultDeadLetter, result)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrRetry))
	assert.True(t, IsRetryable(ErrRetryAfter(time.Second, nil)))
	assert.True(t, IsRetryable(errors.New("unknown")))
	assert.False(t, IsRetryable(ErrDeadLetter))
	assert.False(t, IsRetryable(ErrSkip))
	assert.False(t, IsRetryable(ErrUnprocessable))
}

func TestShouldDeadLetter(t *testing.T) {
	assert.False(t, ShouldDeadLetter(nil))
	assert.True(t, ShouldDeadLetter(ErrDeadLetter))
	assert.True(t, ShouldDeadLetter(ErrDeadLetterWithReason("bad", nil)))
	assert.True(t, ShouldDeadLetter(ErrUnprocessable))
	assert.False(t, ShouldDeadLetter(ErrRetry))
	assert.False(t, ShouldDeadLetter(errors.New("unknown")))
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrRetry, ErrDeadLetter, ErrSkip, ErrUnprocessable}
	for i, a := range sentinels {
		require.Error(t, a)
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
