package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     time.Millisecond,
		Cap:      10 * time.Millisecond,
		Factor:   2,
	}
}

func TestDo(t *testing.T) {
	transient := NewTransientError(errors.New("database starting"))

	tests := []struct {
		name      string
		failures  int // calls that fail before success; -1 means always
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt", failures: 0, err: transient, wantCalls: 1},
		{name: "success after retries", failures: 2, err: transient, wantCalls: 3},
		{name: "attempts exhausted", failures: -1, err: transient, wantCalls: 3, wantErr: true},
		{name: "permanent error", failures: -1, err: errors.New("password authentication failed"), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			err := Do(context.Background(), fastPolicy(), func(_ context.Context) error {
				calls++
				if tt.failures < 0 || calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.err.Error(), err.Error())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy()
	p.Attempts = 10

	var calls int
	err := Do(ctx, p, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryableWithLogging(t *testing.T) {
	p := fastPolicy()
	p.Name = "postgres connect"
	p.Retryable = func(error) bool { return true }

	var calls int
	err := Do(context.Background(), p, func(_ context.Context) error {
		calls++
		return errors.New("plain")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("retry me"))
		}
		return "pool", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pool", v)

	v, err = DoVal(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		return "partial", errors.New("fatal")
	})
	require.Error(t, err)
	assert.Empty(t, v)
}

func TestPolicyWithDefaults(t *testing.T) {
	p := Policy{Jitter: -1}.withDefaults()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 500*time.Millisecond, p.Base)
	assert.Equal(t, 10*time.Second, p.Cap)
	assert.InDelta(t, 2.0, p.Factor, 0.0001)
	assert.Zero(t, p.Jitter)
	require.NotNil(t, p.Retryable)
	assert.True(t, p.Retryable(NewTransientError(errors.New("x"))))
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Second, p.delay(11))

	p.Jitter = 0.5
	for range 50 {
		d := p.delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
