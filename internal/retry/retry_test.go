package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{InitialDelay: 350 * time.Millisecond, MaxDelay: 6 * time.Second, Multiplier: 2}
	assert.Equal(t, 350*time.Millisecond, cfg.Backoff(0))
	assert.Equal(t, 700*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 1400*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 6*time.Second, cfg.Backoff(10))
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 200; i++ {
		d := cfg.Backoff(0)
		assert.GreaterOrEqual(t, d, time.Duration(float64(350*time.Millisecond)*0.875))
		assert.LessOrEqual(t, d, time.Duration(float64(350*time.Millisecond)*1.125))
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still down")
}

func TestDoSingleAttemptReturnsRawError(t *testing.T) {
	sentinel := errors.New("nope")
	err := Do(context.Background(), fastConfig(0), func() error { return sentinel })
	assert.Same(t, sentinel, err)
}

func TestDoStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastConfig(3)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	err := Do(ctx, cfg, func() error { return errors.New("fail") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoResultReturnsValue(t *testing.T) {
	v, err := DoResult(context.Background(), fastConfig(1), func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
