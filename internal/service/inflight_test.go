package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightRegistry_JoinSharesOneCall(t *testing.T) {
	r := NewInFlightRegistry()
	release := make(chan struct{})
	var starts atomic.Int32

	start := func() (float64, error) {
		starts.Add(1)
		<-release
		return 3.5, nil
	}

	const callers = 10
	var (
		wg     sync.WaitGroup
		shared atomic.Int32
	)
	values := make([]float64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, s, err := r.Join(context.Background(), "USD_EUR", start)
			assert.NoError(t, err)
			values[i] = v
			if s {
				shared.Add(1)
			}
		}(i)
	}

	require.Eventually(t, func() bool { return r.Waiting() == callers }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), starts.Load())
	assert.Equal(t, int32(callers-1), shared.Load())
	for _, v := range values {
		assert.Equal(t, 3.5, v)
	}
	assert.Zero(t, r.Waiting())
}

func TestInFlightRegistry_KeysAreIndependent(t *testing.T) {
	r := NewInFlightRegistry()
	release := make(chan struct{})
	var starts atomic.Int32

	start := func() (float64, error) {
		starts.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"USD_EUR", "USD_GBP", "EUR_USD"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, _ = r.Join(context.Background(), pairKey(key), start)
		}(key)
	}

	require.Eventually(t, func() bool { return starts.Load() == 3 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}

func TestInFlightRegistry_FinishedEntryIsRemoved(t *testing.T) {
	r := NewInFlightRegistry()
	errBoom := errors.New("boom")
	calls := 0

	for i := 0; i < 3; i++ {
		_, shared, err := r.Join(context.Background(), "USD_EUR", func() (float64, error) {
			calls++
			return 0, errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.False(t, shared)
	}
	assert.Equal(t, 3, calls)
}

func TestInFlightRegistry_ContextCancelled(t *testing.T) {
	r := NewInFlightRegistry()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Join(ctx, "USD_EUR", func() (float64, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInFlightRegistry_PanicBecomesError(t *testing.T) {
	r := NewInFlightRegistry()

	_, _, err := r.Join(context.Background(), "USD_EUR", func() (float64, error) {
		panic("nil map write")
	})
	assert.ErrorIs(t, err, ErrFetchPanicked)
	assert.ErrorContains(t, err, "nil map write")

	v, _, err := r.Join(context.Background(), "USD_EUR", func() (float64, error) {
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}
