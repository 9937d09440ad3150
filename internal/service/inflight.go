package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"rate-cache-service/internal/domain/model"
)

// FetchFunc performs one remote fetch for a pair.
type FetchFunc func() (float64, error)

// InFlightRegistry ensures at most one fetch per pair is outstanding. The
// entry for a pair is dropped as soon as its fetch returns, before any
// waiting caller is released, so a caller arriving afterwards starts a new
// fetch.
type InFlightRegistry struct {
	group   singleflight.Group
	waiting atomic.Int64
}

func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{}
}

// Join waits for the outstanding fetch for key, starting one with start if
// none is running. shared is true when another caller started the fetch.
//
// The fetch runs on its own goroutine: if ctx ends first Join returns
// ctx.Err() and the fetch continues for the remaining callers. A panic in
// start is returned to every caller as an error wrapping ErrFetchPanicked.
func (r *InFlightRegistry) Join(ctx context.Context, key model.PairKey, start FetchFunc) (value float64, shared bool, err error) {
	var started atomic.Bool

	ch := r.group.DoChan(string(key), func() (val interface{}, err error) {
		started.Store(true)
		defer func() {
			if p := recover(); p != nil {
				val, err = nil, fmt.Errorf("%w: %v", ErrFetchPanicked, p)
			}
		}()
		return start()
	})
	r.waiting.Add(1)
	defer r.waiting.Add(-1)

	select {
	case res := <-ch:
		shared = !started.Load()
		if res.Err != nil {
			return 0, shared, res.Err
		}
		return res.Val.(float64), shared, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Waiting reports how many callers are currently attached to a fetch.
func (r *InFlightRegistry) Waiting() int {
	return int(r.waiting.Load())
}
