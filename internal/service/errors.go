package service

import (
	"errors"
	"fmt"

	"rate-cache-service/internal/domain/model"
)

var (
	ErrRemoteFetch     = errors.New("remote fetch failed")
	ErrNoDataAvailable = errors.New("no rate available")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrFetchPanicked   = errors.New("fetch panicked")
)

// RemoteFetchError reports a failed quote fetch for a pair. It matches
// ErrRemoteFetch and unwraps to the source's error.
type RemoteFetchError struct {
	Pair model.PairKey
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("%v [%s]: %v", ErrRemoteFetch, e.Pair, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrRemoteFetch
}
