package graph

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StoreError reports a failed store operation on one collection.
type StoreError struct {
	Op         string
	Collection Collection
	Key        string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err carries a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// ErrNotFound is returned by GetNode when no document is stored under the key.
var ErrNotFound = errors.New("document not found")

// IsNotFound reports whether err means the requested document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}
