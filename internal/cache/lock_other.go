//go:build !unix

package cache

import "time"

// acquireLock is a no-op where flock is unavailable. Concurrent writers on
// these platforms can lose each other's index updates.
func acquireLock(string, time.Duration) (func() error, error) {
	return func() error { return nil }, nil
}
