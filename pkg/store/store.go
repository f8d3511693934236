// Package store persists named string values with an expiry. The client
// uses it to keep access and refresh tokens across process restarts.
//
// Backends: [Memory] for tests and short-lived processes, [File] for a
// JSON cache on disk, [SQLite], the OS keychain via [Keyring], and
// [Redis].
package store

import (
	"context"
	"time"
)

// Store is the persistence capability used by the token client. Get
// reports ok=false for missing or expired keys. Delete of a missing key is
// not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// entry is the serialized form shared by backends that cannot expire
// values natively.
type entry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

func newEntry(value string, ttl time.Duration, now time.Time) entry {
	e := entry{Value: value}
	if ttl > 0 {
		e.Expires = now.Add(ttl)
	}
	return e
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}
