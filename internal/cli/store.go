package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.sr.ht/~jakintosh/authclient/pkg/store"
)

const (
	keyringService   = "authctl"
	redisKeyPrefix   = "authctl:"
	defaultRedisAddr = "127.0.0.1:6379"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the token store named by cfg.Kind. The closer
// releases whatever connection the backend holds.
func openStore(
	ctx context.Context,
	cfg StoreConfig,
) (store.Store, io.Closer, error) {
	switch cfg.Kind {
	case "", StoreFile:
		path := cfg.Path
		if path == "" {
			path = DefaultStorePath(StoreFile)
		}
		return store.NewFile(path), nopCloser{}, nil

	case StoreSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultStorePath(StoreSQLite)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		s, err := store.NewSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		if _, err := s.Purge(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("failed to purge expired tokens: %w", err)
		}
		return s, s, nil

	case StoreKeyring:
		return store.NewKeyring(keyringService), nopCloser{}, nil

	case StoreRedis:
		addr := cfg.RedisAddr
		if addr == "" {
			addr = defaultRedisAddr
		}
		s, err := store.DialRedis(ctx, addr, redisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case StoreMemory:
		return store.NewMemory(), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q (want file, keyring, sqlite, redis or memory)", cfg.Kind)
	}
}
