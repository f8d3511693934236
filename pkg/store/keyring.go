package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// Keyring stores entries in the operating system credential store, one
// secret per key under Service. Expiry is kept alongside the value.
type Keyring struct {
	Service string

	now func() time.Time
}

func NewKeyring(service string) *Keyring {
	return &Keyring{Service: service, now: time.Now}
}

func (k *Keyring) Get(_ context.Context, key string) (string, bool, error) {
	secret, err := keyring.Get(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read keyring: %w", err)
	}

	var e entry
	if err := json.Unmarshal([]byte(secret), &e); err != nil {
		return "", false, fmt.Errorf("failed to parse keyring entry: %w", err)
	}
	if e.expired(k.clock()) {
		_ = keyring.Delete(k.Service, key)
		return "", false, nil
	}
	return e.Value, true, nil
}

func (k *Keyring) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	content, err := json.Marshal(newEntry(value, ttl, k.clock()))
	if err != nil {
		return fmt.Errorf("failed to marshal keyring entry: %w", err)
	}
	if err := keyring.Set(k.Service, key, string(content)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func (k *Keyring) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.Service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *Keyring) clock() time.Time {
	if k.now == nil {
		return time.Now()
	}
	return k.now()
}
