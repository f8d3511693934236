package client

import (
	"context"
	"sync"
)

// Holder owns at most one Client. The zero value is ready to use.
type Holder struct {
	mu     sync.Mutex
	client *Client
}

// Create constructs the held client. It fails with ErrAlreadyInitialized
// until Reset is called.
func (h *Holder) Create(
	ctx context.Context,
	cfg Config,
	opts ...Option,
) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return nil, ErrAlreadyInitialized
	}
	c, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	h.client = c
	return c, nil
}

func (h *Holder) Get() (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return nil, ErrNotInitialized
	}
	return h.client, nil
}

// Reset closes and forgets the held client.
func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		_ = h.client.Close()
		h.client = nil
	}
}

var defaultHolder Holder

func Create(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	return defaultHolder.Create(ctx, cfg, opts...)
}

func Get() (*Client, error) { return defaultHolder.Get() }

func Reset() { defaultHolder.Reset() }
