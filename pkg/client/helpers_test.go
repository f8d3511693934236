package client_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

var (
	sharedTestKey     *ecdsa.PrivateKey
	sharedTestKeyOnce sync.Once
)

func getSharedTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	sharedTestKeyOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic("failed to generate shared test key: " + err.Error())
		}
		sharedTestKey = key
	})
	return sharedTestKey
}

var alice = tokens.Identity{
	ID:          "42",
	Username:    "alice",
	Database:    "prod",
	Application: "ledger",
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) client.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Pending returns the delay until each active timer, soonest first.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at.Sub(c.now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Advance moves time forward and runs due timers outside the lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// stubRefresher answers refresh calls from respond.
type stubRefresher struct {
	mu      sync.Mutex
	got     []string
	respond func(refreshToken string) (client.TokenPair, error)
}

func (s *stubRefresher) Refresh(_ context.Context, refreshToken string) (client.TokenPair, error) {
	s.mu.Lock()
	s.got = append(s.got, refreshToken)
	respond := s.respond
	s.mu.Unlock()
	if respond == nil {
		return client.TokenPair{}, client.ErrRefreshFailed
	}
	return respond(refreshToken)
}

func (s *stubRefresher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

type harness struct {
	clock     *fakeClock
	store     *store.Memory
	nav       *navigate.Recorder
	refresher *stubRefresher
	issuer    *tokens.Issuer
	cfg       client.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	nav, err := navigate.NewRecorder("https://app.test/dashboard")
	require.NoError(t, err)
	return &harness{
		clock:     clock,
		store:     store.NewMemoryWithClock(clock.Now),
		nav:       nav,
		refresher: &stubRefresher{},
		issuer:    tokens.NewIssuer(getSharedTestKey(t), "idp.test").WithClock(clock.Now),
		cfg: client.Config{
			AuthURL:          "https://idp.test/",
			APIURL:           "https://api.test",
			StorageKey:       "tok",
			DisableAutoLogin: true,
			Database:         "prod",
			Application:      "ledger",
		},
	}
}

func (h *harness) options(t *testing.T) []client.Option {
	return []client.Option{
		client.WithStore(h.store),
		client.WithNavigator(h.nav),
		client.WithRefresher(h.refresher),
		client.WithClock(h.clock),
		client.WithLogger(zaptest.NewLogger(t).Sugar()),
	}
}

func (h *harness) newClient(t *testing.T, extra ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(context.Background(), h.cfg, append(h.options(t), extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h *harness) access(t *testing.T, lifetime time.Duration) string {
	t.Helper()
	token, err := h.issuer.IssueAccessToken(alice, lifetime)
	require.NoError(t, err)
	return token
}

func (h *harness) refresh(t *testing.T) string {
	t.Helper()
	token, err := h.issuer.IssueRefreshToken(alice, 72*time.Hour)
	require.NoError(t, err)
	return token
}

func (h *harness) stored(key string) (string, bool) {
	value, ok, _ := h.store.Get(context.Background(), key)
	return value, ok
}
