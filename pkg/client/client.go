package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Expiring
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expiring:
		return "expiring"
	default:
		return "unauthenticated"
	}
}

const refreshTimeout = 30 * time.Second

// reasons a session is cleared, used as the metrics label
const (
	reasonMalformed     = "malformed"
	reasonExpired       = "expired"
	reasonRefreshFailed = "refresh_failed"
	reasonLogin         = "login"
	reasonLogout        = "logout"
)

type Option func(*Client)

func WithStore(s store.Store) Option {
	return func(c *Client) { c.store = s }
}

func WithNavigator(n navigate.Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// WithRefresher replaces the HTTP exchange against {AuthURL}/refresh.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient sets the client used for refresh calls and by [Client.API].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client is the token state machine. It is safe for concurrent use.
type Client struct {
	cfg        Config
	store      store.Store
	nav        navigate.Navigator
	refresher  Refresher
	clock      Clock
	log        *zap.SugaredLogger
	metrics    *Metrics
	httpClient *http.Client

	mu      sync.Mutex
	session *session
	timer   Timer
	// generation changes whenever the session is replaced or cleared, so
	// timers and refreshes started against an older session can tell.
	generation uint64
	refreshing singleflight.Group
}

// session holds the pair and the claims parsed from it. They are only
// ever set or cleared together.
type session struct {
	pair   TokenPair
	claims *tokens.Claims
}

func newClient(cfg Config, opts ...Option) *Client {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = store.NewMemory()
	}
	if c.nav == nil {
		c.nav = navigate.NewBrowser(nil)
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: refreshTimeout}
	}
	if c.refresher == nil {
		c.refresher = NewHTTPRefresher(cfg, c.httpClient)
	}
	return c
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked() {
		return Unauthenticated
	}
	if c.session.claims.SecondsUntilExpiry(c.clock.Now()) <= c.marginSeconds() {
		return Expiring
	}
	return Authenticated
}

// IsValid reports whether a session is present and unexpired right now.
func (c *Client) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *Client) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked() {
		return "", ErrInvalidToken
	}
	return c.session.pair.AccessToken, nil
}

func (c *Client) TokenInfo() (TokenInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked() {
		return TokenInfo{}, ErrInvalidToken
	}
	now := c.clock.Now()
	claims := c.session.claims
	return TokenInfo{
		SecondsUntilExpiry: claims.SecondsUntilExpiry(now),
		MinutesUntilExpiry: claims.MinutesUntilExpiry(now),
		ExpiresAt:          claims.ExpiresAt,
		User:               claims.User,
	}, nil
}

func (c *Client) AuthHeaders() (http.Header, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Content-Type", "application/json")
	return header, nil
}

// SetTokens adopts a new pair. A malformed access token clears the session
// and returns [ErrMalformedToken]. An access token already inside the
// refresh margin is refreshed before SetTokens returns.
func (c *Client) SetTokens(
	ctx context.Context,
	accessToken string,
	refreshToken string,
) error {
	claims, err := tokens.Parse(accessToken)
	if err != nil {
		c.log.Warnw("rejecting malformed token", "error", err)
		c.clear(ctx, reasonMalformed)
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c.mu.Lock()
	refreshNow := c.adoptLocked(ctx, TokenPair{accessToken, refreshToken}, claims, false)
	c.mu.Unlock()

	if refreshNow {
		if err := c.refresh(ctx); err != nil {
			c.log.Warnw("immediate refresh failed", "error", err)
		}
	}
	return nil
}

// Refresh exchanges the refresh token now. Without a refresh token it
// returns [ErrNoRefreshToken] and leaves the session alone; any other
// failure clears the session and returns [ErrRefreshFailed].
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

// Login clears the session and sends the user-agent to the login page.
func (c *Client) Login(ctx context.Context) error {
	return c.redirect(ctx, navigate.Login, reasonLogin)
}

// Logout clears the session and sends the user-agent to the logout page.
func (c *Client) Logout(ctx context.Context) error {
	return c.redirect(ctx, navigate.Logout, reasonLogout)
}

// Close stops the pending refresh. The session and persisted tokens are
// left as they are so a later process can restore them.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.stopTimerLocked()
	return nil
}

func (c *Client) redirect(
	ctx context.Context,
	action navigate.Action,
	reason string,
) error {
	c.mu.Lock()
	refreshToken := ""
	if action == navigate.Logout && c.session != nil {
		refreshToken = c.session.pair.RefreshToken
	}
	c.clearLocked(ctx, reason)
	c.mu.Unlock()

	next := ""
	if loc := c.nav.Location(); loc != nil {
		next = loc.String()
	}
	target, err := navigate.BuildURL(c.cfg.AuthURL, action, next, c.cfg.Database, c.cfg.Application)
	if err != nil {
		return err
	}
	c.log.Infow("redirecting to identity provider", "action", action, "url", target.String())
	// the provider revokes the refresh token it is handed on logout
	if refreshToken != "" {
		q := target.Query()
		q.Set(navigate.ParamRefreshToken, refreshToken)
		target.RawQuery = q.Encode()
	}
	if err := c.nav.Redirect(ctx, target); err != nil {
		return fmt.Errorf("failed to redirect to %s: %w", action, err)
	}
	return nil
}

func (c *Client) validLocked() bool {
	return c.session != nil && !c.session.claims.Expired(c.clock.Now())
}

func (c *Client) marginSeconds() int64 {
	return int64(c.cfg.RefreshMargin / time.Second)
}

// adoptLocked installs the pair, persists it, and arranges the next
// refresh. It reports true when the caller must refresh immediately; a
// pair that itself came from a refresh never asks for that.
func (c *Client) adoptLocked(
	ctx context.Context,
	pair TokenPair,
	claims *tokens.Claims,
	refreshed bool,
) bool {
	c.generation++
	c.stopTimerLocked()
	gen := c.generation

	now := c.clock.Now()
	secs := claims.SecondsUntilExpiry(now)
	if secs <= 0 {
		c.log.Infow("token already expired", "expired_at", claims.ExpiresAt)
		c.clearLocked(ctx, reasonExpired)
		return false
	}

	c.session = &session{pair: pair, claims: claims}
	c.persistLocked(ctx, pair)
	c.metrics.expiresAt(claims.ExpiresAt.Unix())
	c.log.Infow("token set",
		"user", claims.User.Username,
		"expires_in_minutes", claims.MinutesUntilExpiry(now),
	)

	margin := c.marginSeconds()
	switch {
	case secs > margin:
		delay := time.Duration(secs-margin) * time.Second
		c.scheduleLocked(gen, delay, c.onRefreshTimer)
		c.log.Debugw("scheduled token refresh", "in", delay)
	case pair.RefreshToken == "":
		c.log.Warnw("token expires within the refresh margin and there is no refresh token",
			"expires_in_seconds", secs,
		)
		c.scheduleLocked(gen, time.Duration(secs)*time.Second, c.onExpiryTimer)
	case refreshed:
		delay := time.Duration(secs) * time.Second / 2
		c.log.Warnw("refreshed token already within the refresh margin",
			"expires_in_seconds", secs,
			"next_refresh_in", delay,
		)
		c.scheduleLocked(gen, delay, c.onRefreshTimer)
	default:
		c.log.Infow("token expires within the refresh margin, refreshing now",
			"expires_in_seconds", secs,
		)
		return true
	}
	return false
}

func (c *Client) scheduleLocked(gen uint64, delay time.Duration, fire func(uint64)) {
	c.stopTimerLocked()
	c.timer = c.clock.AfterFunc(delay, func() { fire(gen) })
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) onRefreshTimer(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := c.refresh(ctx); err != nil {
		c.log.Warnw("scheduled refresh failed", "error", err)
		c.mu.Lock()
		if gen == c.generation {
			c.clearLocked(ctx, reasonRefreshFailed)
		}
		c.mu.Unlock()
	}
}

func (c *Client) onExpiryTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.generation {
		c.timer = nil
		c.clearLocked(context.Background(), reasonExpired)
	}
}

// refresh collapses concurrent callers into one exchange per session.
// Callers that arrive after the session was replaced start their own.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	_, err, shared := c.refreshing.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, c.exchange(ctx, gen)
	})
	if shared {
		c.log.Debugw("joined in-flight refresh")
	}
	return err
}

func (c *Client) exchange(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return fmt.Errorf("%w: session changed before refresh", ErrRefreshFailed)
	}
	if c.session == nil || c.session.pair.RefreshToken == "" {
		c.mu.Unlock()
		return ErrNoRefreshToken
	}
	refreshToken := c.session.pair.RefreshToken
	c.mu.Unlock()

	pair, err := c.refresher.Refresh(ctx, refreshToken)
	var claims *tokens.Claims
	if err == nil {
		if pair.AccessToken == "" {
			err = errors.New("response missing 'access_token'")
		} else {
			claims, err = tokens.Parse(pair.AccessToken)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.metrics.refreshed("discarded")
		c.log.Infow("discarding refresh result, session changed during refresh")
		return fmt.Errorf("%w: session changed during refresh", ErrRefreshFailed)
	}
	if err != nil {
		c.metrics.refreshed("failure")
		c.clearLocked(ctx, reasonRefreshFailed)
		if errors.Is(err, ErrRefreshFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	c.adoptLocked(ctx, pair, claims, true)
	if c.session == nil {
		c.metrics.refreshed("failure")
		return fmt.Errorf("%w: refreshed token already expired", ErrRefreshFailed)
	}
	c.metrics.refreshed("success")
	return nil
}

func (c *Client) clear(ctx context.Context, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked(ctx, reason)
}

func (c *Client) clearLocked(ctx context.Context, reason string) {
	c.generation++
	c.stopTimerLocked()
	c.session = nil

	ctx = context.WithoutCancel(ctx)
	for _, key := range []string{c.cfg.StorageKey, c.cfg.refreshKey()} {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Errorw("couldn't delete persisted token", "key", key, "error", err)
		}
	}
	c.metrics.cleared(reason)
	c.log.Infow("session cleared", "reason", reason)
}

func (c *Client) persistLocked(ctx context.Context, pair TokenPair) {
	ctx = context.WithoutCancel(ctx)
	values := map[string]string{
		c.cfg.StorageKey:   pair.AccessToken,
		c.cfg.refreshKey(): pair.RefreshToken,
	}
	for key, value := range values {
		if err := c.store.Set(ctx, key, value, c.cfg.StorageTTL); err != nil {
			c.log.Errorw("couldn't persist token", "key", key, "error", err)
		}
	}
}

func (c *Client) loadPersisted(ctx context.Context) TokenPair {
	var pair TokenPair
	access, ok, err := c.store.Get(ctx, c.cfg.StorageKey)
	if err != nil {
		c.log.Errorw("couldn't read persisted token", "error", err)
		return pair
	}
	if !ok {
		return pair
	}
	pair.AccessToken = access

	refresh, _, err := c.store.Get(ctx, c.cfg.refreshKey())
	if err != nil {
		c.log.Errorw("couldn't read persisted refresh token", "error", err)
	}
	pair.RefreshToken = refresh
	return pair
}
