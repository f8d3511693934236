// Package providertest runs the development identity provider in-process
// for tests.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"git.sr.ht/~jakintosh/authclient/pkg/clienttest"
	"git.sr.ht/~jakintosh/authclient/pkg/provider"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// Config holds configuration for starting a harness. Zero values get
// defaults.
type Config struct {
	AppName         string
	AppDisplay      string
	AppAudience     string
	IssuerDomain    string
	Users           []User
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

type User struct {
	Handle   string
	Password string
	Database string
}

// Harness is a running provider.
type Harness struct {
	BaseURL    string
	AppName    string
	CatalogDir string
	Users      []User
	Provider   *provider.Provider
	Issuer     *tokens.Issuer

	server *httptest.Server
}

// Start builds a provider backed by an in-memory database and a catalog
// directory holding one application, and serves it with httptest.
func Start(t testing.TB, cfg Config) *Harness {
	t.Helper()
	applyDefaults(&cfg)
	log := zaptest.NewLogger(t).Sugar()

	catalogDir := t.TempDir()
	def, err := json.Marshal(provider.Application{Display: cfg.AppDisplay, Audience: cfg.AppAudience})
	if err != nil {
		t.Fatalf("marshal application: %v", err)
	}
	if err := os.WriteFile(filepath.Join(catalogDir, cfg.AppName+".json"), def, 0o644); err != nil {
		t.Fatalf("write application: %v", err)
	}
	catalog, err := provider.LoadCatalog(catalogDir, log)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	db, err := provider.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	issuer := tokens.NewIssuer(clienttest.SharedTestKey(), cfg.IssuerDomain)
	p, err := provider.New(provider.Options{
		Issuer:          issuer,
		Database:        db,
		Catalog:         catalog,
		AccessLifetime:  cfg.AccessLifetime,
		RefreshLifetime: cfg.RefreshLifetime,
		PasswordMode:    provider.PasswordModeTesting,
		Logger:          log,
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}

	for _, user := range cfg.Users {
		if err := p.Register(user.Handle, user.Password, user.Database); err != nil {
			t.Fatalf("register %s: %v", user.Handle, err)
		}
	}

	server := httptest.NewServer(p.Router())
	h := &Harness{
		BaseURL:    server.URL,
		AppName:    cfg.AppName,
		CatalogDir: catalogDir,
		Users:      cfg.Users,
		Provider:   p,
		Issuer:     issuer,
		server:     server,
	}
	t.Cleanup(func() {
		server.Close()
		_ = catalog.Close()
		_ = db.Close()
	})
	return h
}

func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "test-app"
	}
	if cfg.AppDisplay == "" {
		cfg.AppDisplay = "Test App"
	}
	if cfg.AppAudience == "" {
		cfg.AppAudience = "test-audience"
	}
	if cfg.IssuerDomain == "" {
		cfg.IssuerDomain = "provider.test"
	}
	if len(cfg.Users) == 0 {
		cfg.Users = []User{{Handle: "test", Password: "test"}}
	}
}

// Client returns an HTTP client that does not follow redirects, so the
// provider's redirect can be inspected.
func (h *Harness) Client() *http.Client {
	client := *h.server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &client
}

// Login submits the login form and returns the redirect target carrying
// the tokens.
func (h *Harness) Login(
	t testing.TB,
	user User,
	next string,
) *url.URL {
	t.Helper()
	form := url.Values{}
	form.Set("handle", user.Handle)
	form.Set("password", user.Password)
	form.Set("database", user.Database)
	form.Set("appName", h.AppName)
	form.Set("next", next)

	resp, err := h.Client().Post(
		h.BaseURL+"/login",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		t.Fatalf("post login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", resp.StatusCode)
	}

	location, err := resp.Location()
	if err != nil {
		t.Fatalf("login redirect: %v", err)
	}
	return location
}
