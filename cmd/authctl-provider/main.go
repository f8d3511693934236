package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"git.sr.ht/~jakintosh/authclient/internal/logging"
	"git.sr.ht/~jakintosh/authclient/pkg/provider"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

type Flags struct {
	ConfigPath  string
	ListenAddr  string
	DataDir     string
	AppName     string
	AppDisplay  string
	AppAudience string
	Users       UserFlag
	Testing     bool
}

type UserCredentials struct {
	Handle   string
	Password string
	Database string
}

// UserFlag is a repeatable --user flag, handle:password[:database].
type UserFlag []UserCredentials

func (u *UserFlag) String() string {
	return fmt.Sprintf("%v", *u)
}

func (u *UserFlag) Set(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return fmt.Errorf("user must be in format 'handle:password[:database]'")
	}
	cred := UserCredentials{Handle: parts[0], Password: parts[1]}
	if len(parts) == 3 {
		cred.Database = parts[2]
	}
	*u = append(*u, cred)
	return nil
}

// OutputContract is the JSON line written to stdout once the server is
// listening, so scripts can find it.
type OutputContract struct {
	BaseURL      string   `json:"base_url"`
	IssuerDomain string   `json:"issuer_domain"`
	DataDir      string   `json:"data_dir"`
	Application  string   `json:"application"`
	Users        []string `json:"users"`
}

func main() {
	flags := parseFlags()

	cfg, err := provider.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flags.ListenAddr != "" {
		cfg.ListenAddr = flags.ListenAddr
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	log, err := logging.New(cfg.Debug, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, flags, log); err != nil {
		log.Fatalw("provider stopped", "error", err)
	}
}

func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "YAML config file (env PROVIDER_* always applies)")
	flag.StringVar(&f.ListenAddr, "listen", "", "Listen address, overrides config")
	flag.StringVar(&f.DataDir, "data-dir", "", "Data directory, overrides config")
	flag.StringVar(&f.AppName, "app-name", "default", "Application seeded into the catalog")
	flag.StringVar(&f.AppDisplay, "app-display", "Default App", "Display name of the seeded application")
	flag.StringVar(&f.AppAudience, "app-audience", "default-audience", "Audience of the seeded application")
	flag.Var(&f.Users, "user", "User in format 'handle:password[:database]' (repeatable)")
	flag.BoolVar(&f.Testing, "testing", false, "Use the minimum bcrypt cost")
	flag.Parse()
	return f
}

func run(
	cfg *provider.Config,
	flags Flags,
	log *zap.SugaredLogger,
) error {
	for _, dir := range []string{cfg.DataDir, cfg.CatalogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("couldn't create %s: %w", dir, err)
		}
	}
	if err := seedApplication(cfg.CatalogDir(), flags); err != nil {
		return err
	}

	signingKey, err := provider.LoadOrCreateSigningKey(cfg.SigningKeyPath())
	if err != nil {
		return err
	}
	catalog, err := provider.LoadCatalog(cfg.CatalogDir(), log)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	db, err := provider.OpenDatabase(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	mode := provider.PasswordModeProduction
	if flags.Testing {
		mode = provider.PasswordModeTesting
	}
	p, err := provider.New(provider.Options{
		Issuer:          tokens.NewIssuer(signingKey, cfg.IssuerDomain),
		Database:        db,
		Catalog:         catalog,
		AccessLifetime:  cfg.AccessLifetime,
		RefreshLifetime: cfg.RefreshLifetime,
		PasswordMode:    mode,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	users := flags.Users
	if len(users) == 0 {
		users = UserFlag{{Handle: "test", Password: "test"}}
	}
	handles := make([]string, 0, len(users))
	for _, user := range users {
		err := p.Register(user.Handle, user.Password, user.Database)
		if err != nil && !errors.Is(err, provider.ErrHandleExists) {
			return fmt.Errorf("seed user %s: %w", user.Handle, err)
		}
		handles = append(handles, user.Handle)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	if err := json.NewEncoder(os.Stdout).Encode(OutputContract{
		BaseURL:      baseURL,
		IssuerDomain: cfg.IssuerDomain,
		DataDir:      cfg.DataDir,
		Application:  flags.AppName,
		Users:        handles,
	}); err != nil {
		return fmt.Errorf("failed to encode JSON contract: %w", err)
	}

	server := &http.Server{Handler: p.Router(), ReadHeaderTimeout: 10 * time.Second}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(listener)
	}()
	log.Infow("identity provider listening", "url", baseURL, "issuer", cfg.IssuerDomain)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedApplication writes the application named on the command line into
// the catalog unless a definition already exists.
func seedApplication(catalogDir string, flags Flags) error {
	path := filepath.Join(catalogDir, flags.AppName+".json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(provider.Application{
		Display:  flags.AppDisplay,
		Audience: flags.AppAudience,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal application JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write application file: %w", err)
	}
	return nil
}
