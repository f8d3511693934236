// Package cli implements authctl, a command line front end for the token
// client.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"git.sr.ht/~jakintosh/authclient/internal/logging"
	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
)

type Options struct {
	ConfigPath   string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath string
	cfg        *Config
	writer     io.Writer
	log        *zap.SugaredLogger
	verbose    bool
	output     string

	authURL    string
	apiURL     string
	storageKey string
	database   string
	app        string
	storeKind  string
	storePath  string
	redisAddr  string
}

type runtimeKey struct{}

func DefaultOptions() Options {
	return Options{
		ConfigPath:   DefaultConfigPath(),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtimeState{configPath: opts.ConfigPath, writer: opts.OutputWriter}

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Sign in to an identity provider and manage the cached session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = DefaultConfigPath()
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("AUTHCTL_VERBOSE"), "true")
			}

			level := zapcore.WarnLevel
			if rt.verbose {
				level = zapcore.DebugLevel
			}
			log, err := logging.New(rt.verbose, level)
			if err != nil {
				return err
			}
			rt.log = log

			return rt.loadConfig(cmd.Flags().Changed("config"))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	flags.StringVar(&rt.authURL, "auth-url", "", "Identity provider base URL")
	flags.StringVar(&rt.apiURL, "api-url", "", "API base URL")
	flags.StringVar(&rt.storageKey, "storage-key", "", "Key the access token is stored under")
	flags.StringVar(&rt.database, "database", "", "Database to sign in to")
	flags.StringVar(&rt.app, "app", "", "Application name sent to the provider")
	flags.StringVar(&rt.storeKind, "store", "", "Token store: file, keyring, sqlite, redis or memory")
	flags.StringVar(&rt.storePath, "store-path", "", "Path for the file and sqlite stores")
	flags.StringVar(&rt.redisAddr, "redis-addr", "", "Address of the redis store")
	flags.StringVarP(&rt.output, "output", "o", "yaml", "Output format for info: yaml or json")
	flags.BoolVarP(&rt.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newTokenCommand(),
		newInfoCommand(),
		newHeadersCommand(),
		newWatchCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// loadConfig reads the config file and applies environment and flag
// overrides, in that order. A missing file is only an error when it was
// named explicitly.
func (rt *runtimeState) loadConfig(explicit bool) error {
	cfg, err := Load(rt.configPath)
	switch {
	case err == nil:
		rt.cfg = cfg
	case errors.Is(err, os.ErrNotExist) && !explicit:
		def := DefaultConfig()
		rt.cfg = &def
	default:
		return err
	}

	override(&rt.cfg.Client.AuthURL, os.Getenv("AUTHCTL_AUTH_URL"), rt.authURL)
	override(&rt.cfg.Client.APIURL, os.Getenv("AUTHCTL_API_URL"), rt.apiURL)
	override(&rt.cfg.Client.StorageKey, rt.storageKey)
	override(&rt.cfg.Client.Database, os.Getenv("AUTHCTL_DATABASE"), rt.database)
	override(&rt.cfg.Client.Application, os.Getenv("AUTHCTL_APP"), rt.app)
	override(&rt.cfg.Store.Kind, os.Getenv("AUTHCTL_STORE"), rt.storeKind)
	override(&rt.cfg.Store.Path, rt.storePath)
	override(&rt.cfg.Store.RedisAddr, os.Getenv("AUTHCTL_REDIS_ADDR"), rt.redisAddr)
	return nil
}

// override sets dst to the last non-empty value.
func override(dst *string, values ...string) {
	for _, v := range values {
		if v != "" {
			*dst = v
		}
	}
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

// session is a client plus the store it was opened with.
type session struct {
	*client.Client
	closer io.Closer
}

func (s *session) Close() error {
	err := s.Client.Close()
	if cerr := s.closer.Close(); err == nil {
		err = cerr
	}
	return err
}

// openSession builds a client that never redirects on its own. Commands
// that need the browser pass their own navigator.
func (rt *runtimeState) openSession(
	ctx context.Context,
	nav navigate.Navigator,
	extra ...client.Option,
) (*session, error) {
	tokenStore, closer, err := openStore(ctx, rt.cfg.Store)
	if err != nil {
		return nil, err
	}
	if nav == nil {
		nav, err = navigate.NewRecorder("")
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
	}

	cfg := rt.cfg.Client
	cfg.DisableAutoLogin = true
	opts := append([]client.Option{
		client.WithStore(tokenStore),
		client.WithNavigator(nav),
		client.WithLogger(rt.log),
	}, extra...)

	c, err := client.New(ctx, cfg, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &session{Client: c, closer: closer}, nil
}
