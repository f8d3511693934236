package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
)

const callbackPath = "/callback"

func newLoginCommand() *cobra.Command {
	var (
		timeout   time.Duration
		noBrowser bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login through the identity provider in a browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return rt.login(ctx, noBrowser)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the provider to redirect back")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	return cmd
}

// login listens on a loopback port, sends the browser to the provider
// with that port as the return address, and waits for the redirect.
func (rt *runtimeState) login(ctx context.Context, noBrowser bool) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	callback := &url.URL{Scheme: "http", Host: listener.Addr().String(), Path: callbackPath}
	browser := navigate.NewBrowser(callback)
	printURL := func(u string) error {
		_, _ = fmt.Fprintf(rt.Writer(), "Open the following URL in your browser:\n%s\n", u)
		return nil
	}
	if noBrowser {
		browser.WithOpener(printURL)
	}

	s, err := rt.openSession(ctx, browser)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle(callbackPath, s.HandleCallback(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		_ = server.Close()
	}()

	if err := s.Login(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("timed out waiting for the provider to redirect back")
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	info, err := s.TokenInfo()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(rt.Writer(), "Signed in as %s. Token expires at %s\n",
		info.User.Username, info.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}
