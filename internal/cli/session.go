package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
)

func newLogoutCommand() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove cached tokens and sign out at the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			var nav navigate.Navigator
			if !local {
				nav = navigate.NewBrowser(nil)
			}
			s, err := rt.openSession(cmd.Context(), nav)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()

			if err := s.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Only remove cached tokens, do not open the provider's logout page")
	return cmd
}

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the current access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()

			token, err := s.Token()
			if err != nil {
				return notSignedIn(err)
			}
			_, _ = fmt.Fprintln(rt.Writer(), token)
			return nil
		},
	}
}

// infoView is what `authctl info` prints.
type infoView struct {
	State              string `json:"state" yaml:"state"`
	Username           string `json:"username,omitempty" yaml:"username,omitempty"`
	UserID             string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Database           string `json:"database,omitempty" yaml:"database,omitempty"`
	Application        string `json:"application,omitempty" yaml:"application,omitempty"`
	ExpiresAt          string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	SecondsUntilExpiry int64  `json:"seconds_until_expiry" yaml:"seconds_until_expiry"`
	MinutesUntilExpiry int64  `json:"minutes_until_expiry" yaml:"minutes_until_expiry"`
}

func newInfoView(state client.State, info client.TokenInfo) infoView {
	view := infoView{State: state.String()}
	if state == client.Unauthenticated {
		return view
	}
	view.Username = info.User.Username
	view.UserID = info.User.ID
	view.Database = info.User.Database
	view.Application = info.User.Application
	view.ExpiresAt = info.ExpiresAt.UTC().Format(time.RFC3339)
	view.SecondsUntilExpiry = info.SecondsUntilExpiry
	view.MinutesUntilExpiry = info.MinutesUntilExpiry
	return view
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show who is signed in and when the token expires",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()

			// an invalid session still prints its state
			info, _ := s.TokenInfo()
			return rt.print(newInfoView(s.State(), info))
		},
	}
}

func newHeadersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "headers",
		Short: "Print the HTTP headers for an authenticated API request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			s, err := rt.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()

			headers, err := s.AuthHeaders()
			if err != nil {
				return notSignedIn(err)
			}
			names := make([]string, 0, len(headers))
			for name := range headers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				_, _ = fmt.Fprintf(rt.Writer(), "%s: %s\n", name, strings.Join(headers[name], ", "))
			}
			return nil
		},
	}
}

func notSignedIn(err error) error {
	return fmt.Errorf("not signed in, run `authctl login`: %w", err)
}

func (rt *runtimeState) print(v any) error {
	switch rt.output {
	case "json":
		enc := json.NewEncoder(rt.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "", "yaml":
		content, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = rt.Writer().Write(content)
		return err
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", rt.output)
	}
}
