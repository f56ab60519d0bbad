package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/qidlink/credentials"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Wikimedia API token",
		Long: `Manage the optional Wikimedia API token used for searches.

Anonymous access works but is rate limited more aggressively. A stored
token is sent as a bearer token on every lookup. Tokens are kept in
~/.qidlink/credentials.yaml, encrypted at rest.

The QIDLINK_API_TOKEN environment variable takes precedence over the
stored token.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

func newAuthLoginCommand(deps *Deps) *cobra.Command {
	var (
		token          string
		username       string
		expires        string
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long: `Store a Wikimedia API token for authenticated lookups.

Examples:
  # Interactive (token input is hidden)
  qidlink auth login

  # From a flag, expiring in 30 days
  qidlink auth login --token abc123... --username Example --expires 720h

  # From the environment
  QIDLINK_API_TOKEN=abc123... qidlink auth login --non-interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := deps.Credentials()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			if token == "" {
				if env := os.Getenv(credentials.TokenEnvVar); env != "" {
					token = env
					fmt.Fprintf(w, "Using token from %s environment variable\n", credentials.TokenEnvVar)
				}
			}
			if token == "" {
				if nonInteractive {
					return fmt.Errorf("no token provided and --non-interactive flag set")
				}
				token, err = promptForToken(w, cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
			}
			if err := validateToken(token); err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}

			expiresAt, err := parseExpiry(expires, time.Now())
			if err != nil {
				return err
			}

			creds := &credentials.Credentials{
				Token:     token,
				Username:  username,
				ExpiresAt: expiresAt,
			}
			if err := store.Save(creds); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}

			fmt.Fprintln(w, "Login successful!")
			fmt.Fprintf(w, "  Token: %s\n", credentials.MaskToken(token))
			if username != "" {
				fmt.Fprintf(w, "  Username: %s\n", username)
			}
			if !expiresAt.IsZero() {
				fmt.Fprintf(w, "  Expires: %s\n", credentials.FormatExpiry(expiresAt))
			}
			fmt.Fprintf(w, "  Key source: %s\n", store.KeySource())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().StringVar(&username, "username", "", "Account the token belongs to")
	cmd.Flags().StringVar(&expires, "expires", "", "Token expiry as a duration (720h) or RFC3339 time")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting for input")
	return cmd
}

// promptForToken reads a token, hiding input when stdin is a terminal.
func promptForToken(w io.Writer, in io.Reader) (string, error) {
	fmt.Fprint(w, "API token: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("token contains whitespace")
	}
	if len(token) < 8 {
		return fmt.Errorf("token is too short")
	}
	return nil
}

// parseExpiry accepts "", a Go duration relative to now, or an RFC3339 time.
func parseExpiry(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--expires must be positive, got %s", v)
		}
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--expires %q is neither a duration nor an RFC3339 time", v)
	}
	return t, nil
}

func newAuthLogoutCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := deps.Credentials()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if !store.Exists() {
				fmt.Fprintln(w, "No stored credentials found.")
				return nil
			}
			if err := store.Delete(); err != nil {
				return fmt.Errorf("removing credentials: %w", err)
			}
			fmt.Fprintln(w, "Logged out. Stored token removed.")
			if os.Getenv(credentials.TokenEnvVar) != "" {
				fmt.Fprintf(w, "\nNote: %s is still set and will be used.\n", credentials.TokenEnvVar)
			}
			return nil
		},
	}
}

// authStatus is the status report.
type authStatus struct {
	Source    string     `json:"source" yaml:"source"`
	Token     string     `json:"token,omitempty" yaml:"token,omitempty"`
	Username  string     `json:"username,omitempty" yaml:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool       `json:"expired" yaml:"expired"`
	KeySource string     `json:"key_source,omitempty" yaml:"key_source,omitempty"`
}

func newAuthStatusCommand(deps *Deps) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which token lookups will use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			status, err := currentAuthStatus(deps)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ok, err := WriteStructured(w, formatFor(cfg, format), status); ok {
				return err
			}

			fmt.Fprintln(w, "Authentication Status")
			fmt.Fprintln(w, "=====================")
			fmt.Fprintf(w, "  Source: %s\n", status.Source)
			if status.Token != "" {
				fmt.Fprintf(w, "  Token: %s\n", status.Token)
			}
			if status.Username != "" {
				fmt.Fprintf(w, "  Username: %s\n", status.Username)
			}
			if status.ExpiresAt != nil {
				fmt.Fprintf(w, "  Expires: %s (%s)\n", status.ExpiresAt.Format(time.RFC3339), credentials.FormatExpiry(*status.ExpiresAt))
			}
			if status.KeySource != "" {
				fmt.Fprintf(w, "  Key source: %s\n", status.KeySource)
			}
			switch {
			case status.Expired:
				fmt.Fprintln(w, "\n\033[33mWarning:\033[0m stored token has expired; lookups run anonymously. Run 'qidlink auth login'.")
			case status.Source == "none":
				fmt.Fprintln(w, "\nLookups run anonymously. Run 'qidlink auth login' to store a token.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "output", "", "Output format: text, json, yaml")
	return cmd
}

func currentAuthStatus(deps *Deps) (authStatus, error) {
	if env := os.Getenv(credentials.TokenEnvVar); env != "" {
		return authStatus{Source: "environment", Token: credentials.MaskToken(env)}, nil
	}

	store, err := deps.Credentials()
	if err != nil {
		return authStatus{}, fmt.Errorf("initializing credential store: %w", err)
	}
	creds, err := store.Load()
	if errors.Is(err, credentials.ErrNoCredentials) {
		return authStatus{Source: "none"}, nil
	}
	if err != nil {
		return authStatus{}, fmt.Errorf("loading credentials: %w", err)
	}

	status := authStatus{
		Source:    "stored",
		Token:     credentials.MaskToken(creds.Token),
		Username:  creds.Username,
		KeySource: store.KeySource(),
	}
	if !creds.ExpiresAt.IsZero() {
		exp := creds.ExpiresAt
		status.ExpiresAt = &exp
		status.Expired = time.Now().After(exp)
	}
	return status, nil
}
