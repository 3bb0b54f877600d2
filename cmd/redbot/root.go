package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jamesprial/redbot"
)

// app holds the global flags shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	timeout    time.Duration
	apiURL     string
	authURL    string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "redbot",
		Short: "Query the Reddit API as a script application",
		Long: `redbot logs in with the OAuth2 password grant and queries the Reddit API.

Credentials are read from --config (JSON, or TOML when the file ends in .toml)
or from REDDIT_USERNAME, REDDIT_PASSWORD, REDDIT_USER_AGENT, REDDIT_CLIENT_ID
and REDDIT_CLIENT_SECRET.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "credentials file (JSON or TOML)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and responses to stderr")
	flags.DurationVar(&a.timeout, "timeout", redbot.DefaultTimeout, "HTTP request timeout")
	flags.StringVar(&a.apiURL, "api-url", redbot.DefaultBaseURL, "API base URL")
	flags.StringVar(&a.authURL, "auth-url", redbot.DefaultAuthURL, "OAuth base URL")
	_ = flags.MarkHidden("api-url")
	_ = flags.MarkHidden("auth-url")

	cmd.AddCommand(
		newMeCmd(a),
		newTopCmd(a),
		newSearchCmd(a),
		newListingCmd(a),
	)
	return cmd
}

// loadConfig reads credentials from the config file, or the environment when
// no file was given.
func (a *app) loadConfig() (*redbot.Config, error) {
	if a.configPath != "" {
		cfg, err := redbot.LoadConfig(a.configPath)
		return cfg, errors.Wrapf(err, "load config %s", a.configPath)
	}
	cfg, err := redbot.LoadConfigFromEnv()
	return cfg, errors.Wrap(err, "load config from environment")
}

// client builds an API client wired to stderr logging and an instrumented
// transport.
func (a *app) client(cmd *cobra.Command) (*redbot.Client, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cfg.BaseURL = a.apiURL
	cfg.AuthURL = a.authURL
	cfg.Timeout = a.timeout
	cfg.HTTPClient = &http.Client{
		Timeout:   a.timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	client, err := redbot.NewClient(cfg)
	return client, errors.Wrap(err, "create client")
}

// loggedIn builds a client and logs it in.
func (a *app) loggedIn(cmd *cobra.Command) (*redbot.Client, error) {
	client, err := a.client(cmd)
	if err != nil {
		return nil, err
	}
	if err := client.Login(cmd.Context()); err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return client, nil
}
