package redbot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jamesprial/redbot/internal"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

const (
	// DefaultBaseURL is the default authenticated API base URL
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default OAuth base URL
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent is used when Config.UserAgent is empty
	DefaultUserAgent = "redbot/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	usernamePlaceholder = "{username}"
	identityPath        = "api/v1/me"
)

// Config holds the credentials and transport settings of a Client.
//
// The credential fields are what LoadConfig reads from disk:
//
//	{
//	  "username": "my-bot-account",
//	  "password": "hunter2",
//	  "user_agent": "linux:redbot:v0.1 (by /u/my-main-account)",
//	  "client_id": "foo",
//	  "client_secret": "bar"
//	}
type Config struct {
	// Username and Password of the account, used by the password grant.
	Username string `json:"username" toml:"username"`
	Password string `json:"password" toml:"password"`

	// UserAgent identifies the application. Defaults to DefaultUserAgent.
	UserAgent string `json:"user_agent" toml:"user_agent"`

	// ClientID and ClientSecret of a "script" type application.
	ClientID     string `json:"client_id" toml:"client_id"`
	ClientSecret string `json:"client_secret" toml:"client_secret"`

	// BaseURL for authenticated API calls. Defaults to DefaultBaseURL.
	BaseURL string `json:"-" toml:"-"`

	// AuthURL hosting the token endpoint. Defaults to DefaultAuthURL.
	AuthURL string `json:"-" toml:"-"`

	// HTTPClient to use for requests. Defaults to a client with Timeout.
	HTTPClient *http.Client `json:"-" toml:"-"`

	// Timeout for the default HTTP client. Ignored when HTTPClient is set.
	Timeout time.Duration `json:"-" toml:"-"`

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger `json:"-" toml:"-"`

	// MetricsRegisterer receives the client's Prometheus collectors. Optional.
	MetricsRegisterer prometheus.Registerer `json:"-" toml:"-"`
}

// session is the LoggedIn state: a token and the identity fetched with it.
type session struct {
	token  types.AccessTokenResponse
	whoami json.RawMessage
}

// Client is the API client. It starts logged out; Login moves it to the
// logged-in state. Query and QueryListing may be used concurrently, and a
// concurrent Login is serialized and published atomically.
type Client struct {
	config    Config
	http      *internal.Client
	auth      *internal.Authenticator
	parser    *internal.Parser
	validator *internal.Validator
	metrics   *internal.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	loginMu sync.Mutex
	session atomic.Pointer[session]
}

// NewClient creates a logged-out client. The configuration is copied;
// later changes to config have no effect on the client.
//
// NewClient performs no network I/O. Call Login before using endpoints that
// need an authenticated account.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, pkgerrs.Application("config cannot be nil")
	}
	cfg := *config

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, pkgerrs.Applicationf("invalid user agent: %v", err)
	}

	metrics := internal.NewMetrics(cfg.MetricsRegisterer)

	httpClient, err := internal.NewClient(cfg.HTTPClient, cfg.BaseURL, cfg.UserAgent, cfg.Logger, metrics)
	if err != nil {
		return nil, err
	}

	auth, err := internal.NewAuthenticator(
		cfg.HTTPClient,
		cfg.Username,
		cfg.Password,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.UserAgent,
		cfg.AuthURL,
		"",
		cfg.Logger,
	)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Debug("new API client created", "base_url", cfg.BaseURL, "auth_url", cfg.AuthURL)

	return &Client{
		config:    cfg,
		http:      httpClient,
		auth:      auth,
		parser:    internal.NewParser(),
		validator: validator,
		metrics:   metrics,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(internal.TracerName),
	}, nil
}

// Login obtains an access token with the password grant and then fetches the
// account identity from api/v1/me using that token.
//
// The token and identity are published together only when both steps
// succeed; on failure the client keeps whatever session it had before.
// Concurrent calls are serialized.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	ctx, span := c.tracer.Start(ctx, "redbot.Login")
	defer span.End()

	c.logger.Debug("performing login", "username", c.config.Username)

	token, err := c.auth.GetToken(ctx)
	if err != nil {
		c.loginFailed(span, "token", err)
		return err
	}

	whoami, err := c.fetchIdentity(ctx, token.Token)
	if err != nil {
		c.loginFailed(span, "identity", err)
		return err
	}

	c.session.Store(&session{token: *token, whoami: whoami})
	c.metrics.ObserveLogin(true)
	c.logger.Debug("login complete", "whoami", string(whoami))
	return nil
}

func (c *Client) loginFailed(span trace.Span, step string, err error) {
	c.metrics.ObserveLogin(false)
	span.RecordError(err)
	span.SetStatus(codes.Error, step+" step failed")
	c.logger.Debug("login failed", "step", step, "error", err)
}

// fetchIdentity issues the "who am I" request with an explicit token, so the
// new token is never visible to other callers before the login completes.
func (c *Client) fetchIdentity(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := c.send(ctx, http.MethodGet, identityPath, nil, nil, token)
	if err != nil {
		return nil, err
	}
	body, err := internal.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseIdentity(body)
}

// IsLoggedIn reports whether a Login has completed successfully.
func (c *Client) IsLoggedIn() bool {
	return c.session.Load() != nil
}

// Whoami returns a copy of the identity snapshot cached by Login, or nil
// when logged out.
func (c *Client) Whoami() json.RawMessage {
	sess := c.session.Load()
	if sess == nil {
		return nil
	}
	return append(json.RawMessage(nil), sess.whoami...)
}

// AccessToken returns the token response cached by Login.
func (c *Client) AccessToken() (types.AccessTokenResponse, bool) {
	sess := c.session.Load()
	if sess == nil {
		return types.AccessTokenResponse{}, false
	}
	return sess.token, true
}

// Username returns the `name` field of the cached identity.
func (c *Client) Username() (string, error) {
	sess := c.session.Load()
	if sess == nil {
		return "", pkgerrs.Application("not logged in: no identity available for {username}")
	}
	return c.parser.IdentityName(sess.whoami)
}

// Query sends a single request and returns the raw response. The caller
// owns the response body and is responsible for interpreting the status.
//
// method is any valid HTTP method token ("GET", "POST", ...). A path that
// contains {username} has it replaced by the logged-in account name. params
// are appended in order; a non-nil form is sent URL-encoded as the body.
func (c *Client) Query(ctx context.Context, method, path string, params types.Params, form url.Values) (*http.Response, error) {
	if err := c.validator.ValidateMethod(method); err != nil {
		return nil, err
	}

	path, err := c.reformatPath(path)
	if err != nil {
		return nil, err
	}

	return c.send(ctx, method, path, params, form, c.bearerToken())
}

func (c *Client) send(ctx context.Context, method, path string, params types.Params, form url.Values, token string) (*http.Response, error) {
	req, err := c.http.NewRequest(ctx, method, path, params, form, token)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// bearerToken returns the cached token, or "" when logged out.
func (c *Client) bearerToken() string {
	if sess := c.session.Load(); sess != nil {
		return sess.token.Token
	}
	return ""
}

// reformatPath expands the {username} placeholder.
func (c *Client) reformatPath(path string) (string, error) {
	if !strings.Contains(path, usernamePlaceholder) {
		return path, nil
	}
	name, err := c.Username()
	if err != nil {
		return "", err
	}
	c.logger.Debug("replacing username placeholder", "path", path)
	return strings.ReplaceAll(path, usernamePlaceholder, name), nil
}
