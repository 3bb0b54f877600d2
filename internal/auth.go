package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

const defaultTokenEndpointPath = "api/v1/access_token"

// Authenticator exchanges account and app credentials for an access token
// using the OAuth2 password grant.
type Authenticator struct {
	client    *http.Client
	oauth     *oauth2.Config
	username  string
	password  string
	userAgent string
	BaseURL   *url.URL
	tokenURL  *url.URL
	logger    *slog.Logger
}

// NewAuthenticator creates a new authenticator.
// The tokenPath parameter can be an empty string to use the default token endpoint.
func NewAuthenticator(httpClient *http.Client, username, password, clientID, clientSecret, userAgent, baseURL, tokenPath string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, pkgerrs.Applicationf("failed to parse auth base URL: %v", err)
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if tokenPath == "" {
		tokenPath = defaultTokenEndpointPath
	}

	resolvedTokenURL, err := parsedURL.Parse(tokenPath)
	if err != nil {
		return nil, pkgerrs.Applicationf("failed to parse token endpoint path: %v", err)
	}

	return &Authenticator{
		client: withUserAgent(httpClient, userAgent),
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  resolvedTokenURL.String(),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		username:  username,
		password:  password,
		userAgent: userAgent,
		BaseURL:   parsedURL,
		tokenURL:  resolvedTokenURL,
		logger:    logger,
	}, nil
}

// GetToken performs the password grant flow and returns the decoded token response.
// Nothing is cached here; the caller owns the token's lifetime.
func (a *Authenticator) GetToken(ctx context.Context) (*types.AccessTokenResponse, error) {
	if a.oauth.ClientID == "" || a.oauth.ClientSecret == "" {
		return nil, pkgerrs.Application("client_id and client_secret are required to log in")
	}

	a.logger.Debug("requesting access token", "token_url", a.tokenURL.String(), "username", a.username)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.oauth.PasswordCredentialsToken(ctx, a.username, a.password)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	scope, _ := tok.Extra("scope").(string)
	resp := &types.AccessTokenResponse{
		Token:     tok.AccessToken,
		TokenType: tok.TokenType,
		Scope:     scope,
	}
	if tok.ExpiresIn > 0 {
		resp.ExpiresIn = uint64(tok.ExpiresIn)
	}

	a.logger.Debug("access token received", "token_type", resp.TokenType, "expires_in", resp.ExpiresIn, "scope", resp.Scope)
	return resp, nil
}

// classifyTokenError maps the failure modes of the oauth2 token exchange onto
// the client's error sources.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		msg := fmt.Sprintf("token request failed, code %d", status)
		if retrieveErr.ErrorCode != "" {
			msg += ": " + retrieveErr.ErrorCode
		}
		return pkgerrs.Application(msg)
	}

	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return pkgerrs.Transport(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pkgerrs.Transport(err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return pkgerrs.Transport(err)
	}

	// Last resort: oauth2 formats token body read failures with %v, so the
	// cause is only visible in the message.
	if strings.HasPrefix(err.Error(), "oauth2: cannot fetch token") {
		return pkgerrs.Transport(err)
	}

	return pkgerrs.Decode(err)
}

// userAgentTransport stamps every outgoing request with a fixed User-Agent.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// withUserAgent returns a shallow copy of httpClient whose transport sets the
// User-Agent header. The token exchange builds its own requests, so the
// header has to be injected below it.
func withUserAgent(httpClient *http.Client, userAgent string) *http.Client {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *httpClient
	clone.Transport = &userAgentTransport{base: base, userAgent: userAgent}
	return &clone
}
