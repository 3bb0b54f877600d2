package redbot

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesprial/redbot/internal/redtest"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

const testUserAgent = "linux:redbot-test:v0.1 (by /u/tester)"

func testConfig(srv *redtest.Server) *Config {
	return &Config{
		Username:     "alice",
		Password:     "hunter2",
		UserAgent:    testUserAgent,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      srv.URL,
		AuthURL:      srv.URL,
		HTTPClient:   srv.Client(),
	}
}

func newTestClient(t *testing.T, srv *redtest.Server) *Client {
	t.Helper()
	client, err := NewClient(testConfig(srv))
	require.NoError(t, err)
	return client
}

func newLoggedInClient(t *testing.T, srv *redtest.Server) *Client {
	t.Helper()
	srv.SetupLogin("token-123", "alice")
	client := newTestClient(t, srv)
	require.NoError(t, client.Login(context.Background()))
	return client
}

func tokenResponse(token string) *redtest.Response {
	return &redtest.Response{
		Status:  http.StatusOK,
		Body:    `{"access_token":"` + token + `","token_type":"bearer","expires_in":3600,"scope":"*"}`,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func jsonResponse(status int, body string) *redtest.Response {
	return &redtest.Response{
		Status:  status,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil)
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
	})

	t.Run("defaults applied", func(t *testing.T) {
		client, err := NewClient(&Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultAuthURL, client.config.AuthURL)
		assert.Equal(t, DefaultTimeout, client.config.HTTPClient.Timeout)
		assert.False(t, client.IsLoggedIn())
		assert.Nil(t, client.Whoami())
	})

	t.Run("config is copied", func(t *testing.T) {
		cfg := &Config{Username: "alice", UserAgent: testUserAgent}
		client, err := NewClient(cfg)
		require.NoError(t, err)
		cfg.Username = "mallory"
		assert.Equal(t, "alice", client.config.Username)
	})

	t.Run("user agent with newline rejected", func(t *testing.T) {
		_, err := NewClient(&Config{UserAgent: "bad\r\nX-Injected: 1"})
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
	})
}

func TestLogin(t *testing.T) {
	t.Run("success stores token and identity", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.SetupLogin("token-123", "alice")
		client := newTestClient(t, srv)

		require.NoError(t, client.Login(context.Background()))

		assert.True(t, client.IsLoggedIn())
		name, err := client.Username()
		require.NoError(t, err)
		assert.Equal(t, "alice", name)
		assert.JSONEq(t, `{"name":"alice","id":"abc","link_karma":1}`, string(client.Whoami()))

		token, ok := client.AccessToken()
		require.True(t, ok)
		assert.Equal(t, "token-123", token.Token)
		assert.Equal(t, "bearer", token.TokenType)
		assert.Equal(t, uint64(3600), token.ExpiresIn)
		assert.Equal(t, "*", token.Scope)
	})

	t.Run("token request shape", func(t *testing.T) {
		srv := redtest.NewServer(t)
		newLoggedInClient(t, srv)

		reqs := srv.RequestsTo("/api/v1/access_token")
		require.Len(t, reqs, 1)
		req := reqs[0]
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, testUserAgent, req.Header.Get("User-Agent"))

		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
		assert.Equal(t, wantAuth, req.Header.Get("Authorization"))

		form, err := url.ParseQuery(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "password", form.Get("grant_type"))
		assert.Equal(t, "alice", form.Get("username"))
		assert.Equal(t, "hunter2", form.Get("password"))
	})

	t.Run("identity fetched with new token", func(t *testing.T) {
		srv := redtest.NewServer(t)
		newLoggedInClient(t, srv)

		reqs := srv.RequestsTo("/api/v1/me")
		require.Len(t, reqs, 1)
		assert.Equal(t, "bearer token-123", reqs[0].Header.Get("Authorization"))
		assert.Equal(t, testUserAgent, reqs[0].Header.Get("User-Agent"))
	})

	t.Run("token rejected", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodPost, "/api/v1/access_token", http.StatusUnauthorized, `{"error":"invalid_grant"}`)
		client := newTestClient(t, srv)

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
		assert.Contains(t, err.Error(), "401")
		assert.False(t, client.IsLoggedIn())
		assert.Empty(t, srv.RequestsTo("/api/v1/me"))
	})

	t.Run("malformed token body", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodPost, "/api/v1/access_token", http.StatusOK, `{not json`)
		client := newTestClient(t, srv)

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.HasSource(err, pkgerrs.SourceDecode))
		assert.False(t, client.IsLoggedIn())
	})

	t.Run("missing client credentials", func(t *testing.T) {
		srv := redtest.NewServer(t)
		cfg := testConfig(srv)
		cfg.ClientSecret = ""
		client, err := NewClient(cfg)
		require.NoError(t, err)

		err = client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
		assert.Empty(t, srv.Requests())
	})

	t.Run("identity failure leaves client logged out", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.Handle(http.MethodPost, "/api/v1/access_token", tokenResponse("token-123"))
		srv.JSON(http.MethodGet, "/api/v1/me", http.StatusInternalServerError, `{}`)
		client := newTestClient(t, srv)

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
		assert.Contains(t, err.Error(), "500")
		assert.False(t, client.IsLoggedIn())
		_, ok := client.AccessToken()
		assert.False(t, ok)
	})

	t.Run("identity that is not an object", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.Handle(http.MethodPost, "/api/v1/access_token", tokenResponse("token-123"))
		srv.JSON(http.MethodGet, "/api/v1/me", http.StatusOK, `["alice"]`)
		client := newTestClient(t, srv)

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
		assert.False(t, client.IsLoggedIn())
	})

	t.Run("failed re-login keeps previous session", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.Handle(http.MethodPost, "/api/v1/access_token", tokenResponse("token-a"), tokenResponse("token-b"))
		srv.Handle(http.MethodGet, "/api/v1/me",
			jsonResponse(http.StatusOK, `{"name":"alice"}`),
			jsonResponse(http.StatusServiceUnavailable, `{}`),
		)
		srv.JSON(http.MethodGet, "/api/thing", http.StatusOK, `{}`)
		client := newTestClient(t, srv)

		require.NoError(t, client.Login(context.Background()))
		require.Error(t, client.Login(context.Background()))

		token, ok := client.AccessToken()
		require.True(t, ok)
		assert.Equal(t, "token-a", token.Token)

		resp, err := client.Query(context.Background(), http.MethodGet, "api/thing", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()

		reqs := srv.RequestsTo("/api/thing")
		require.Len(t, reqs, 1)
		assert.Equal(t, "bearer token-a", reqs[0].Header.Get("Authorization"))
	})

	t.Run("successful re-login replaces session", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.Handle(http.MethodPost, "/api/v1/access_token", tokenResponse("token-a"), tokenResponse("token-b"))
		srv.Handle(http.MethodGet, "/api/v1/me",
			jsonResponse(http.StatusOK, `{"name":"alice"}`),
			jsonResponse(http.StatusOK, `{"name":"alice2"}`),
		)
		client := newTestClient(t, srv)

		require.NoError(t, client.Login(context.Background()))
		require.NoError(t, client.Login(context.Background()))

		token, _ := client.AccessToken()
		assert.Equal(t, "token-b", token.Token)
		name, err := client.Username()
		require.NoError(t, err)
		assert.Equal(t, "alice2", name)
	})

	t.Run("unreachable server", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)
		srv.Close()

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, pkgerrs.HasSource(err, pkgerrs.SourceTransport))
	})
}

func TestUsername(t *testing.T) {
	t.Run("logged out", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)
		_, err := client.Username()
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
	})

	t.Run("identity without name", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.Handle(http.MethodPost, "/api/v1/access_token", tokenResponse("token-123"))
		srv.JSON(http.MethodGet, "/api/v1/me", http.StatusOK, `{"id":"abc"}`)
		client := newTestClient(t, srv)
		require.NoError(t, client.Login(context.Background()))

		_, err := client.Username()
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("logged out sends no authorization", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodGet, "/api/thing", http.StatusOK, `{"ok":true}`)
		client := newTestClient(t, srv)

		resp, err := client.Query(ctx, http.MethodGet, "api/thing", nil, nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))

		reqs := srv.RequestsTo("/api/thing")
		require.Len(t, reqs, 1)
		assert.Empty(t, reqs[0].Header.Get("Authorization"))
		assert.Equal(t, testUserAgent, reqs[0].Header.Get("User-Agent"))
	})

	t.Run("logged in sends bearer token", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodGet, "/api/thing", http.StatusOK, `{}`)
		client := newLoggedInClient(t, srv)

		resp, err := client.Query(ctx, http.MethodGet, "/api/thing", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()

		reqs := srv.RequestsTo("/api/thing")
		require.Len(t, reqs, 1)
		assert.Equal(t, "bearer token-123", reqs[0].Header.Get("Authorization"))
	})

	t.Run("params keep their order", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodGet, "/api/thing", http.StatusOK, `{}`)
		client := newTestClient(t, srv)

		params := types.Params{}.Add("zeta", "1").Add("alpha", "a b").Add("mid", "&")
		resp, err := client.Query(ctx, http.MethodGet, "api/thing", params, nil)
		require.NoError(t, err)
		resp.Body.Close()

		reqs := srv.RequestsTo("/api/thing")
		require.Len(t, reqs, 1)
		assert.Equal(t, "zeta=1&alpha=a+b&mid=%26", reqs[0].RawQuery)
	})

	t.Run("form body", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodPost, "/api/comment", http.StatusOK, `{}`)
		client := newTestClient(t, srv)

		form := url.Values{"thing_id": {"t3_abc"}, "text": {"hello"}}
		resp, err := client.Query(ctx, http.MethodPost, "api/comment", nil, form)
		require.NoError(t, err)
		resp.Body.Close()

		reqs := srv.RequestsTo("/api/comment")
		require.Len(t, reqs, 1)
		assert.Equal(t, "application/x-www-form-urlencoded", reqs[0].Header.Get("Content-Type"))
		assert.Equal(t, form.Encode(), reqs[0].Body)
	})

	t.Run("extension method accepted", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON("PURGE", "/api/thing", http.StatusOK, `{}`)
		client := newTestClient(t, srv)

		resp, err := client.Query(ctx, "PURGE", "api/thing", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid method", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)

		for _, method := range []string{"", "GE T", "GET\n", "(GET)"} {
			_, err := client.Query(ctx, method, "api/thing", nil, nil)
			require.Error(t, err, "method %q", method)
			assert.True(t, pkgerrs.HasSource(err, pkgerrs.SourceInvalidMethod), "method %q", method)
		}
		assert.Empty(t, srv.Requests())
	})

	t.Run("status is not interpreted", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)

		resp, err := client.Query(ctx, http.MethodGet, "api/missing", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("username placeholder", func(t *testing.T) {
		srv := redtest.NewServer(t)
		srv.JSON(http.MethodGet, "/user/alice/saved", http.StatusOK, `{}`)
		client := newLoggedInClient(t, srv)

		resp, err := client.Query(ctx, http.MethodGet, "user/{username}/saved", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Len(t, srv.RequestsTo("/user/alice/saved"), 1)
	})

	t.Run("username placeholder while logged out", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)

		_, err := client.Query(ctx, http.MethodGet, "user/{username}/saved", nil, nil)
		require.Error(t, err)
		assert.True(t, pkgerrs.IsApplication(err))
		assert.Empty(t, srv.Requests())
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)
		srv.Close()

		_, err := client.Query(ctx, http.MethodGet, "api/thing", nil, nil)
		require.Error(t, err)
		assert.True(t, pkgerrs.HasSource(err, pkgerrs.SourceTransport))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := redtest.NewServer(t)
		client := newTestClient(t, srv)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.Query(cctx, http.MethodGet, "api/thing", nil, nil)
		require.Error(t, err)
		assert.True(t, pkgerrs.HasSource(err, pkgerrs.SourceTransport))
	})
}

func TestTokenNeverLeavesAPIHost(t *testing.T) {
	ctx := context.Background()
	srv := redtest.NewServer(t)
	other := redtest.NewServer(t)
	other.JSON(http.MethodGet, "/steal", http.StatusOK, `{}`)
	client := newLoggedInClient(t, srv)

	t.Run("query", func(t *testing.T) {
		for _, path := range []string{other.URL + "/steal", "HTTP://" + other.Listener.Addr().String() + "/steal"} {
			resp, err := client.Query(ctx, http.MethodGet, path, nil, nil)
			require.Error(t, err, path)
			assert.Nil(t, resp)
			assert.True(t, pkgerrs.IsApplication(err))
		}
	})

	t.Run("listing", func(t *testing.T) {
		items, err := client.QueryListing(ctx, NewListingRequest(other.URL+"/r/golang/top", 5, 1))
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, pkgerrs.IsApplication(err))
	})

	t.Run("double slash stays on API host", func(t *testing.T) {
		srv.JSON(http.MethodGet, "/evil.example/x", http.StatusOK, `{}`)
		resp, err := client.Query(ctx, http.MethodGet, "//evil.example/x", nil, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Len(t, srv.RequestsTo("/evil.example/x"), 1)
	})

	assert.Empty(t, other.Requests())
}

func TestConcurrentQueriesDuringLogin(t *testing.T) {
	srv := redtest.NewServer(t)
	srv.SetupLogin("token-123", "alice")
	srv.JSON(http.MethodGet, "/api/thing", http.StatusOK, `{}`)
	client := newTestClient(t, srv)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Login(ctx))
		}()
	}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Query(ctx, http.MethodGet, "api/thing", nil, nil)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	for _, req := range srv.RequestsTo("/api/thing") {
		auth := req.Header.Get("Authorization")
		assert.True(t, auth == "" || auth == "bearer token-123", "unexpected Authorization %q", auth)
	}
}

func TestClientMetrics(t *testing.T) {
	srv := redtest.NewServer(t)
	srv.SetupLogin("token-123", "alice")
	srv.JSON(http.MethodGet, "/r/golang/new", http.StatusOK, redtest.ListingBody("", "a", "b"))

	reg := prometheus.NewRegistry()
	cfg := testConfig(srv)
	cfg.MetricsRegisterer = reg
	client, err := NewClient(cfg)
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background()))
	_, err = client.QueryListing(context.Background(), NewListingRequest("r/golang/new", 25, 1))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "redbot_logins_total", "redbot_listing_pages_total", "redbot_listing_items_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A second client on the same registry reuses the collectors.
	_, err = NewClient(cfg)
	require.NoError(t, err)
}
