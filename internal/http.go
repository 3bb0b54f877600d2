package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

const (
	// TracerName is the instrumentation scope used for client spans.
	TracerName = "github.com/jamesprial/redbot"

	// LowRemainingThreshold is the remaining-request budget below which a warning is logged.
	LowRemainingThreshold = 10
	// LowRemainingWarnInterval bounds how often the low-budget warning is repeated.
	LowRemainingWarnInterval = time.Minute
	ParseFloatBitSize        = 64
)

// RateLimitHeaders are the response headers inspected for diagnostics.
var RateLimitHeaders = [...]string{
	"X-Ratelimit-Used",
	"X-Ratelimit-Remaining",
	"X-Ratelimit-Reset",
}

// Client manages communication with the API.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	lowBudgetWarn *rate.Sometimes
}

// NewClient returns a new API transport client.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL string, userAgent string, logger *slog.Logger, metrics *Metrics) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, pkgerrs.Applicationf("failed to parse API base URL: %v", err)
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	return &Client{
		client:        httpClient,
		BaseURL:       parsedURL,
		UserAgent:     userAgent,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer(TracerName),
		lowBudgetWarn: &rate.Sometimes{Interval: LowRemainingWarnInterval},
	}, nil
}

// NewRequest creates an API request. The path is appended to the BaseURL of
// the Client and may not name a scheme or host of its own. Query parameters
// keep their order; a non-nil form is sent as a URL-encoded body. The bearer
// token is attached only when non-empty.
func (c *Client) NewRequest(ctx context.Context, method, path string, params types.Params, form url.Values, token string) (*http.Request, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&" + params.Encode()
		} else {
			u.RawQuery = params.Encode()
		}
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, pkgerrs.Applicationf("failed to create request: %v", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", "bearer "+token)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return req, nil
}

// resolve appends path to the base URL. Leading slashes are dropped and
// references that carry their own scheme or host are rejected.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, pkgerrs.Applicationf("invalid request path %q: %v", path, err)
	}
	if ref.Scheme != "" || ref.Host != "" || ref.Opaque != "" || ref.User != nil {
		return nil, pkgerrs.Applicationf("request path %q must be relative to the API base URL", path)
	}

	u := *c.BaseURL
	u.Path = c.BaseURL.Path + ref.Path
	u.RawPath = c.BaseURL.EscapedPath() + ref.EscapedPath()
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	u.RawFragment = ""
	return &u, nil
}

// Do sends an API request and returns the raw response. The status code is
// not interpreted; callers decide what counts as failure. The caller must
// close the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(req.Context(), "redbot.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("redbot.request_id", requestID),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	c.logger.Debug("sending request",
		"request_id", requestID,
		"method", req.Method,
		"url", req.URL.String(),
	)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Debug("request failed", "request_id", requestID, "error", err)
		return nil, pkgerrs.Transport(err)
	}

	c.metrics.ObserveRequest(req.Method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	c.logger.Debug("response received",
		"request_id", requestID,
		"status", resp.StatusCode,
		"elapsed", elapsed,
	)
	c.inspectRateHeaders(resp, requestID)

	return resp, nil
}

// inspectRateHeaders logs the rate-limit headers. It never delays or rejects
// requests.
func (c *Client) inspectRateHeaders(resp *http.Response, requestID string) {
	for _, name := range RateLimitHeaders {
		if value := resp.Header.Get(name); value != "" {
			c.logger.Debug(">> rate limit header", "request_id", requestID, "header", name, "value", value)
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	if remainingHeader == "" {
		return
	}
	remaining, err := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	if err != nil || remaining >= LowRemainingThreshold {
		return
	}

	reset := resp.Header.Get("X-Ratelimit-Reset")
	c.lowBudgetWarn.Do(func() {
		c.logger.Warn("rate limit budget nearly exhausted",
			"remaining", remaining,
			"reset_seconds", reset,
		)
	})
}

// ReadBody drains and closes the response body. Statuses of 400 and above are
// reported as application errors carrying the numeric code.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, pkgerrs.StatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrs.Transport(err)
	}
	return body, nil
}
