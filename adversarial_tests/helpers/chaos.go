// Package helpers provides failure-injecting transports for adversarial tests.
package helpers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// ChaosMode defines the type of chaos to inject
type ChaosMode int

const (
	// ChaosNone passes requests through unchanged
	ChaosNone ChaosMode = iota

	// ChaosConnectionReset fails the round trip before any response
	ChaosConnectionReset

	// ChaosPartialRead returns the real response but fails halfway through the body
	ChaosPartialRead

	// ChaosEmptyBody returns 200 with an empty body
	ChaosEmptyBody

	// ChaosMalformedBody returns 200 with bytes that are not JSON
	ChaosMalformedBody

	// ChaosStatus returns Config.Status with an empty JSON object
	ChaosStatus
)

// ChaosConfig configures a ChaosTransport.
type ChaosConfig struct {
	// Mode is the failure injected once PassThrough requests have been served.
	Mode ChaosMode

	// PassThrough is the number of leading requests forwarded untouched.
	PassThrough int

	// Path limits injection to requests whose URL path contains it. Empty matches all.
	Path string

	// Status used by ChaosStatus.
	Status int
}

// ChaosTransport is an http.RoundTripper that injects failures into a real
// transport. It is deterministic: the n-th matching request always sees the
// same behavior.
type ChaosTransport struct {
	base    http.RoundTripper
	config  ChaosConfig
	matched atomic.Int64
}

// NewChaosTransport wraps base. A nil base uses http.DefaultTransport.
func NewChaosTransport(base http.RoundTripper, config ChaosConfig) *ChaosTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ChaosTransport{base: base, config: config}
}

// Injected reports how many requests matched Path, including passed-through ones.
func (c *ChaosTransport) Injected() int64 {
	return c.matched.Load()
}

// RoundTrip implements http.RoundTripper.
func (c *ChaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.config.Path != "" && !strings.Contains(req.URL.Path, c.config.Path) {
		return c.base.RoundTrip(req)
	}
	if n := c.matched.Add(1); n <= int64(c.config.PassThrough) {
		return c.base.RoundTrip(req)
	}

	switch c.config.Mode {
	case ChaosConnectionReset:
		return nil, errors.New("connection reset by peer")

	case ChaosPartialRead:
		resp, err := c.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = &partialReadCloser{reader: bytes.NewReader(body[:len(body)/2])}
		resp.ContentLength = -1
		return resp, nil

	case ChaosEmptyBody:
		return buildResponse(req, http.StatusOK, ""), nil

	case ChaosMalformedBody:
		return buildResponse(req, http.StatusOK, "This is not valid JSON\x00\x01\x02"), nil

	case ChaosStatus:
		return buildResponse(req, c.config.Status, "{}"), nil

	default:
		return c.base.RoundTrip(req)
	}
}

func buildResponse(req *http.Request, status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Header:        header,
	}
}

// partialReadCloser returns its data and then fails instead of reporting EOF.
type partialReadCloser struct {
	reader io.Reader
}

func (p *partialReadCloser) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if errors.Is(err, io.EOF) {
		return n, errors.New("connection reset during read")
	}
	return n, err
}

func (p *partialReadCloser) Close() error {
	return nil
}
