// Package redtest provides an httptest-backed fake of the API for tests.
package redtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Response is a canned reply. Queued responses for a route are served in
// order; the last one repeats once the queue is drained.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// Request is a logged incoming request.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    url.Values
	Header   http.Header
	Body     string
}

// Server is a configurable fake API server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string][]*Response
	requests []Request
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{routes: make(map[string][]*Response)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle queues responses for method and path.
func (s *Server) Handle(method, path string, responses ...*Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, path)
	s.routes[key] = append(s.routes[key], responses...)
}

// JSON queues a single JSON response.
func (s *Server) JSON(method, path string, status int, body string) {
	s.Handle(method, path, &Response{
		Status:  status,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
}

// SetupLogin configures the token and identity endpoints for a successful login.
func (s *Server) SetupLogin(token, username string) {
	s.JSON(http.MethodPost, "/api/v1/access_token", http.StatusOK,
		fmt.Sprintf(`{"access_token":%q,"token_type":"bearer","expires_in":3600,"scope":"*"}`, token))
	s.JSON(http.MethodGet, "/api/v1/me", http.StatusOK,
		fmt.Sprintf(`{"name":%q,"id":"abc","link_karma":1}`, username))
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the logged requests whose path equals path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Query:    r.URL.Query(),
		Header:   r.Header.Clone(),
		Body:     string(body),
	})

	key := routeKey(r.Method, r.URL.Path)
	queue := s.routes[key]
	var resp *Response
	switch len(queue) {
	case 0:
	case 1:
		resp = queue[0]
	default:
		resp = queue[0]
		s.routes[key] = queue[1:]
	}
	s.mu.Unlock()

	if resp == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found","error":404}`)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	fmt.Fprint(w, resp.Body)
}

func routeKey(method, path string) string {
	return method + " " + path
}

// ListingBody builds a listing page body holding one t3 child per id.
// An empty after renders as a null cursor.
func ListingBody(after string, ids ...string) string {
	children := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		children = append(children, map[string]any{
			"kind": "t3",
			"data": map[string]any{
				"id":        id,
				"name":      "t3_" + id,
				"title":     "post " + id,
				"author":    "author_" + id,
				"subreddit": "golang",
				"score":     1,
			},
		})
	}

	var cursor any
	if after != "" {
		cursor = after
	}

	body, err := json.Marshal(map[string]any{
		"kind": "Listing",
		"data": map[string]any{
			"after":    cursor,
			"children": children,
		},
	})
	if err != nil {
		panic(err)
	}
	return string(body)
}

// IDs returns "<prefix>0" .. "<prefix>n-1".
func IDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = prefix + fmt.Sprint(i)
	}
	return ids
}

// SearchBody builds a subreddit name search body.
func SearchBody(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return `{"names":[` + strings.Join(quoted, ",") + `]}`
}
