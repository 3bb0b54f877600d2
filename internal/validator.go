package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
)

const (
	// Subreddit name constraints
	minSubredditLength = 3
	maxSubredditLength = 21

	// MaxListingLimit is the largest page size the listing endpoints honour.
	// Larger limits are sent unchanged and clamped by the server.
	MaxListingLimit = 100

	// User agent constraints
	maxUserAgentLength = 256
)

// Validator provides validation operations for API parameters.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateMethod checks that method is a syntactically valid HTTP method
// token. Extension methods are accepted; the check is case-sensitive.
func (v *Validator) ValidateMethod(method string) error {
	if method == "" {
		return pkgerrs.InvalidMethod(method)
	}
	for i := 0; i < len(method); i++ {
		if !isTokenChar(method[i]) {
			return pkgerrs.InvalidMethod(method)
		}
	}
	return nil
}

// ValidateSubredditName checks if a subreddit name is valid according to Reddit's naming rules.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return pkgerrs.Application("subreddit name cannot be empty")
	}
	if len(name) < minSubredditLength {
		return pkgerrs.Applicationf("subreddit name must be at least %d characters", minSubredditLength)
	}
	if len(name) > maxSubredditLength {
		return pkgerrs.Applicationf("subreddit name cannot exceed %d characters", maxSubredditLength)
	}
	if name[0] == '_' {
		return pkgerrs.Application("subreddit name cannot start with underscore")
	}
	for i, ch := range name {
		if !(ch >= 'a' && ch <= 'z') && !(ch >= 'A' && ch <= 'Z') && !(ch >= '0' && ch <= '9') && ch != '_' {
			return pkgerrs.Applicationf("subreddit name contains invalid character '%c' at position %d", ch, i)
		}
	}
	return nil
}

// ValidateListing checks the parts of a listing descriptor the pagination
// loop depends on.
func (v *Validator) ValidateListing(path string) error {
	if strings.TrimSpace(path) == "" {
		return pkgerrs.Application("listing path cannot be empty")
	}
	if strings.Contains(path, "?") {
		return pkgerrs.Application("listing path cannot contain a query string; use Params")
	}
	return nil
}

// ValidateUserAgent validates the User-Agent string to prevent header injection.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return fmt.Errorf("user agent cannot be empty")
	}
	if strings.ContainsAny(ua, "\r\n") {
		return fmt.Errorf("user agent cannot contain newline characters")
	}
	if len(ua) > maxUserAgentLength {
		return fmt.Errorf("user agent too long (max %d characters)", maxUserAgentLength)
	}
	return nil
}

// isTokenChar reports whether c may appear in an RFC 7230 token.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
