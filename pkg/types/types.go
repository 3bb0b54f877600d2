package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Param is a single query-string pair. Listing endpoints are sensitive to
// parameter order only in logs and tests, but the order given by callers is
// always preserved on the wire.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered sequence of query parameters.
type Params []Param

// Add appends a key/value pair and returns the extended sequence.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Encode renders the parameters as a URL query string in their original order.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, param := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}
	return sb.String()
}

// AccessTokenResponse is the decoded body of the OAuth token endpoint.
type AccessTokenResponse struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
	ExpiresIn uint64 `json:"expires_in"`
	Scope     string `json:"scope"`
}

// SearchNamesResponse is the body returned by api/search_reddit_names.
type SearchNamesResponse struct {
	Names []string `json:"names"`
}

// ThingData holds the common fields for Reddit objects.
// It can be embedded into specific types like Post and Comment.
type ThingData struct {
	ID   string `json:"id"`   // ID (without prefix)
	Name string `json:"name"` // Full name (e.g., "t3_abc123")
}

// GetID returns the object's ID.
func (td ThingData) GetID() string {
	return td.ID
}

// GetName returns the object's full name.
func (td ThingData) GetName() string {
	return td.Name
}

// Thing is the envelope every listing child arrives in: a kind tag such as
// "t1" or "t3" and the kind-specific data object.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Votable is an embeddable struct for things that can be voted on.
type Votable struct {
	Ups   int `json:"ups"`
	Downs int `json:"downs"`
	// Likes indicates the user's vote: true for upvote, false for downvote, null for no vote.
	Likes *bool `json:"likes"`
}

// Created is an embeddable struct for things that have a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// Edited represents a field that can be a boolean or a timestamp.
// If IsEdited is true and Timestamp is 0, it was an old edit marked as `true`.
// If IsEdited is true and Timestamp is non-zero, it's a modern edit with a timestamp.
// If IsEdited is false, the item was not edited.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle mixed types for the "edited" field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", data)
}

// AccountData contains the data for a user Account (kind "t2").
type AccountData struct {
	ThingData
	Created
	CommentKarma     int   `json:"comment_karma"`
	HasVerifiedEmail *bool `json:"has_verified_email"`
	IsFriend         bool  `json:"is_friend"`
	IsGold           bool  `json:"is_gold"`
	IsMod            bool  `json:"is_mod"`
	LinkKarma        int   `json:"link_karma"`
	Over18           bool  `json:"over_18"`
}

// PostData contains the fields of a link submission (kind "t3").
type PostData struct {
	ThingData
	Votable
	Created
	Author      string  `json:"author"`
	Domain      string  `json:"domain"`
	IsSelf      bool    `json:"is_self"`
	Locked      bool    `json:"locked"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	SelfText    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Edited      Edited  `json:"edited"` // Can be a boolean or a float64 timestamp
	Stickied    bool    `json:"stickied"`
	LinkFlair   *string `json:"link_flair_text"`
}

// CommentData contains the fields of a comment (kind "t1").
type CommentData struct {
	ThingData
	Votable
	Created
	Author    string `json:"author"`
	Body      string `json:"body"`
	Edited    Edited `json:"edited"` // Can be a boolean (for old comments) or a float64 timestamp
	LinkID    string `json:"link_id"`
	LinkTitle string `json:"link_title,omitempty"`
	ParentID  string `json:"parent_id"`
	Permalink string `json:"permalink"`
	Score     int    `json:"score"`
	Subreddit string `json:"subreddit"`
}
