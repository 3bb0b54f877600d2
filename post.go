package redbot

import (
	"encoding/json"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
	"github.com/jamesprial/redbot/pkg/validation"
)

// Post is a link submission together with handles on its author and
// community.
type Post struct {
	*types.PostData
	User *User

	client *Client
}

// PostFromItem decodes an opaque listing item of kind "t3".
func (c *Client) PostFromItem(item json.RawMessage) (*Post, error) {
	thing, err := c.parser.ParseThing(item)
	if err != nil {
		return nil, err
	}
	data, err := c.parser.ParseLink(thing)
	if err != nil {
		return nil, err
	}
	return &Post{
		PostData: data,
		User:     &User{client: c, Name: data.Author},
		client:   c,
	}, nil
}

// Subreddit returns a handle on the community the post was submitted to.
func (p *Post) Subreddit() *Subreddit {
	return &Subreddit{client: p.client, Name: p.PostData.Subreddit}
}

// Validate checks the post's identifiers and names against the formats the
// API uses. Violations are Application errors.
func (p *Post) Validate() error {
	if err := validation.ValidatePost(p.PostData); err != nil {
		return pkgerrs.Application(err.Error())
	}
	return nil
}
