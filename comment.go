package redbot

import (
	"encoding/json"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
	"github.com/jamesprial/redbot/pkg/validation"
)

// Comment is a comment together with a handle on its author.
type Comment struct {
	*types.CommentData
	User *User

	client *Client
}

// CommentFromItem decodes an opaque listing item of kind "t1".
func (c *Client) CommentFromItem(item json.RawMessage) (*Comment, error) {
	thing, err := c.parser.ParseThing(item)
	if err != nil {
		return nil, err
	}
	data, err := c.parser.ParseComment(thing)
	if err != nil {
		return nil, err
	}
	return &Comment{
		CommentData: data,
		User:        &User{client: c, Name: data.Author},
		client:      c,
	}, nil
}

// Subreddit returns a handle on the community the comment belongs to.
func (c *Comment) Subreddit() *Subreddit {
	return &Subreddit{client: c.client, Name: c.CommentData.Subreddit}
}

// Validate checks the comment's identifiers and names. Violations are
// Application errors.
func (c *Comment) Validate() error {
	if err := validation.ValidateComment(c.CommentData); err != nil {
		return pkgerrs.Application(err.Error())
	}
	return nil
}
