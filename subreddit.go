package redbot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jamesprial/redbot/internal"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

const (
	searchNamesPath = "api/search_reddit_names"
	// topPageSize is the page size used once a top request spans several pages.
	topPageSize = internal.MaxListingLimit
)

// Subreddit is a handle on a community. It holds no server state.
type Subreddit struct {
	client *Client
	Name   string
}

// Subreddit returns a handle for name after checking the name is well formed.
// No request is made.
func (c *Client) Subreddit(name string) (*Subreddit, error) {
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}
	return &Subreddit{client: c, Name: name}, nil
}

// SearchForSubreddit returns one Subreddit per name the server suggests for
// query, in server order.
func (c *Client) SearchForSubreddit(ctx context.Context, query string) ([]*Subreddit, error) {
	params := types.Params{}.
		Add("query", query).
		Add("exact", "false")

	resp, err := c.Query(ctx, http.MethodGet, searchNamesPath, params, nil)
	if err != nil {
		return nil, err
	}
	body, err := internal.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	names, err := c.parser.ParseSearchNames(body)
	if err != nil {
		return nil, err
	}

	subs := make([]*Subreddit, 0, len(names))
	for _, name := range names {
		subs = append(subs, &Subreddit{client: c, Name: name})
	}
	c.logger.Debug("subreddit search", "query", query, "results", len(subs))
	return subs, nil
}

// GetSubreddit searches for name and returns the first result that matches it
// exactly. Case matters.
func (c *Client) GetSubreddit(ctx context.Context, name string) (*Subreddit, error) {
	subs, err := c.SearchForSubreddit(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.Name == name {
			return sub, nil
		}
	}
	return nil, pkgerrs.Application("subreddit not found")
}

// GetTop fetches the top items of the subreddit as opaque listing items.
//
// Up to 100 items are fetched in a single page. Above that, pages of 100 are
// fetched count/100 times, so a count that is not a multiple of 100 is
// rounded down: GetTop(250) returns at most 200 items. The result never holds
// more than count items.
func (s *Subreddit) GetTop(ctx context.Context, count uint64) ([]json.RawMessage, error) {
	limit, pages := topPages(count)
	req := NewListingRequest("r/"+s.Name+"/top", limit, pages)

	items, err := s.client.QueryListing(ctx, req)
	if err != nil {
		return nil, err
	}
	if uint64(len(items)) > count {
		items = items[:count]
	}
	return items, nil
}

// TopPosts is GetTop with every item decoded as a Post.
func (s *Subreddit) TopPosts(ctx context.Context, count uint64) ([]*Post, error) {
	items, err := s.GetTop(ctx, count)
	if err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(items))
	for _, item := range items {
		post, err := s.client.PostFromItem(item)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// topPages returns the page size and page count for a top request.
func topPages(count uint64) (limit, pages uint64) {
	if count > topPageSize {
		return topPageSize, count / topPageSize
	}
	return count, 1
}
