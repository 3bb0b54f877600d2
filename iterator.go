package redbot

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jamesprial/redbot/internal"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
)

// ErrIteratorDone is returned by Next once the iterator has no more items.
var ErrIteratorDone = errors.New("no more listing items")

// ListingIterator walks a listing one item at a time, fetching a page only
// when the previous one has been consumed. It follows the same cursor and
// count rules as QueryListing and stops after req.Requests pages.
//
// A ListingIterator is not safe for concurrent use.
type ListingIterator struct {
	client *Client
	ctx    context.Context
	req    ListingRequest
	path   string

	buffer    []json.RawMessage
	bufferIdx int
	after     string
	count     uint64
	pages     uint64
	hasMore   bool
	err       error
}

// NewListingIterator creates an iterator for req. Validation and {username}
// expansion errors are reported by the first call to Next.
func (c *Client) NewListingIterator(ctx context.Context, req ListingRequest) *ListingIterator {
	it := &ListingIterator{
		client:  c,
		ctx:     ctx,
		req:     req,
		after:   req.After,
		count:   req.Count,
		hasMore: req.Requests > 0,
	}

	if err := c.validator.ValidateListing(req.Path); err != nil {
		it.err = err
		return it
	}
	it.path, it.err = c.reformatPath(req.Path)
	return it
}

// HasNext reports whether Next may return another item. It can return true
// when the next page turns out to be empty.
func (it *ListingIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next item, fetching another page when needed. It returns
// ErrIteratorDone when the listing is exhausted or the page budget is spent.
func (it *ListingIterator) Next() (json.RawMessage, error) {
	if it.err != nil {
		return nil, it.err
	}

	for it.bufferIdx >= len(it.buffer) {
		if !it.hasMore {
			return nil, ErrIteratorDone
		}
		if err := it.fetch(); err != nil {
			it.err = err
			return nil, err
		}
	}

	item := it.buffer[it.bufferIdx]
	it.bufferIdx++
	return item, nil
}

func (it *ListingIterator) fetch() error {
	if err := it.ctx.Err(); err != nil {
		return pkgerrs.Transport(err)
	}

	page, err := it.client.fetchPage(it.ctx, it.path, it.req.pageParams(it.after, it.count))
	if err != nil {
		return err
	}

	it.pages++
	it.buffer = page.Children
	it.bufferIdx = 0
	it.count += uint64(len(page.Children))
	it.client.metrics.ObservePage(len(page.Children))
	it.hasMore = it.advance(page)
	return nil
}

// advance records the page cursor and reports whether another page may follow.
func (it *ListingIterator) advance(page *internal.ListingPage) bool {
	if page.Exhausted {
		return false
	}
	it.after = page.After
	return it.pages < it.req.Requests
}

// Err returns the error that stopped the iteration, if any.
func (it *ListingIterator) Err() error {
	return it.err
}

// After returns the cursor of the last page fetched. It can be stored in
// ListingRequest.After to resume later.
func (it *ListingIterator) After() string {
	return it.after
}

// Collect drains up to limit items (all remaining when limit is 0).
func (it *ListingIterator) Collect(limit int) ([]json.RawMessage, error) {
	var items []json.RawMessage
	for limit <= 0 || len(items) < limit {
		item, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
