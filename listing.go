package redbot

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jamesprial/redbot/internal"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

// ListingRequest describes a paginated fetch against a listing endpoint.
// QueryListing never modifies it.
type ListingRequest struct {
	// Path of the listing endpoint, e.g. "r/golang/top". May contain {username}.
	Path string
	// Params are extra query parameters sent before the pagination ones.
	Params types.Params
	// After is the starting cursor. Empty means start from the beginning.
	After string
	// Count of items already seen before After.
	Count uint64
	// Limit is the page size requested from the server. It is sent unchanged;
	// the server clamps values above 100.
	Limit uint64
	// Requests is the maximum number of pages to fetch.
	Requests uint64
	// ShowAll adds show=all, disabling the server's "hide" filters.
	ShowAll bool
}

// NewListingRequest returns a request for path starting from the first page,
// with ShowAll enabled.
func NewListingRequest(path string, limit, requests uint64) ListingRequest {
	return ListingRequest{
		Path:     path,
		Limit:    limit,
		Requests: requests,
		ShowAll:  true,
	}
}

// pageParams builds the query parameters for one page.
func (r ListingRequest) pageParams(after string, count uint64) types.Params {
	params := make(types.Params, 0, len(r.Params)+4)
	params = append(params, r.Params...)
	params = params.Add("limit", strconv.FormatUint(r.Limit, 10))
	if after != "" {
		params = params.Add("after", after)
	}
	if count > 0 {
		params = params.Add("count", strconv.FormatUint(count, 10))
	}
	if r.ShowAll {
		params = params.Add("show", "all")
	}
	return params
}

// QueryListing fetches up to req.Requests pages of a listing and returns
// their children in server order.
//
// Pages are fetched one after the other, each carrying the cursor returned by
// the previous one. A null cursor means the listing is exhausted and ends the
// loop early; an empty one only drops `after` from the next request. Any failed page aborts the whole call; no partial
// results are returned on error.
func (c *Client) QueryListing(ctx context.Context, req ListingRequest) ([]json.RawMessage, error) {
	if err := c.validator.ValidateListing(req.Path); err != nil {
		return nil, err
	}

	path, err := c.reformatPath(req.Path)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "redbot.QueryListing")
	defer span.End()
	span.SetAttributes(
		attribute.String("redbot.listing.path", path),
		attribute.Int64("redbot.listing.requests", int64(req.Requests)),
	)

	after := req.After
	count := req.Count
	var items []json.RawMessage

	for page := uint64(0); page < req.Requests; page++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, pkgerrs.Transport(err)
		}

		result, err := c.fetchPage(ctx, path, req.pageParams(after, count))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page failed")
			c.logger.Debug("listing page failed", "path", path, "page", page, "error", err)
			return nil, err
		}

		items = append(items, result.Children...)
		count += uint64(len(result.Children))
		c.metrics.ObservePage(len(result.Children))

		c.logger.Debug("listing page fetched",
			"path", path,
			"page", page,
			"items", len(result.Children),
			"after", result.After,
		)

		if result.Exhausted {
			c.logger.Debug("listing exhausted", "path", path, "pages", page+1)
			break
		}
		after = result.After
	}

	span.SetAttributes(attribute.Int("redbot.listing.items", len(items)))
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, path string, params types.Params) (*internal.ListingPage, error) {
	resp, err := c.send(ctx, http.MethodGet, path, params, nil, c.bearerToken())
	if err != nil {
		return nil, err
	}
	body, err := internal.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseListingPage(body)
}
