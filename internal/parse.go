package internal

import (
	"bytes"
	"encoding/json"
	"fmt"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
)

// Parser handles validated decoding of API responses. Every shape
// expectation is checked and reported as an error instead of assumed.
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ListingPage is one decoded page of a listing endpoint.
type ListingPage struct {
	// After is the cursor for the next page. Empty when Exhausted, or when
	// the server sent "" and the next request should carry no cursor.
	After string
	// Exhausted reports that the server sent a null cursor.
	Exhausted bool
	// Children are the page items, undecoded and in server order.
	Children []json.RawMessage
}

// ParseListingPage decodes a `{data: {after, children}}` listing body.
// Malformed JSON is a decode error; a body that is valid JSON but lacks the
// listing shape is an application error.
func (p *Parser) ParseListingPage(body []byte) (*ListingPage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		if !json.Valid(body) {
			return nil, pkgerrs.Decode(err)
		}
		return nil, pkgerrs.Application("listing response is not a JSON object")
	}

	rawData, ok := envelope["data"]
	if !ok || isNull(rawData) {
		return nil, pkgerrs.Application("listing response is missing 'data'")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, pkgerrs.Application("listing 'data' is not an object")
	}

	rawAfter, ok := data["after"]
	if !ok {
		return nil, pkgerrs.Application("listing response is missing 'data.after'")
	}

	page := &ListingPage{}
	if isNull(rawAfter) {
		page.Exhausted = true
	} else if err := json.Unmarshal(rawAfter, &page.After); err != nil {
		return nil, pkgerrs.Application("listing 'data.after' is not a string")
	}

	rawChildren, ok := data["children"]
	if !ok {
		return nil, pkgerrs.Application("listing response is missing 'data.children'")
	}
	if err := json.Unmarshal(rawChildren, &page.Children); err != nil || page.Children == nil {
		return nil, pkgerrs.Application("listing 'data.children' is not an array")
	}

	return page, nil
}

// ParseIdentity checks that body is a JSON object and returns it unchanged
// as the opaque "who am I" snapshot.
func (p *Parser) ParseIdentity(body []byte) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		if !json.Valid(body) {
			return nil, pkgerrs.Decode(err)
		}
		return nil, pkgerrs.Application("identity response is not a JSON object")
	}
	if obj == nil {
		return nil, pkgerrs.Application("identity response is not a JSON object")
	}
	return json.RawMessage(bytes.Clone(body)), nil
}

// IdentityName extracts the top-level `name` string of an identity snapshot.
func (p *Parser) IdentityName(identity json.RawMessage) (string, error) {
	var obj struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(identity, &obj); err != nil {
		return "", pkgerrs.Decode(err)
	}
	if obj.Name == nil || *obj.Name == "" {
		return "", pkgerrs.Application("identity response has no 'name'")
	}
	return *obj.Name, nil
}

// ParseSearchNames decodes the `{names: [...]}` body of the subreddit name
// search. Non-string entries are skipped.
func (p *Parser) ParseSearchNames(body []byte) ([]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		if !json.Valid(body) {
			return nil, pkgerrs.Decode(err)
		}
		return nil, pkgerrs.Application("search response is not a JSON object")
	}

	rawNames, ok := envelope["names"]
	if !ok {
		return nil, pkgerrs.Application("search response is missing 'names'")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawNames, &entries); err != nil || entries == nil {
		return nil, pkgerrs.Application("search 'names' is not an array")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		var name string
		if err := json.Unmarshal(entry, &name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ParseThing decodes a listing child into its kind/data envelope.
func (p *Parser) ParseThing(raw json.RawMessage) (*types.Thing, error) {
	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, pkgerrs.Decode(err)
	}
	if thing.Kind == "" {
		return nil, pkgerrs.Application("item has no 'kind'")
	}
	if len(thing.Data) == 0 || isNull(thing.Data) {
		return nil, pkgerrs.Application("item has no 'data'")
	}
	return &thing, nil
}

// ParseLink extracts a PostData from a Thing of kind "t3".
func (p *Parser) ParseLink(thing *types.Thing) (*types.PostData, error) {
	if err := expectKind(thing, "t3"); err != nil {
		return nil, err
	}

	var post types.PostData
	if err := json.Unmarshal(thing.Data, &post); err != nil {
		return nil, pkgerrs.Decode(fmt.Errorf("failed to parse Link data: %w", err))
	}
	return &post, nil
}

// ParseComment extracts a CommentData from a Thing of kind "t1".
func (p *Parser) ParseComment(thing *types.Thing) (*types.CommentData, error) {
	if err := expectKind(thing, "t1"); err != nil {
		return nil, err
	}

	var comment types.CommentData
	if err := json.Unmarshal(thing.Data, &comment); err != nil {
		return nil, pkgerrs.Decode(fmt.Errorf("failed to parse Comment data: %w", err))
	}
	return &comment, nil
}

// ParseAccount extracts an AccountData from a Thing of kind "t2". The account
// must carry a name.
func (p *Parser) ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	if err := expectKind(thing, "t2"); err != nil {
		return nil, err
	}

	var account types.AccountData
	if err := json.Unmarshal(thing.Data, &account); err != nil {
		return nil, pkgerrs.Decode(fmt.Errorf("failed to parse Account data: %w", err))
	}
	if account.Name == "" {
		return nil, pkgerrs.Application("account response has no 'data.name'")
	}
	return &account, nil
}

func expectKind(thing *types.Thing, kind string) error {
	if thing == nil {
		return pkgerrs.Application("thing is nil")
	}
	if thing.Kind != kind {
		return pkgerrs.Applicationf("expected %s, got %s", kind, thing.Kind)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
