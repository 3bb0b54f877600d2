package redbot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jamesprial/redbot/internal"
	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
	"github.com/jamesprial/redbot/pkg/types"
	"github.com/jamesprial/redbot/pkg/validation"
)

// User is a handle on an account.
type User struct {
	client *Client
	Name   string
}

// User returns a handle for the account called name. No request is made.
func (c *Client) User(name string) (*User, error) {
	if name == "" {
		return nil, pkgerrs.Application("user name cannot be empty")
	}
	if !validation.IsValidUsername(name) {
		return nil, pkgerrs.Applicationf("invalid user name %q", name)
	}
	return &User{client: c, Name: name}, nil
}

// Me returns a handle for the logged-in account.
func (c *Client) Me() (*User, error) {
	name, err := c.Username()
	if err != nil {
		return nil, err
	}
	return &User{client: c, Name: name}, nil
}

// About fetches the account's public profile from user/<name>/about. Unlike
// the identity snapshot cached by Login, the name here is read from data.name.
func (u *User) About(ctx context.Context) (*types.AccountData, error) {
	resp, err := u.client.Query(ctx, http.MethodGet, "user/"+url.PathEscape(u.Name)+"/about", nil, nil)
	if err != nil {
		return nil, err
	}
	body, err := internal.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	thing, err := u.client.parser.ParseThing(body)
	if err != nil {
		return nil, err
	}
	return u.client.parser.ParseAccount(thing)
}
