package testutil

import "github.com/roach88/roomstore/internal/record"

// Client is a connected client with a fixed identity.
type Client struct {
	ident record.Identity
}

// NewClient returns a client whose id and uuid are derived from username.
func NewClient(username string) *Client {
	return &Client{ident: record.Identity{
		ID:       "id-" + username,
		Username: username,
		UUID:     "uuid-" + username,
	}}
}

// NewClientWithIdentity returns a client with the given identity.
func NewClientWithIdentity(ident record.Identity) *Client {
	return &Client{ident: ident}
}

func (c *Client) Username() string          { return c.ident.Username }
func (c *Client) Identity() record.Identity { return c.ident }
