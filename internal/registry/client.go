package registry

import (
	"github.com/google/uuid"

	"concierge/internal/protocol"
)

// Client is one identified websocket peer. The identity pair is immutable
// for the client's lifetime; the groups set is guarded by the registry lock.
type Client struct {
	uuid    uuid.UUID
	name    string
	mailbox *Mailbox
	groups  map[string]struct{}
}

func newClient(id uuid.UUID, name string) *Client {
	return &Client{
		uuid:    id,
		name:    name,
		mailbox: newMailbox(),
		groups:  make(map[string]struct{}),
	}
}

// UUID returns the client's process-unique id.
func (c *Client) UUID() uuid.UUID {
	return c.uuid
}

// Name returns the client's namespace name.
func (c *Client) Name() string {
	return c.name
}

// Mailbox returns the outbound queue. The session's dispatcher is the sole
// consumer.
func (c *Client) Mailbox() *Mailbox {
	return c.mailbox
}

// Info returns the (uuid, name) snapshot pair.
func (c *Client) Info() protocol.ClientInfo {
	return protocol.ClientInfo{UUID: c.uuid, Name: c.name}
}
