// Package registry owns the hub's three interlocking tables: the namespace
// (name → uuid), the clients table (uuid → Client) and the groups table
// (name → group). Every exported operation is a single atomic compound step
// under one lock, so no caller can observe a half-inserted client or a group
// whose owner is gone.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"concierge/internal/metrics"
	"concierge/internal/protocol"
)

var (
	ErrDuplicateName = errors.New("name is already registered")
	ErrNoSuchClient  = errors.New("no such client")
	ErrNoSuchName    = errors.New("no such name")
	ErrNoSuchGroup   = errors.New("no such group")
	ErrGroupExists   = errors.New("group already exists")
	ErrNotOwner      = errors.New("requester does not own the group")
)

type group struct {
	name    string
	owner   uuid.UUID
	members map[uuid.UUID]struct{}
}

// Registry is the sole shared-mutable resource of the hub.
type Registry struct {
	version string

	mu        sync.RWMutex
	namespace map[string]uuid.UUID
	clients   map[uuid.UUID]*Client
	groups    map[string]*group
}

// New returns an empty registry. version is echoed in HELLO payloads.
func New(version string) *Registry {
	return &Registry{
		version:   version,
		namespace: make(map[string]uuid.UUID),
		clients:   make(map[uuid.UUID]*Client),
		groups:    make(map[string]*group),
	}
}

// Register atomically claims name, creates the client, enqueues its HELLO
// and broadcasts CLIENT_JOINED to every client including the newcomer.
// Doing all of it under the write lock guarantees HELLO is strictly the
// first frame the newcomer observes and that no broadcast ever sees a
// half-inserted client.
func (r *Registry) Register(name string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.namespace[name]; taken {
		return nil, ErrDuplicateName
	}

	c := newClient(uuid.New(), name)
	r.namespace[name] = c.uuid
	r.clients[c.uuid] = c

	hello, err := protocol.Encode(protocol.Hello{
		Type:    protocol.TypeHello,
		UUID:    c.uuid,
		Version: r.version,
	})
	if err != nil {
		delete(r.namespace, name)
		delete(r.clients, c.uuid)
		return nil, err
	}
	c.mailbox.Push(hello)

	if joined, err := protocol.Encode(protocol.StatusBroadcast(protocol.ClientJoined(c.Info()))); err == nil {
		r.broadcastLocked(joined)
	}

	metrics.ConnectedClients.Inc()
	slog.Info("client registered", "uuid", c.uuid, "name", name, "total_clients", len(r.clients))
	return c, nil
}

// Deregister removes the client from every table, closes its mailbox
// (discarding pending frames), trims it from all member sets and reaps every
// group it owns, enqueueing one UNSUBSCRIBED per reaped group to each
// remaining member. A second call for the same uuid returns ErrNoSuchClient.
func (r *Registry) Deregister(id uuid.UUID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNoSuchClient
	}
	delete(r.clients, id)
	delete(r.namespace, c.name)
	c.mailbox.Close()

	for name, g := range r.groups {
		delete(g.members, id)
		if g.owner == id {
			r.reapGroupLocked(name, g)
		}
	}

	metrics.ConnectedClients.Dec()
	slog.Info("client deregistered", "uuid", id, "name", c.name, "remaining_clients", len(r.clients))
	return c, nil
}

// reapGroupLocked deletes a group and notifies its remaining members.
// Callers hold the write lock.
func (r *Registry) reapGroupLocked(name string, g *group) {
	if frame, err := protocol.Encode(protocol.StatusBroadcast(protocol.Unsubscribed(name))); err == nil {
		for id := range g.members {
			if member, ok := r.clients[id]; ok {
				member.mailbox.Push(frame)
				delete(member.groups, name)
			}
		}
	}
	delete(r.groups, name)
	metrics.ActiveGroups.Dec()
	slog.Debug("group reaped", "group", name, "owner", g.owner)
}

// CreateGroup inserts a new empty group owned by owner.
func (r *Registry) CreateGroup(name string, owner uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[name]; exists {
		return ErrGroupExists
	}
	if _, ok := r.clients[owner]; !ok {
		return ErrNoSuchClient
	}
	r.groups[name] = &group{name: name, owner: owner, members: make(map[uuid.UUID]struct{})}
	metrics.ActiveGroups.Inc()
	slog.Info("group created", "group", name, "owner", owner)
	return nil
}

// DeleteGroup removes the group if requester owns it, broadcasting
// UNSUBSCRIBED to its members first.
func (r *Registry) DeleteGroup(name string, requester uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		return ErrNoSuchGroup
	}
	if g.owner != requester {
		return ErrNotOwner
	}
	r.reapGroupLocked(name, g)
	return nil
}

// Subscribe adds the client to the group. Re-subscribing is idempotent.
func (r *Registry) Subscribe(id uuid.UUID, groupName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupName]
	if !ok {
		return ErrNoSuchGroup
	}
	c, ok := r.clients[id]
	if !ok {
		return ErrNoSuchClient
	}
	g.members[id] = struct{}{}
	c.groups[groupName] = struct{}{}
	return nil
}

// Unsubscribe removes the client from the group. It succeeds even when the
// client was not a member; only a missing group is an error.
func (r *Registry) Unsubscribe(id uuid.UUID, groupName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupName]
	if !ok {
		return ErrNoSuchGroup
	}
	delete(g.members, id)
	if c, ok := r.clients[id]; ok {
		delete(c.groups, groupName)
	}
	return nil
}

// Clients returns a stable ordered snapshot of all registered clients.
func (r *Registry) Clients() []protocol.ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Groups returns a sorted snapshot of all group names.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.groups))
	for name := range r.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GroupMembers returns the member snapshot of one group. A member uuid with
// no matching client is a momentary inconsistency and is skipped.
func (r *Registry) GroupMembers(groupName string) ([]protocol.ClientInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[groupName]
	if !ok {
		return nil, ErrNoSuchGroup
	}
	out := make([]protocol.ClientInfo, 0, len(g.members))
	for id := range g.members {
		if c, ok := r.clients[id]; ok {
			out = append(out, c.Info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Subscriptions returns the sorted group names the client is subscribed to.
func (r *Registry) Subscriptions(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.groups))
	for name := range c.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResolveName resolves a namespace name to its uuid.
func (r *Registry) ResolveName(name string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.namespace[name]
	return id, ok
}

// NameOf resolves a uuid to its namespace name. The file endpoint uses this
// as its authorization lookup.
func (r *Registry) NameOf(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return "", false
	}
	return c.name, true
}

// ClientCount returns the number of registered clients.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SendToName enqueues one frame to the client owning name.
func (r *Registry) SendToName(name string, frame []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.namespace[name]
	if !ok {
		return ErrNoSuchName
	}
	c, ok := r.clients[id]
	if !ok {
		return ErrNoSuchName
	}
	c.mailbox.Push(frame)
	metrics.FramesEnqueued.Inc()
	return nil
}

// SendToUUID enqueues one frame to the client with id.
func (r *Registry) SendToUUID(id uuid.UUID, frame []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return ErrNoSuchClient
	}
	c.mailbox.Push(frame)
	metrics.FramesEnqueued.Inc()
	return nil
}

// BroadcastGroup enqueues one frame to every member of the group, the sender
// included when subscribed.
func (r *Registry) BroadcastGroup(groupName string, frame []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[groupName]
	if !ok {
		return ErrNoSuchGroup
	}
	for id := range g.members {
		if c, ok := r.clients[id]; ok {
			c.mailbox.Push(frame)
			metrics.FramesEnqueued.Inc()
		}
	}
	return nil
}

// BroadcastAll enqueues one frame to every registered client.
func (r *Registry) BroadcastAll(frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(frame)
}

func (r *Registry) broadcastLocked(frame []byte) {
	for _, c := range r.clients {
		c.mailbox.Push(frame)
		metrics.FramesEnqueued.Inc()
	}
}
