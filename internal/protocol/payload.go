package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Subprotocol is the websocket subprotocol negotiated on upgrade.
const Subprotocol = "ert-concierge"

// FSKeyHeader carries the file-endpoint authorization key (a client uuid).
const FSKeyHeader = "x-fs-key"

// Payload types used by the websocket protocol.
const (
	TypeIdentify              = "IDENTIFY"
	TypeHello                 = "HELLO"
	TypeMessage               = "MESSAGE"
	TypeSubscribe             = "SUBSCRIBE"
	TypeUnsubscribe           = "UNSUBSCRIBE"
	TypeGroupCreate           = "GROUP_CREATE"
	TypeGroupDelete           = "GROUP_DELETE"
	TypeFetchGroupSubscribers = "FETCH_GROUP_SUBSCRIBERS"
	TypeFetchClients          = "FETCH_CLIENTS"
	TypeFetchGroups           = "FETCH_GROUPS"
	TypeFetchSubscriptions    = "FETCH_SUBSCRIPTIONS"
	TypeClients               = "CLIENTS"
	TypeGroups                = "GROUPS"
	TypeSubscriptions         = "SUBSCRIPTIONS"
	TypeGroupSubscribers      = "GROUP_SUBSCRIBERS"
	TypeStatus                = "STATUS"
	TypeError                 = "ERROR"
)

// Close codes sent on fatal identification or decode failures. The numeric
// values are shared protocol constants and must match across client and
// server releases.
const (
	CloseFatalDecode   = 4002
	CloseNoAuth        = 4003
	CloseAuthFailed    = 4004
	CloseBadSecret     = 4005
	CloseBadVersion    = 4006
	CloseDuplicateAuth = 4007
)

// Target types for MESSAGE routing.
const (
	TargetName  = "NAME"
	TargetUUID  = "UUID"
	TargetGroup = "GROUP"
	TargetAll   = "ALL"
)

// Target is the tagged union addressing a MESSAGE. The tag determines which
// of the other fields is meaningful; a name that collides with a uuid string
// form is disambiguated by the tag alone.
type Target struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	UUID  string `json:"uuid,omitempty"`
	Group string `json:"group,omitempty"`
}

// Origin is stamped by the server on every delivered MESSAGE. Group is only
// present when the message was routed to a group target.
type Origin struct {
	UUID  uuid.UUID `json:"uuid"`
	Name  string    `json:"name"`
	Group string    `json:"group,omitempty"`
}

// ClientInfo is the (uuid, name) pair used in snapshots and origin receipts.
type ClientInfo struct {
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
}

// RawMessage is the MESSAGE envelope. Data is kept as raw JSON so the hub
// forwards it bit-exactly without re-encoding.
type RawMessage struct {
	Type   string          `json:"type"`
	Target *Target         `json:"target,omitempty"`
	Origin *Origin         `json:"origin,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Packet is the inbound control envelope for everything that is not a
// MESSAGE. Unused fields stay empty per payload type.
type Packet struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Secret  string `json:"secret,omitempty"`
	Group   string `json:"group,omitempty"`
}

// Hello is the first frame a registered client observes.
type Hello struct {
	Type    string    `json:"type"`
	UUID    uuid.UUID `json:"uuid"`
	Version string    `json:"version"`
}

// Status payload data kinds.
const (
	StatusClientJoined = "CLIENT_JOINED"
	StatusClientLeft   = "CLIENT_LEFT"
	StatusSubscribed   = "SUBSCRIBED"
	StatusUnsubscribed = "UNSUBSCRIBED"
	StatusCreatedGroup = "CREATED_GROUP"
	StatusDeletedGroup = "DELETED_GROUP"
	StatusMessageSent  = "MESSAGE_SENT"
)

// Status wraps a status data object. Seq is present on direct replies and
// absent on broadcasts.
type Status struct {
	Type string `json:"type"`
	Seq  *int   `json:"seq,omitempty"`
	Data any    `json:"data"`
}

// ClientStatus is the CLIENT_JOINED / CLIENT_LEFT data object.
type ClientStatus struct {
	Type string    `json:"type"`
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
}

// GroupStatus is the data object for group-scoped statuses.
type GroupStatus struct {
	Type  string `json:"type"`
	Group string `json:"group"`
}

// SimpleStatus is a data object that carries only its kind.
type SimpleStatus struct {
	Type string `json:"type"`
}

// Error codes carried by ERROR payloads.
const (
	ErrCodeProtocol            = "PROTOCOL"
	ErrCodeNoSuchName          = "NO_SUCH_NAME"
	ErrCodeNoSuchUUID          = "NO_SUCH_UUID"
	ErrCodeNoSuchGroup         = "NO_SUCH_GROUP"
	ErrCodeGroupAlreadyCreated = "GROUP_ALREADY_CREATED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUnsupported         = "UNSUPPORTED"
)

// Error is a recoverable protocol error; the session continues after it.
type Error struct {
	Type    string `json:"type"`
	Seq     *int   `json:"seq,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Clients answers FETCH_CLIENTS.
type Clients struct {
	Type    string       `json:"type"`
	Seq     *int         `json:"seq,omitempty"`
	Clients []ClientInfo `json:"clients"`
}

// Groups answers FETCH_GROUPS.
type Groups struct {
	Type   string   `json:"type"`
	Seq    *int     `json:"seq,omitempty"`
	Groups []string `json:"groups"`
}

// Subscriptions answers FETCH_SUBSCRIPTIONS.
type Subscriptions struct {
	Type   string   `json:"type"`
	Seq    *int     `json:"seq,omitempty"`
	Groups []string `json:"groups"`
}

// GroupSubscribers answers FETCH_GROUP_SUBSCRIBERS.
type GroupSubscribers struct {
	Type    string       `json:"type"`
	Seq     *int         `json:"seq,omitempty"`
	Group   string       `json:"group"`
	Clients []ClientInfo `json:"clients"`
}

// Seq returns a pointer for the optional seq field. Zero is a valid seq.
func Seq(n int) *int {
	return &n
}

// Encode marshals a payload to a single wire frame. Frames are encoded once
// and shared between recipient mailboxes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
