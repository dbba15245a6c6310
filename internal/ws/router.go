package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"concierge/internal/metrics"
	"concierge/internal/protocol"
	"concierge/internal/registry"
)

// route dispatches one inbound text frame. seq is the frame's position in
// the sender's inbound stream and is echoed on every direct reply.
func (h *Handler) route(c *registry.Client, seq int, frame []byte) {
	// Fast path: a MESSAGE envelope keeps data as raw JSON so it is
	// forwarded bit-exactly without re-encoding.
	var raw protocol.RawMessage
	if err := json.Unmarshal(frame, &raw); err == nil && raw.Type == protocol.TypeMessage {
		h.routeMessage(c, seq, raw)
		return
	}

	var p protocol.Packet
	if err := json.Unmarshal(frame, &p); err != nil {
		h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeProtocol, err.Error()))
		return
	}

	switch p.Type {
	case protocol.TypeSubscribe:
		if err := h.registry.Subscribe(c.UUID(), p.Group); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchGroup, fmt.Sprintf("no such group %q", p.Group)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.Subscribed(p.Group)))

	case protocol.TypeUnsubscribe:
		if err := h.registry.Unsubscribe(c.UUID(), p.Group); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchGroup, fmt.Sprintf("no such group %q", p.Group)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.Unsubscribed(p.Group)))

	case protocol.TypeGroupCreate:
		if err := h.registry.CreateGroup(p.Group, c.UUID()); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeGroupAlreadyCreated, fmt.Sprintf("group %q already exists", p.Group)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.CreatedGroup(p.Group)))

	case protocol.TypeGroupDelete:
		switch err := h.registry.DeleteGroup(p.Group, c.UUID()); {
		case errors.Is(err, registry.ErrNoSuchGroup):
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchGroup, fmt.Sprintf("no such group %q", p.Group)))
		case errors.Is(err, registry.ErrNotOwner):
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeUnauthorized, fmt.Sprintf("group %q is owned by another client", p.Group)))
		default:
			h.reply(c, seq, protocol.StatusReply(seq, protocol.DeletedGroup(p.Group)))
		}

	case protocol.TypeFetchGroupSubscribers:
		members, err := h.registry.GroupMembers(p.Group)
		if err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchGroup, fmt.Sprintf("no such group %q", p.Group)))
			return
		}
		h.reply(c, seq, protocol.GroupSubscribers{
			Type:    protocol.TypeGroupSubscribers,
			Seq:     protocol.Seq(seq),
			Group:   p.Group,
			Clients: members,
		})

	case protocol.TypeFetchClients:
		h.reply(c, seq, protocol.Clients{
			Type:    protocol.TypeClients,
			Seq:     protocol.Seq(seq),
			Clients: h.registry.Clients(),
		})

	case protocol.TypeFetchGroups:
		h.reply(c, seq, protocol.Groups{
			Type:   protocol.TypeGroups,
			Seq:    protocol.Seq(seq),
			Groups: h.registry.Groups(),
		})

	case protocol.TypeFetchSubscriptions:
		h.reply(c, seq, protocol.Subscriptions{
			Type:   protocol.TypeSubscriptions,
			Seq:    protocol.Seq(seq),
			Groups: h.registry.Subscriptions(c.UUID()),
		})

	default:
		h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeUnsupported, fmt.Sprintf("unsupported payload type %q", p.Type)))
	}
}

// routeMessage stamps the origin and fans the envelope out per target.
// The data field is never decoded or mutated.
func (h *Handler) routeMessage(c *registry.Client, seq int, in protocol.RawMessage) {
	if in.Target == nil {
		h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeProtocol, "message target is required"))
		return
	}

	origin := protocol.Origin{UUID: c.UUID(), Name: c.Name()}
	if in.Target.Type == protocol.TargetGroup {
		origin.Group = in.Target.Group
	}
	frame, err := protocol.Encode(protocol.RawMessage{
		Type:   protocol.TypeMessage,
		Target: in.Target,
		Origin: &origin,
		Data:   in.Data,
	})
	if err != nil {
		h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeProtocol, err.Error()))
		return
	}
	metrics.MessagesRouted.WithLabelValues(in.Target.Type).Inc()

	switch in.Target.Type {
	case protocol.TargetName:
		if err := h.registry.SendToName(in.Target.Name, frame); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchName, fmt.Sprintf("no client named %q", in.Target.Name)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.MessageSent()))

	case protocol.TargetUUID:
		id, err := uuid.Parse(in.Target.UUID)
		if err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchUUID, fmt.Sprintf("invalid uuid %q", in.Target.UUID)))
			return
		}
		if err := h.registry.SendToUUID(id, frame); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchUUID, fmt.Sprintf("no client with uuid %q", in.Target.UUID)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.MessageSent()))

	case protocol.TargetGroup:
		if err := h.registry.BroadcastGroup(in.Target.Group, frame); err != nil {
			h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeNoSuchGroup, fmt.Sprintf("no such group %q", in.Target.Group)))
			return
		}
		h.reply(c, seq, protocol.StatusReply(seq, protocol.MessageSent()))

	case protocol.TargetAll:
		h.registry.BroadcastAll(frame)
		h.reply(c, seq, protocol.StatusReply(seq, protocol.MessageSent()))

	default:
		h.reply(c, seq, protocol.ErrorReply(seq, protocol.ErrCodeProtocol, fmt.Sprintf("unknown target type %q", in.Target.Type)))
	}
}

// reply encodes a payload and enqueues it to the sender's own mailbox.
func (h *Handler) reply(c *registry.Client, seq int, payload any) {
	frame, err := protocol.Encode(payload)
	if err != nil {
		slog.Error("encode reply", "uuid", c.UUID(), "seq", seq, "err", err)
		return
	}
	c.Mailbox().Push(frame)
}
