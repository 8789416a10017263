package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"chatwire/backend/internal/config"
	"chatwire/backend/internal/models"
)

// Hub owns the shared state of the real-time layer and coordinates the
// registry, room index, trackers, fanout, and pipeline. One Hub serves the
// whole process; every handler receives the same instance by reference.
type Hub struct {
	Registry *Registry
	Rooms    *RoomIndex
	Presence *PresenceTracker
	Typing   *TypingTracker
	Fanout   *Fanout
	Pipeline *Pipeline

	roomSvc RoomService
}

// NewHub constructs the hub and all of its shared state.
func NewHub(store TTLStore, rooms RoomService, messages MessageStore, files AttachmentStore, publisher EventPublisher) *Hub {
	registry := NewRegistry()
	index := NewRoomIndex()
	fanout := NewFanout(registry, index)
	return &Hub{
		Registry: registry,
		Rooms:    index,
		Presence: NewPresenceTracker(store, config.PresenceTTL),
		Typing:   NewTypingTracker(store, config.TypingTTL),
		Fanout:   fanout,
		Pipeline: NewPipeline(rooms, messages, files, fanout, publisher),
		roomSvc:  rooms,
	}
}

// Connect registers an authenticated connection and announces the identity's
// presence to everyone else. The transport layer has already verified the
// token; an unauthenticated connection never reaches the hub.
func (h *Hub) Connect(c Client) error {
	if err := h.Registry.Register(c); err != nil {
		return err
	}

	identity := c.Identity()
	wentOnline, err := h.Presence.MarkOnline(identity.ID)
	if err != nil {
		log.Printf("ERROR: marking user %s online: %v", identity.ID, err)
	}
	if wentOnline {
		h.Fanout.BroadcastAll(models.ServerEvent{
			Event: models.EventUserOnline,
			Data:  models.PresencePayload{UserID: identity.ID, Username: identity.Username},
		}, c)
	}

	log.Printf("Client connected: %s (%s)", identity.Username, c.ConnID())
	return nil
}

// Disconnect tears a connection down. Room membership is cleared first, before
// the caller releases the transport resources, so no stale member reference
// survives into a later fanout snapshot. Safe to call on an already-gone
// connection; disconnect races are harmless no-ops.
func (h *Hub) Disconnect(c Client) {
	left := h.Rooms.RemoveAll(c)

	existed, last := h.Registry.Unregister(c)
	if !existed {
		return
	}

	identity := c.Identity()
	if last {
		wentOffline, err := h.Presence.MarkOffline(identity.ID)
		if err != nil {
			log.Printf("ERROR: marking user %s offline: %v", identity.ID, err)
		}
		if wentOffline {
			h.Fanout.BroadcastAll(models.ServerEvent{
				Event: models.EventUserOffline,
				Data:  models.PresencePayload{UserID: identity.ID, Username: identity.Username},
			}, c)
		}
	}

	log.Printf("Client disconnected: %s (%s), left %d rooms", identity.Username, c.ConnID(), len(left))
}

// HandleEvent processes one inbound frame. The read pump calls it
// synchronously, so events from one connection are handled in arrival order
// while different connections proceed concurrently. Failures are confined to
// an ack on the originating connection and never cross to other sockets.
func (h *Hub) HandleEvent(ctx context.Context, c Client, ev models.ClientEvent) {
	switch ev.Event {
	case models.EventJoinRoom:
		h.handleJoin(ctx, c, ev)
	case models.EventLeaveRoom:
		h.handleLeave(c, ev)
	case models.EventSendMessage:
		h.handleSend(ctx, c, ev)
	case models.EventTypingStart:
		h.handleTypingStart(c, ev)
	case models.EventTypingStop:
		h.handleTypingStop(c, ev)
	case models.EventMessageRead:
		h.handleMarkRead(ctx, c, ev)
	default:
		log.Printf("WARNING: connection %s sent unknown event %q", c.ConnID(), ev.Event)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c Client, ev models.ClientEvent) {
	var p models.JoinRoomPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		h.nack(c, ev.Event, models.ErrInvalid)
		return
	}

	identity := c.Identity()
	// External authorization check: blocking I/O, runs before any index
	// mutation and outside every lock.
	if err := h.roomSvc.Authorize(ctx, p.RoomID, identity.ID); err != nil {
		log.Printf("WARNING: join room %s denied for user %s: %v", p.RoomID, identity.ID, err)
		h.nack(c, ev.Event, err)
		return
	}

	h.Rooms.Join(p.RoomID, c)
	h.Fanout.ToRoom(p.RoomID, models.ServerEvent{
		Event: models.EventUserJoined,
		Data:  models.RoomEventPayload{UserID: identity.ID, Username: identity.Username, RoomID: p.RoomID},
	}, c)

	log.Printf("User %s joined room %s", identity.Username, p.RoomID)
	h.ack(c, ev.Event, "Joined room successfully", nil)
}

func (h *Hub) handleLeave(c Client, ev models.ClientEvent) {
	var p models.JoinRoomPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		h.nack(c, ev.Event, models.ErrInvalid)
		return
	}

	// No authorization re-check on leave.
	h.Rooms.Leave(p.RoomID, c)

	identity := c.Identity()
	h.Fanout.ToRoom(p.RoomID, models.ServerEvent{
		Event: models.EventUserLeft,
		Data:  models.RoomEventPayload{UserID: identity.ID, Username: identity.Username, RoomID: p.RoomID},
	}, c)

	log.Printf("User %s left room %s", identity.Username, p.RoomID)
	h.ack(c, ev.Event, "Left room successfully", nil)
}

func (h *Hub) handleSend(ctx context.Context, c Client, ev models.ClientEvent) {
	var p models.SendMessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		h.nack(c, ev.Event, models.ErrInvalid)
		return
	}

	msg, err := h.Pipeline.Send(ctx, p.RoomID, c.Identity(), p.Content, p.Type, p.Attachments, c)
	if err != nil {
		log.Printf("WARNING: send to room %s failed for connection %s: %v", p.RoomID, c.ConnID(), err)
		h.nack(c, ev.Event, err)
		return
	}
	h.ack(c, ev.Event, "", msg)
}

func (h *Hub) handleTypingStart(c Client, ev models.ClientEvent) {
	var p models.TypingPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		return // fire-and-forget: never surfaces errors to the client
	}

	identity := c.Identity()
	h.Fanout.ToRoom(p.RoomID, models.ServerEvent{
		Event: models.EventTypingStart,
		Data:  models.RoomEventPayload{UserID: identity.ID, Username: identity.Username, RoomID: p.RoomID},
	}, c)

	if err := h.Typing.Start(p.RoomID, identity.ID); err != nil {
		log.Printf("WARNING: arming typing marker for %s in room %s: %v", identity.ID, p.RoomID, err)
	}
}

func (h *Hub) handleTypingStop(c Client, ev models.ClientEvent) {
	var p models.TypingPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		return
	}

	identity := c.Identity()
	existed, err := h.Typing.Stop(p.RoomID, identity.ID)
	if err != nil {
		log.Printf("WARNING: clearing typing marker for %s in room %s: %v", identity.ID, p.RoomID, err)
		return
	}
	if !existed {
		return
	}
	h.Fanout.ToRoom(p.RoomID, models.ServerEvent{
		Event: models.EventTypingStop,
		Data:  models.RoomEventPayload{UserID: identity.ID, Username: identity.Username, RoomID: p.RoomID},
	}, c)
}

func (h *Hub) handleMarkRead(ctx context.Context, c Client, ev models.ClientEvent) {
	var p models.TypingPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil || p.RoomID == "" {
		h.nack(c, ev.Event, models.ErrInvalid)
		return
	}

	if _, err := h.Pipeline.MarkRead(ctx, p.RoomID, c.Identity(), c); err != nil {
		log.Printf("WARNING: mark read in room %s failed for connection %s: %v", p.RoomID, c.ConnID(), err)
		h.nack(c, ev.Event, err)
		return
	}
	h.ack(c, ev.Event, "", nil)
}

// ack answers a request/response event on the originating connection only.
func (h *Hub) ack(c Client, event, message string, data any) {
	ok := c.TrySend(models.ServerEvent{
		Event: models.EventAck,
		Data:  models.Ack{Event: event, Success: true, Message: message, Data: data},
	})
	if !ok {
		log.Printf("WARNING: dropping ack for %s on connection %s: not writable", event, c.ConnID())
	}
}

// nack reports a failure back to the originating connection with a
// human-readable reason.
func (h *Hub) nack(c Client, event string, err error) {
	c.TrySend(models.ServerEvent{
		Event: models.EventAck,
		Data:  models.Ack{Event: event, Success: false, Message: userMessage(err)},
	})
}

// userMessage maps an error onto the reason string included in acks. Errors
// outside the taxonomy stay opaque to clients.
func userMessage(err error) string {
	for _, known := range []error{
		models.ErrUnauthorized,
		models.ErrForbidden,
		models.ErrNotFound,
		models.ErrConflict,
		models.ErrUnavailable,
		models.ErrInvalid,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return "internal error"
}
