package models

import (
	"encoding/json"
	"time"
)

// Inbound socket events.
const (
	EventJoinRoom    = "join:room"
	EventLeaveRoom   = "leave:room"
	EventSendMessage = "send:message"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
	EventMessageRead = "message:read"
)

// Outbound socket events. Typing and read-receipt fanout reuses the inbound
// event names.
const (
	EventAck         = "ack"
	EventMessageNew  = "message:new"
	EventUserJoined  = "user:joined"
	EventUserLeft    = "user:left"
	EventUserOnline  = "user:online"
	EventUserOffline = "user:offline"
)

// ClientEvent is one frame read from a socket. Data stays raw until the hub
// knows which payload shape the event carries.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is one frame written to a socket.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Ack answers a request/response-style event on the originating connection
// only. Fire-and-forget events (typing) are never acked.
type Ack struct {
	Event   string `json:"event"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JoinRoomPayload carries join:room and leave:room requests.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendMessagePayload carries send:message requests. Attachments holds the ids
// of previously-uploaded files.
type SendMessagePayload struct {
	RoomID      string   `json:"roomId"`
	Content     string   `json:"content"`
	Type        string   `json:"type,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// TypingPayload carries typing:start, typing:stop, and message:read requests.
type TypingPayload struct {
	RoomID string `json:"roomId"`
}

// RoomEventPayload announces user:joined, user:left, and typing events to the
// rest of a room.
type RoomEventPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// PresencePayload announces user:online and user:offline transitions.
type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ReadReceiptPayload announces message:read to the rest of a room.
type ReadReceiptPayload struct {
	UserID string    `json:"userId"`
	RoomID string    `json:"roomId"`
	ReadAt time.Time `json:"readAt"`
}

// NotificationEvent is the broker payload for downstream push-notification
// consumers. MessageID and RoomID are enough for a consumer to deduplicate
// redeliveries.
type NotificationEvent struct {
	MessageID      string `json:"messageId"`
	RoomID         string `json:"chatRoomId"`
	SenderID       string `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
	HasAttachments bool   `json:"hasAttachments"`
}

// ReadEvent is the broker payload recording a read receipt.
type ReadEvent struct {
	RoomID string    `json:"chatRoomId"`
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}
