package chathub

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatwire/backend/internal/models"
)

// Broker routing keys on the chat.events exchange.
const (
	RouteMessageNotification = "message.notification"
	RouteMessagesRead        = "messages.read"
)

// RoomService resolves room existence and membership. Backed by the chat-room
// storage; the hub never caches its answers.
type RoomService interface {
	// Authorize reports whether the user may act in the room: ErrNotFound if
	// the room does not exist or is inactive, ErrForbidden if the user is not
	// a participant, nil otherwise.
	Authorize(ctx context.Context, roomID, userID string) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageWithRelations(ctx context.Context, id string) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, msg *models.Message) error
}

// AttachmentStore resolves previously-uploaded files and cleans them up.
type AttachmentStore interface {
	ResolveAttachmentsByIDs(ctx context.Context, ids []string) ([]models.MessageAttachment, error)
	LinkAttachments(ctx context.Context, messageID string, ids []string) error
	DeleteAttachment(ctx context.Context, id string) error
}

// EventPublisher hands events to the durable broker for downstream consumers
// (push-notification workers). Publish failures degrade gracefully; a send is
// complete once persisted and fanned out.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Pipeline validates, persists, and fans out chat messages. Authorization and
// persistence run before any state is mutated or any event leaves the
// process, so a failed step leaves nothing partial behind.
type Pipeline struct {
	rooms     RoomService
	messages  MessageStore
	files     AttachmentStore
	fanout    *Fanout
	publisher EventPublisher
}

// NewPipeline wires the message pipeline to its collaborators.
func NewPipeline(rooms RoomService, messages MessageStore, files AttachmentStore, fanout *Fanout, publisher EventPublisher) *Pipeline {
	return &Pipeline{
		rooms:     rooms,
		messages:  messages,
		files:     files,
		fanout:    fanout,
		publisher: publisher,
	}
}

// Send persists a message and fans it out to the room, excluding origin (the
// sender's own socket gets the populated record in the ack instead). The
// returned message carries sender and attachment details, so clients need no
// further round-trip. Nothing is fanned out or published unless persistence
// succeeded.
func (p *Pipeline) Send(ctx context.Context, roomID string, sender models.Identity, content, kind string, attachmentIDs []string, origin Client) (*models.Message, error) {
	if err := p.rooms.Authorize(ctx, roomID, sender.ID); err != nil {
		return nil, err
	}

	if kind == "" {
		kind = models.MessageTypeText
	}
	msg := &models.Message{
		Content:    content,
		Type:       kind,
		SenderID:   sender.ID,
		ChatRoomID: roomID,
	}
	if err := p.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if len(attachmentIDs) > 0 {
		p.linkAttachments(ctx, msg.ID, attachmentIDs)
	}

	full, err := p.messages.GetMessageWithRelations(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload message %s: %w", msg.ID, err)
	}

	p.fanout.ToRoom(roomID, models.ServerEvent{Event: models.EventMessageNew, Data: full}, origin)

	p.publishNotification(ctx, full, len(attachmentIDs) > 0)
	return full, nil
}

// linkAttachments binds the resolvable uploads to the message. Unresolvable
// ids are dropped from the link set rather than failing the send.
func (p *Pipeline) linkAttachments(ctx context.Context, messageID string, attachmentIDs []string) {
	resolved, err := p.files.ResolveAttachmentsByIDs(ctx, attachmentIDs)
	if err != nil {
		log.Printf("ERROR: resolving attachments for message %s: %v", messageID, err)
		return
	}
	if len(resolved) < len(attachmentIDs) {
		log.Printf("WARNING: message %s: %d of %d attachment ids resolved, rest dropped", messageID, len(resolved), len(attachmentIDs))
	}
	if len(resolved) == 0 {
		return
	}
	ids := make([]string, 0, len(resolved))
	for _, a := range resolved {
		ids = append(ids, a.ID)
	}
	if err := p.files.LinkAttachments(ctx, messageID, ids); err != nil {
		log.Printf("ERROR: linking attachments to message %s: %v", messageID, err)
	}
}

func (p *Pipeline) publishNotification(ctx context.Context, msg *models.Message, hasAttachments bool) {
	senderName := ""
	if msg.Sender != nil {
		senderName = msg.Sender.Username
	}
	ev := models.NotificationEvent{
		MessageID:      msg.ID,
		RoomID:         msg.ChatRoomID,
		SenderID:       msg.SenderID,
		SenderUsername: senderName,
		Content:        msg.Content,
		Type:           msg.Type,
		HasAttachments: hasAttachments,
	}
	if err := p.publisher.Publish(ctx, RouteMessageNotification, ev); err != nil {
		// A message counts as sent once persisted and fanned out;
		// notification delivery is best-effort.
		log.Printf("WARNING: publish %s for message %s: %v", RouteMessageNotification, msg.ID, err)
	}
}

// Edit updates a message's content. Only the original sender may edit. The
// edited record is fanned out to the room on the same path as message:new;
// every live member, including the sender's other devices, sees the update.
func (p *Pipeline) Edit(ctx context.Context, messageID string, editor models.Identity, content string) (*models.Message, error) {
	msg, err := p.messages.GetMessageWithRelations(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editor.ID {
		return nil, fmt.Errorf("only the sender can edit message %s: %w", messageID, models.ErrForbidden)
	}

	now := time.Now()
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := p.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message %s: %w", messageID, err)
	}

	p.fanout.ToRoom(msg.ChatRoomID, models.ServerEvent{Event: models.EventMessageNew, Data: msg}, nil)
	return msg, nil
}

// Delete removes a message after cleaning up its attachment files.
// Only the original sender may delete. Individual attachment failures are
// logged without aborting the delete.
func (p *Pipeline) Delete(ctx context.Context, messageID string, requester models.Identity) error {
	msg, err := p.messages.GetMessageWithRelations(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requester.ID {
		return fmt.Errorf("only the sender can delete message %s: %w", messageID, models.ErrForbidden)
	}

	for _, att := range msg.Attachments {
		if err := p.files.DeleteAttachment(ctx, att.ID); err != nil {
			log.Printf("ERROR: deleting attachment %s of message %s: %v", att.ID, messageID, err)
		}
	}
	if err := p.messages.DeleteMessage(ctx, msg); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// MarkRead records a read receipt for the room: the receipt is published for
// downstream consumers and fanned out to the other live members. There is no
// read_receipts table.
func (p *Pipeline) MarkRead(ctx context.Context, roomID string, reader models.Identity, origin Client) (time.Time, error) {
	if err := p.rooms.Authorize(ctx, roomID, reader.ID); err != nil {
		return time.Time{}, err
	}

	readAt := time.Now()
	ev := models.ReadEvent{RoomID: roomID, UserID: reader.ID, ReadAt: readAt}
	if err := p.publisher.Publish(ctx, RouteMessagesRead, ev); err != nil {
		log.Printf("WARNING: publish %s for room %s: %v", RouteMessagesRead, roomID, err)
	}

	p.fanout.ToRoom(roomID, models.ServerEvent{
		Event: models.EventMessageRead,
		Data:  models.ReadReceiptPayload{UserID: reader.ID, RoomID: roomID, ReadAt: readAt},
	}, origin)
	return readAt, nil
}
