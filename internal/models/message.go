package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message kinds. An omitted kind defaults to text.
const (
	MessageTypeText    = "text"
	MessageTypeImage   = "image"
	MessageTypeFile    = "file"
	MessageTypeEmoji   = "emoji"
	MessageTypeSticker = "sticker"
)

// Message is a persisted chat event. Sender and Attachments are preloaded
// before the record is handed to clients, so the delivered shape needs no
// further round-trip.
type Message struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	Type    string `gorm:"not null;default:text" json:"type"`

	IsEdited bool       `gorm:"default:false" json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	// SenderID must reference a verified participant of the room at creation
	// time; the pipeline enforces this before persisting.
	SenderID string `gorm:"not null;index:idx_room_sender" json:"senderId"`
	Sender   *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	ChatRoomID string `gorm:"not null;index:idx_room_sender" json:"chatRoomId"`

	Attachments []MessageAttachment `gorm:"foreignKey:MessageID" json:"attachments"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate generates a new UUID for the message if the ID has not been
// set.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// MessageAttachment is an uploaded file record. MessageID stays nil from
// upload time until the file is linked to a sent message.
type MessageAttachment struct {
	ID           string  `gorm:"primaryKey" json:"id"`
	Filename     string  `json:"filename"`
	OriginalName string  `json:"originalName"`
	MimeType     string  `json:"mimeType"`
	Size         int64   `json:"size"`
	URL          string  `json:"url"`
	MessageID    *string `gorm:"index" json:"messageId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate generates a new UUID for the attachment if the ID has not been
// set.
func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
