package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room types.
const (
	RoomTypeDirect = "direct"
	RoomTypeGroup  = "group"
)

// ChatRoom is the persisted room record. The hub never caches room metadata;
// it consults the participant set for authorization on every join and send.
type ChatRoom struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `json:"name,omitempty"`
	Type        string `gorm:"not null;default:direct" json:"type"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`
	CreatedBy   string `json:"createdBy"`

	Participants []User `gorm:"many2many:chat_room_participants" json:"participants,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate generates a new UUID for the room if the ID has not been set.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
