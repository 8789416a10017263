package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // needed for pq.StringArray
	"gorm.io/gorm"
)

// User is a registered account. Role names are denormalized into a text array
// so handlers and workers can check them without a join.
type User struct {
	ID       string         `gorm:"primaryKey" json:"id"`
	Email    string         `gorm:"uniqueIndex;not null" json:"email"`
	Username string         `gorm:"not null" json:"username"`
	Roles    pq.StringArray `gorm:"type:text[]" json:"roles,omitempty"`

	// TelegramChatID links the account to a Telegram chat for push
	// notifications. Zero means no link.
	TelegramChatID int64 `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that generates a new UUID for the user
// if the ID has not been set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Identity is the authenticated principal carried by one or more live
// connections (multi-device). It is passed by value and owned by no
// component.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
