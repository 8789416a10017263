// Package storage persists chat data in PostgreSQL via GORM and exposes the
// queries the real-time layer and the REST handlers share.
package storage

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"chatwire/backend/internal/models"
)

// Service is the concrete storage backend. It satisfies the room, message,
// and attachment interfaces of the chathub package.
type Service struct {
	DB        *gorm.DB
	Redis     *redis.Client
	UploadDir string
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb, UploadDir: "./uploads"}
}

// Authorize reports whether the user may act in the room. It distinguishes a
// missing or inactive room from a room the user is simply not a member of.
func (s *Service) Authorize(ctx context.Context, roomID, userID string) error {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("id = ? AND is_active = ?", roomID, true).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return err
	}

	var count int64
	err = s.DB.WithContext(ctx).
		Table("chat_room_participants").
		Where("chat_room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return models.ErrForbidden
	}
	return nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Preload("Participants").
		First(&room, "id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListParticipants returns the users that belong to a room.
func (s *Service) ListParticipants(ctx context.Context, roomID string) ([]models.User, error) {
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Participants, nil
}

func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.ChatRoomID, err)
		return err
	}
	return nil
}

// GetMessageWithRelations loads a message together with its sender and
// attachments, the shape clients receive on the wire.
func (s *Service) GetMessageWithRelations(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).
		Preload("Sender").
		Preload("Attachments").
		First(&msg, "id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (s *Service) UpdateMessage(ctx context.Context, msg *models.Message) error {
	return s.DB.WithContext(ctx).Save(msg).Error
}

func (s *Service) DeleteMessage(ctx context.Context, msg *models.Message) error {
	return s.DB.WithContext(ctx).Delete(&models.Message{}, "id = ?", msg.ID).Error
}

// ListRoomMessages returns a page of a room's history in chronological order.
func (s *Service) ListRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Preload("Sender").
		Preload("Attachments").
		Where("chat_room_id = ?", roomID).
		Order("created_at asc").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ResolveAttachmentsByIDs returns the attachments that exist among the given
// ids. Unknown ids are simply absent from the result.
func (s *Service) ResolveAttachmentsByIDs(ctx context.Context, ids []string) ([]models.MessageAttachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var attachments []models.MessageAttachment
	err := s.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// LinkAttachments attaches previously uploaded files to a message.
func (s *Service) LinkAttachments(ctx context.Context, messageID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).
		Model(&models.MessageAttachment{}).
		Where("id IN ?", ids).
		Update("message_id", messageID).Error
}

// DeleteAttachment removes an attachment record and its file on disk. A
// missing file is not an error; the record is removed regardless.
func (s *Service) DeleteAttachment(ctx context.Context, attachmentID string) error {
	var att models.MessageAttachment
	err := s.DB.WithContext(ctx).First(&att, "id = ?", attachmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return err
	}

	if name, ok := strings.CutPrefix(att.URL, "/uploads/"); ok && name != "" {
		path := filepath.Join(s.UploadDir, filepath.Base(name))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARNING: removing attachment file %s: %v", path, err)
		}
	}

	return s.DB.WithContext(ctx).Delete(&models.MessageAttachment{}, "id = ?", attachmentID).Error
}
