// Package notifier delivers push notifications for chat messages over
// Telegram. It consumes the notification queue and pings room participants
// who are offline and have a Telegram chat linked.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatwire/backend/internal/broker"
	"chatwire/backend/internal/models"
)

// ParticipantSource resolves a room's members.
type ParticipantSource interface {
	ListParticipants(ctx context.Context, roomID string) ([]models.User, error)
}

// PresenceSource answers whether a user currently has a live connection.
type PresenceSource interface {
	IsOnline(userID string) (bool, error)
}

// Consumer is the queue side of the broker.
type Consumer interface {
	Consume(queue string, fn func(body []byte) error) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Service is the push-notification worker.
type Service struct {
	bot      sender
	broker   Consumer
	rooms    ParticipantSource
	presence PresenceSource
}

func NewService(token string, consumer Consumer, rooms ParticipantSource, presence PresenceSource) (*Service, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating Telegram bot: %w", err)
	}
	log.Printf("Notifier authorized as @%s", bot.Self.UserName)
	return &Service{bot: bot, broker: consumer, rooms: rooms, presence: presence}, nil
}

// Run consumes the notification queue until the broker channel closes.
func (s *Service) Run() error {
	return s.broker.Consume(broker.QueueMessageNotifications, s.handle)
}

func (s *Service) handle(body []byte) error {
	var ev models.NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decoding notification: %w", err)
	}
	// The queue also receives read receipts via the messages.* binding;
	// those carry no message id and need no push.
	if ev.MessageID == "" || ev.RoomID == "" {
		return nil
	}

	participants, err := s.rooms.ListParticipants(context.Background(), ev.RoomID)
	if err != nil {
		return fmt.Errorf("resolving participants of room %s: %w", ev.RoomID, err)
	}

	text := ev.SenderUsername + ": " + ev.Content
	if ev.HasAttachments {
		text += " [attachment]"
	}

	for _, user := range participants {
		if user.ID == ev.SenderID || user.TelegramChatID == 0 {
			continue
		}
		online, err := s.presence.IsOnline(user.ID)
		if err != nil {
			log.Printf("WARNING: checking presence of %s: %v", user.ID, err)
			continue
		}
		if online {
			continue
		}
		if _, err := s.bot.Send(tgbotapi.NewMessage(user.TelegramChatID, text)); err != nil {
			log.Printf("ERROR: sending Telegram notification to %s: %v", user.ID, err)
		}
	}
	return nil
}
