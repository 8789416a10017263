package notifier

import (
	"context"
	"encoding/json"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/backend/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

type fakeRooms struct {
	participants []models.User
}

func (f *fakeRooms) ListParticipants(ctx context.Context, roomID string) ([]models.User, error) {
	return f.participants, nil
}

type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(userID string) (bool, error) {
	return f.online[userID], nil
}

func notification(t *testing.T, ev models.NotificationEvent) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestNotifier_NotifiesOfflineLinkedParticipants(t *testing.T) {
	// Arrange: bob is offline with Telegram linked, carol is online,
	// dave has no Telegram chat, alice is the sender
	bot := &fakeSender{}
	svc := &Service{
		bot: bot,
		rooms: &fakeRooms{participants: []models.User{
			{ID: "u1", Username: "alice", TelegramChatID: 11},
			{ID: "u2", Username: "bob", TelegramChatID: 22},
			{ID: "u3", Username: "carol", TelegramChatID: 33},
			{ID: "u4", Username: "dave"},
		}},
		presence: &fakePresence{online: map[string]bool{"u1": true, "u3": true}},
	}

	// Act
	err := svc.handle(notification(t, models.NotificationEvent{
		MessageID:      "m1",
		RoomID:         "r1",
		SenderID:       "u1",
		SenderUsername: "alice",
		Content:        "hello",
	}))

	// Assert: only bob is pinged
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(22), bot.sent[0].ChatID)
	assert.Equal(t, "alice: hello", bot.sent[0].Text)
}

func TestNotifier_MarksAttachments(t *testing.T) {
	// Arrange
	bot := &fakeSender{}
	svc := &Service{
		bot:      bot,
		rooms:    &fakeRooms{participants: []models.User{{ID: "u2", TelegramChatID: 22}}},
		presence: &fakePresence{online: map[string]bool{}},
	}

	// Act
	err := svc.handle(notification(t, models.NotificationEvent{
		MessageID:      "m1",
		RoomID:         "r1",
		SenderID:       "u1",
		SenderUsername: "alice",
		Content:        "photo",
		HasAttachments: true,
	}))

	// Assert
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "alice: photo [attachment]", bot.sent[0].Text)
}

func TestNotifier_IgnoresReadReceipts(t *testing.T) {
	// Arrange: a messages.read event has no message id
	bot := &fakeSender{}
	svc := &Service{
		bot:      bot,
		rooms:    &fakeRooms{participants: []models.User{{ID: "u2", TelegramChatID: 22}}},
		presence: &fakePresence{online: map[string]bool{}},
	}
	body, err := json.Marshal(models.ReadEvent{RoomID: "r1", UserID: "u1"})
	require.NoError(t, err)

	// Act
	err = svc.handle(body)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, bot.sent)
}

func TestNotifier_RejectsMalformedBody(t *testing.T) {
	svc := &Service{bot: &fakeSender{}}

	err := svc.handle([]byte("not json"))

	assert.Error(t, err)
}
