package chathub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatwire/backend/internal/models"
)

func newTestHub(t *testing.T) (*Hub, *MockRoomService, *MockMessageStore, *MockPublisher) {
	t.Helper()
	store := NewMemoryTTLStore()
	t.Cleanup(store.Close)

	rooms := new(MockRoomService)
	messages := new(MockMessageStore)
	files := new(MockAttachmentStore)
	publisher := new(MockPublisher)
	return NewHub(store, rooms, messages, files, publisher), rooms, messages, publisher
}

func frame(t *testing.T, event string, payload any) models.ClientEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.ClientEvent{Event: event, Data: data}
}

func lastAck(t *testing.T, c *mockClient) models.Ack {
	t.Helper()
	acks := c.eventsNamed(models.EventAck)
	require.NotEmpty(t, acks)
	ack, ok := acks[len(acks)-1].Data.(models.Ack)
	require.True(t, ok)
	return ack
}

func TestHub_SendMessageRoundTrip(t *testing.T) {
	// Arrange: alice and bob share a room
	hub, rooms, messages, publisher := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)
	messages.On("CreateMessage", mock.Anything, mock.Anything).Return(nil)
	messages.On("GetMessageWithRelations", mock.Anything, mock.Anything).
		Return(&models.Message{
			ID:         "m1",
			Content:    "hi",
			SenderID:   "u1",
			Sender:     &models.User{Username: "alice"},
			ChatRoomID: "r1",
		}, nil)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))

	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	alice.drain()
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventSendMessage, models.SendMessagePayload{RoomID: "r1", Content: "hi"}))

	// Assert: bob gets exactly one populated broadcast
	broadcasts := bob.eventsNamed(models.EventMessageNew)
	require.Len(t, broadcasts, 1)
	delivered, ok := broadcasts[0].Data.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, "u1", delivered.SenderID)
	assert.Equal(t, "alice", delivered.Sender.Username)

	// Alice gets the message in her ack, not as a broadcast
	assert.Empty(t, alice.eventsNamed(models.EventMessageNew))
	ack := lastAck(t, alice)
	assert.True(t, ack.Success)
	assert.Equal(t, models.EventSendMessage, ack.Event)
	require.IsType(t, &models.Message{}, ack.Data)
	assert.Equal(t, "m1", ack.Data.(*models.Message).ID)
}

func TestHub_SendWithoutMembershipFails(t *testing.T) {
	// Arrange
	hub, rooms, messages, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", "u1").Return(models.ErrForbidden)

	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(alice))

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventSendMessage, models.SendMessagePayload{RoomID: "r1", Content: "hi"}))

	// Assert
	ack := lastAck(t, alice)
	assert.False(t, ack.Success)
	assert.Equal(t, models.ErrForbidden.Error(), ack.Message)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestHub_JoinBroadcastsToExistingMembers(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	alice.drain()
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))

	// Assert: alice sees the join, bob sees only his ack
	joins := alice.eventsNamed(models.EventUserJoined)
	require.Len(t, joins, 1)
	payload, ok := joins[0].Data.(models.RoomEventPayload)
	require.True(t, ok)
	assert.Equal(t, "u2", payload.UserID)
	assert.Equal(t, "r1", payload.RoomID)

	assert.Empty(t, bob.eventsNamed(models.EventUserJoined))
	assert.True(t, lastAck(t, bob).Success)
}

func TestHub_JoinDeniedRoomNotJoined(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", "u1").Return(models.ErrNotFound)

	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(alice))

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))

	// Assert
	assert.False(t, lastAck(t, alice).Success)
	assert.False(t, hub.Rooms.Contains("r1", alice))
}

func TestHub_PresenceBroadcastOnConnect(t *testing.T) {
	// Arrange
	hub, _, _, _ := newTestHub(t)
	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(alice))
	alice.drain()

	// Act
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(bob))

	// Assert: alice hears about bob, bob does not hear about himself
	online := alice.eventsNamed(models.EventUserOnline)
	require.Len(t, online, 1)
	payload, ok := online[0].Data.(models.PresencePayload)
	require.True(t, ok)
	assert.Equal(t, "u2", payload.UserID)
	assert.Empty(t, bob.eventsNamed(models.EventUserOnline))
}

func TestHub_SecondConnectionDoesNotRebroadcastOnline(t *testing.T) {
	// Arrange
	hub, _, _, _ := newTestHub(t)
	watcher := newMockClient("u9", "watcher")
	require.NoError(t, hub.Connect(watcher))
	phone := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(phone))
	watcher.drain()

	// Act: second device for the same identity
	laptop := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(laptop))

	// Assert
	assert.Empty(t, watcher.eventsNamed(models.EventUserOnline))
}

func TestHub_DisconnectLastConnectionGoesOffline(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)

	watcher := newMockClient("u9", "watcher")
	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(watcher))
	require.NoError(t, hub.Connect(alice))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	watcher.drain()

	// Act
	hub.Disconnect(alice)

	// Assert: membership cleared, offline broadcast, registry emptied of alice
	assert.Empty(t, hub.Rooms.MembersOf("r1"))
	assert.Empty(t, hub.Registry.ConnectionsFor("u1"))
	offline := watcher.eventsNamed(models.EventUserOffline)
	require.Len(t, offline, 1)

	online, err := hub.Presence.IsOnline("u1")
	require.NoError(t, err)
	assert.False(t, online)

	// A second disconnect for the same client is a no-op
	hub.Disconnect(alice)
	assert.Len(t, watcher.eventsNamed(models.EventUserOffline), 1)
}

func TestHub_DisconnectWithRemainingConnectionStaysOnline(t *testing.T) {
	// Arrange
	hub, _, _, _ := newTestHub(t)
	watcher := newMockClient("u9", "watcher")
	phone := newMockClient("u1", "alice")
	laptop := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(watcher))
	require.NoError(t, hub.Connect(phone))
	require.NoError(t, hub.Connect(laptop))
	watcher.drain()

	// Act
	hub.Disconnect(phone)

	// Assert
	assert.Empty(t, watcher.eventsNamed(models.EventUserOffline))
	online, _ := hub.Presence.IsOnline("u1")
	assert.True(t, online)
}

func TestHub_TypingStartAndStop(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	alice.drain()
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventTypingStart, models.TypingPayload{RoomID: "r1"}))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventTypingStop, models.TypingPayload{RoomID: "r1"}))

	// Assert: bob sees both, alice sees neither of her own
	assert.Len(t, bob.eventsNamed(models.EventTypingStart), 1)
	assert.Len(t, bob.eventsNamed(models.EventTypingStop), 1)
	assert.Empty(t, alice.eventsNamed(models.EventTypingStart))

	typing, err := hub.Typing.IsTyping("r1", "u1")
	require.NoError(t, err)
	assert.False(t, typing)
}

func TestHub_TypingStopWithoutStartEmitsNothing(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventTypingStop, models.TypingPayload{RoomID: "r1"}))

	// Assert
	assert.Empty(t, bob.eventsNamed(models.EventTypingStop))
}

func TestHub_UnknownEventIsIgnored(t *testing.T) {
	// Arrange
	hub, _, _, _ := newTestHub(t)
	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(alice))
	alice.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, models.ClientEvent{Event: "bogus", Data: json.RawMessage(`{}`)})

	// Assert: no ack, no crash
	assert.Empty(t, alice.drain())
}

func TestHub_MalformedPayloadGetsInvalidAck(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	alice := newMockClient("u1", "alice")
	require.NoError(t, hub.Connect(alice))

	// Act
	hub.HandleEvent(context.Background(), alice, models.ClientEvent{Event: models.EventJoinRoom, Data: json.RawMessage(`{"roomId":""}`)})

	// Assert
	ack := lastAck(t, alice)
	assert.False(t, ack.Success)
	assert.Equal(t, models.ErrInvalid.Error(), ack.Message)
	rooms.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_MarkReadNotifiesOtherMembers(t *testing.T) {
	// Arrange
	hub, rooms, _, publisher := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)
	publisher.On("Publish", mock.Anything, RouteMessagesRead, mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	alice.drain()
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventMessageRead, models.TypingPayload{RoomID: "r1"}))

	// Assert
	receipts := bob.eventsNamed(models.EventMessageRead)
	require.Len(t, receipts, 1)
	payload, ok := receipts[0].Data.(models.ReadReceiptPayload)
	require.True(t, ok)
	assert.Equal(t, "u1", payload.UserID)
	assert.Empty(t, alice.eventsNamed(models.EventMessageRead))
	assert.True(t, lastAck(t, alice).Success)
	publisher.AssertExpectations(t)
}

func TestHub_LeaveRoomBroadcastsUserLeft(t *testing.T) {
	// Arrange
	hub, rooms, _, _ := newTestHub(t)
	rooms.On("Authorize", mock.Anything, "r1", mock.Anything).Return(nil)

	alice := newMockClient("u1", "alice")
	bob := newMockClient("u2", "bob")
	require.NoError(t, hub.Connect(alice))
	require.NoError(t, hub.Connect(bob))
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	hub.HandleEvent(context.Background(), bob, frame(t, models.EventJoinRoom, models.JoinRoomPayload{RoomID: "r1"}))
	alice.drain()
	bob.drain()

	// Act
	hub.HandleEvent(context.Background(), alice, frame(t, models.EventLeaveRoom, models.JoinRoomPayload{RoomID: "r1"}))

	// Assert
	assert.Len(t, bob.eventsNamed(models.EventUserLeft), 1)
	assert.False(t, hub.Rooms.Contains("r1", alice))
	assert.True(t, lastAck(t, alice).Success)
}
