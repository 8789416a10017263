package chathub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chatwire/backend/internal/models"
)

// mockClient records every event delivered to it. writable=false simulates a
// connection whose outbound buffer is full.
type mockClient struct {
	id       string
	identity models.Identity
	writable bool

	mu     sync.Mutex
	events []models.ServerEvent
}

func newMockClient(userID, username string) *mockClient {
	return &mockClient{
		id:       uuid.NewString(),
		identity: models.Identity{ID: userID, Email: username + "@example.com", Username: username},
		writable: true,
	}
}

func (c *mockClient) ConnID() string            { return c.id }
func (c *mockClient) Identity() models.Identity { return c.identity }
func (c *mockClient) Run()                      {}
func (c *mockClient) Close()                    {}

func (c *mockClient) TrySend(ev models.ServerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.writable {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

// drain returns and clears everything delivered so far.
func (c *mockClient) drain() []models.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

// eventsNamed returns the delivered events matching the given name, without
// clearing the log.
func (c *mockClient) eventsNamed(name string) []models.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.ServerEvent
	for _, ev := range c.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) Authorize(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil && msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return args.Error(0)
}

func (m *MockMessageStore) GetMessageWithRelations(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if msg, ok := args.Get(0).(*models.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageStore) UpdateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageStore) DeleteMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) ResolveAttachmentsByIDs(ctx context.Context, ids []string) ([]models.MessageAttachment, error) {
	args := m.Called(ctx, ids)
	if atts, ok := args.Get(0).([]models.MessageAttachment); ok {
		return atts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttachmentStore) LinkAttachments(ctx context.Context, messageID string, ids []string) error {
	args := m.Called(ctx, messageID, ids)
	return args.Error(0)
}

func (m *MockAttachmentStore) DeleteAttachment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}
