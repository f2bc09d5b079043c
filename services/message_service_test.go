package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// mockMessageStore is a testify mock for store.MessageStore.
type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) Create(ctx context.Context, msg *types.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageStore) GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]types.Message, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Message), args.Error(1)
}

func (m *mockMessageStore) GetUnread(ctx context.Context, receiverID uuid.UUID) ([]types.Message, error) {
	args := m.Called(ctx, receiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Message), args.Error(1)
}

func (m *mockMessageStore) MarkRead(ctx context.Context, id int64, receiverID uuid.UUID) error {
	args := m.Called(ctx, id, receiverID)
	return args.Error(0)
}

func (m *mockMessageStore) MarkConversationRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

// waitForEvents collects n pushed events, in any order.
func waitForEvents(t *testing.T, p *capturingPublisher, n int) []types.Event {
	t.Helper()
	events := make([]types.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, p.waitForEvent(t))
	}
	return events
}

func recipientsOf(events []types.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.RecipientID)
	}
	return ids
}

func TestMessageService_Send(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	senderID := uuid.New()
	receiverID := uuid.New()

	mockStore.On("Create", mock.Anything, mock.AnythingOfType("*types.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*types.Message)
			msg.ID = 7
			msg.CreatedAt = time.Now()
		}).
		Return(nil)

	sent, err := svc.Send(context.Background(), senderID, types.SendMessageRequest{
		ReceiverID: receiverID,
		Content:    "  Is the loft still available next weekend?  ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), sent.ID)
	assert.Equal(t, "Is the loft still available next weekend?", sent.Content)

	// The receiver and the sender's other sessions both get the event.
	events := waitForEvents(t, publisher, 2)
	for _, e := range events {
		assert.Equal(t, types.EventTypeMessageCreated, e.Type)

		var pushed types.Message
		require.NoError(t, json.Unmarshal(e.Payload, &pushed))
		assert.Equal(t, int64(7), pushed.ID)
	}
	assert.ElementsMatch(t, []string{receiverID.String(), senderID.String()}, recipientsOf(events))

	mockStore.AssertExpectations(t)
}

func TestMessageService_Send_Validation(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	senderID := uuid.New()

	_, err := svc.Send(context.Background(), senderID, types.SendMessageRequest{
		ReceiverID: uuid.New(),
		Content:    "   ",
	})
	assert.Error(t, err, "blank content is rejected")

	_, err = svc.Send(context.Background(), senderID, types.SendMessageRequest{
		ReceiverID: senderID,
		Content:    "hello me",
	})
	assert.Error(t, err, "self-send is rejected")

	publisher.assertNoEvent(t)
	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_Send_StoreFailure(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	mockStore.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := svc.Send(context.Background(), uuid.New(), types.SendMessageRequest{
		ReceiverID: uuid.New(),
		Content:    "hello",
	})
	require.Error(t, err)
	publisher.assertNoEvent(t)
}

func TestMessageService_MarkRead(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	receiverID := uuid.New()
	mockStore.On("MarkRead", mock.Anything, int64(11), receiverID).Return(nil)

	require.NoError(t, svc.MarkRead(context.Background(), 11, receiverID))

	event := publisher.waitForEvent(t)
	assert.Equal(t, types.EventTypeMessageRead, event.Type)
	assert.Equal(t, receiverID.String(), event.RecipientID)

	var receipt types.ReadReceiptPayload
	require.NoError(t, json.Unmarshal(event.Payload, &receipt))
	assert.Equal(t, int64(11), receipt.RecordID)
}

func TestMessageService_MarkRead_Forbidden(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	receiverID := uuid.New()
	mockStore.On("MarkRead", mock.Anything, int64(11), receiverID).Return(store.ErrForbidden)

	err := svc.MarkRead(context.Background(), 11, receiverID)
	assert.ErrorIs(t, err, store.ErrForbidden)
	publisher.assertNoEvent(t)
}

func TestMessageService_MarkConversationRead(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	senderID := uuid.New()
	receiverID := uuid.New()
	mockStore.On("MarkConversationRead", mock.Anything, senderID, receiverID).Return(int64(3), nil)

	affected, err := svc.MarkConversationRead(context.Background(), senderID, receiverID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	// Both sides of the conversation learn about the read.
	events := waitForEvents(t, publisher, 2)
	assert.ElementsMatch(t, []string{receiverID.String(), senderID.String()}, recipientsOf(events))
	for _, e := range events {
		assert.Equal(t, types.EventTypeMessageRead, e.Type)
	}
}

func TestMessageService_MarkConversationRead_NothingUnread(t *testing.T) {
	mockStore := new(mockMessageStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewMessageService(mockStore, nil, publisher, pool)

	senderID := uuid.New()
	receiverID := uuid.New()
	mockStore.On("MarkConversationRead", mock.Anything, senderID, receiverID).Return(int64(0), nil)

	affected, err := svc.MarkConversationRead(context.Background(), senderID, receiverID)
	require.NoError(t, err)
	assert.Zero(t, affected)
	publisher.assertNoEvent(t)
}
