package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// mockNotificationStore is a testify mock for store.NotificationStore.
type mockNotificationStore struct {
	mock.Mock
}

func (m *mockNotificationStore) Create(ctx context.Context, n *types.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationStore) GetByID(ctx context.Context, id int64) (*types.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Notification), args.Error(1)
}

func (m *mockNotificationStore) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int, status *bool) ([]types.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Notification), args.Error(1)
}

func (m *mockNotificationStore) GetUnread(ctx context.Context, userID uuid.UUID) ([]types.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Notification), args.Error(1)
}

func (m *mockNotificationStore) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id int64, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *mockNotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// capturingPublisher forwards every published event onto a channel so tests
// can wait for asynchronous pushes.
type capturingPublisher struct {
	events chan types.Event
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{events: make(chan types.Event, 16)}
}

func (p *capturingPublisher) Publish(ctx context.Context, event types.Event) error {
	p.events <- event
	return nil
}

func (p *capturingPublisher) waitForEvent(t *testing.T) types.Event {
	t.Helper()
	select {
	case e := <-p.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("expected a push event, got none")
		return types.Event{}
	}
}

func (p *capturingPublisher) assertNoEvent(t *testing.T) {
	t.Helper()
	select {
	case e := <-p.events:
		t.Fatalf("expected no push event, got %s", e.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestPool(t *testing.T) *WorkerPool {
	t.Helper()
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(1, 16))
	pool.Start()
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	return pool
}

func TestNotificationService_Create(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	userID := uuid.New()
	mockStore.On("Create", mock.Anything, mock.AnythingOfType("*types.Notification")).
		Run(func(args mock.Arguments) {
			n := args.Get(1).(*types.Notification)
			n.ID = 42
			n.CreatedAt = time.Now()
		}).
		Return(nil)

	created, err := svc.Create(context.Background(), types.CreateNotificationRequest{
		UserID: userID,
		Title:  "Booking confirmed",
		Body:   "Your stay at Seaside Loft is confirmed.",
		Type:   types.NotificationTypeBooking,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)

	event := publisher.waitForEvent(t)
	assert.Equal(t, types.EventTypeNotificationCreated, event.Type)
	assert.Equal(t, userID.String(), event.RecipientID)

	var pushed types.Notification
	require.NoError(t, json.Unmarshal(event.Payload, &pushed))
	assert.Equal(t, int64(42), pushed.ID)
	assert.Equal(t, "Booking confirmed", pushed.Title)

	mockStore.AssertExpectations(t)
}

func TestNotificationService_Create_InvalidType(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	_, err := svc.Create(context.Background(), types.CreateNotificationRequest{
		UserID: uuid.New(),
		Title:  "t",
		Body:   "b",
		Type:   "carrier-pigeon",
	})
	assert.Error(t, err)
	publisher.assertNoEvent(t)
	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNotificationService_Create_StoreFailure(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	mockStore.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := svc.Create(context.Background(), types.CreateNotificationRequest{
		UserID: uuid.New(),
		Title:  "t",
		Body:   "b",
		Type:   types.NotificationTypeSystem,
	})
	require.Error(t, err)

	// No push goes out when persistence failed.
	publisher.assertNoEvent(t)
}

func TestNotificationService_GetUnreadCount_CacheHit(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	redisClient, redisMock := redismock.NewClientMock()
	svc := NewNotificationService(mockStore, publisher, pool, redisClient, 30*time.Second)

	userID := uuid.New()
	redisMock.ExpectGet(unreadCountKey(userID)).SetVal("7")

	count, err := svc.GetUnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	// Store is never hit on a cache hit.
	mockStore.AssertNotCalled(t, "GetUnreadCount", mock.Anything, mock.Anything)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestNotificationService_GetUnreadCount_CacheMiss(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	redisClient, redisMock := redismock.NewClientMock()
	svc := NewNotificationService(mockStore, publisher, pool, redisClient, 30*time.Second)

	userID := uuid.New()
	redisMock.ExpectGet(unreadCountKey(userID)).RedisNil()
	mockStore.On("GetUnreadCount", mock.Anything, userID).Return(int64(3), nil)
	redisMock.ExpectSet(unreadCountKey(userID), int64(3), 30*time.Second).SetVal("OK")

	count, err := svc.GetUnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	mockStore.AssertExpectations(t)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestNotificationService_GetUnreadCount_CacheUnavailable(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	redisClient, redisMock := redismock.NewClientMock()
	svc := NewNotificationService(mockStore, publisher, pool, redisClient, 30*time.Second)

	userID := uuid.New()
	redisMock.ExpectGet(unreadCountKey(userID)).SetErr(assert.AnError)
	mockStore.On("GetUnreadCount", mock.Anything, userID).Return(int64(5), nil)
	redisMock.ExpectSet(unreadCountKey(userID), int64(5), 30*time.Second).SetErr(assert.AnError)

	// Cache failures fall through to the store.
	count, err := svc.GetUnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestNotificationService_MarkRead(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	redisClient, redisMock := redismock.NewClientMock()
	svc := NewNotificationService(mockStore, publisher, pool, redisClient, 30*time.Second)

	userID := uuid.New()
	mockStore.On("MarkRead", mock.Anything, int64(42), userID).Return(nil)
	redisMock.ExpectDel(unreadCountKey(userID)).SetVal(1)

	require.NoError(t, svc.MarkRead(context.Background(), 42, userID))

	event := publisher.waitForEvent(t)
	assert.Equal(t, types.EventTypeNotificationRead, event.Type)
	assert.Equal(t, userID.String(), event.RecipientID)

	var receipt types.ReadReceiptPayload
	require.NoError(t, json.Unmarshal(event.Payload, &receipt))
	assert.Equal(t, int64(42), receipt.RecordID)
	assert.Equal(t, userID.String(), receipt.ReaderID)
	assert.False(t, receipt.All)
}

func TestNotificationService_MarkRead_NotFound(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	userID := uuid.New()
	mockStore.On("MarkRead", mock.Anything, int64(99), userID).Return(store.ErrNotFound)

	err := svc.MarkRead(context.Background(), 99, userID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	publisher.assertNoEvent(t)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	userID := uuid.New()
	mockStore.On("MarkAllRead", mock.Anything, userID).Return(int64(4), nil)

	affected, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)

	event := publisher.waitForEvent(t)
	assert.Equal(t, types.EventTypeNotificationRead, event.Type)

	var receipt types.ReadReceiptPayload
	require.NoError(t, json.Unmarshal(event.Payload, &receipt))
	assert.True(t, receipt.All)
}

func TestNotificationService_MarkAllRead_NothingUnread(t *testing.T) {
	mockStore := new(mockNotificationStore)
	publisher := newCapturingPublisher()
	pool := newTestPool(t)
	svc := NewNotificationService(mockStore, publisher, pool, nil, 30*time.Second)

	userID := uuid.New()
	mockStore.On("MarkAllRead", mock.Anything, userID).Return(int64(0), nil)

	affected, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, affected)
	publisher.assertNoEvent(t)
}
