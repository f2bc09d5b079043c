package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

func newMessageMock(t *testing.T) (pgxmock.PgxPoolIface, store.MessageStore) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewMessageStore(mockPool)
}

func TestMessageStore_Create(t *testing.T) {
	mockPool, s := newMessageMock(t)

	senderID := uuid.New()
	receiverID := uuid.New()
	now := time.Now().UTC()

	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(senderID, receiverID, "hello", false, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

	m := &types.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    "hello",
	}
	require.NoError(t, s.Create(context.Background(), m))

	assert.Equal(t, int64(5), m.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMessageStore_GetConversation(t *testing.T) {
	mockPool, s := newMessageMock(t)

	userA := uuid.New()
	userB := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"id", "sender_id", "receiver_id", "content", "is_read", "created_at"}).
		AddRow(int64(1), userA, userB, "hi", true, now.Add(-time.Minute)).
		AddRow(int64(2), userB, userA, "hello", false, now)

	mockPool.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs(userA, userB).
		WillReturnRows(rows)

	got, err := s.GetConversation(context.Background(), userA, userB)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID, "conversation is oldest first")
}

func TestMessageStore_MarkRead_Forbidden(t *testing.T) {
	mockPool, s := newMessageMock(t)

	readerID := uuid.New()
	actualReceiver := uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs(int64(11), readerID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT receiver_id FROM messages")).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"receiver_id"}).AddRow(actualReceiver))

	err := s.MarkRead(context.Background(), 11, readerID)
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestMessageStore_MarkRead_NotFound(t *testing.T) {
	mockPool, s := newMessageMock(t)

	readerID := uuid.New()
	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs(int64(99), readerID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT receiver_id FROM messages")).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	err := s.MarkRead(context.Background(), 99, readerID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessageStore_MarkConversationRead(t *testing.T) {
	mockPool, s := newMessageMock(t)

	senderID := uuid.New()
	receiverID := uuid.New()
	mockPool.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs(senderID, receiverID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	affected, err := s.MarkConversationRead(context.Background(), senderID, receiverID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
}
