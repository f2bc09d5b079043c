package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// Ensure pgMessageStore implements store.MessageStore.
var _ store.MessageStore = (*pgMessageStore)(nil)

type pgMessageStore struct {
	db DB
}

// NewMessageStore creates a new PostgreSQL message store.
func NewMessageStore(db DB) store.MessageStore {
	return &pgMessageStore{db: db}
}

// Create inserts a new message. ID and CreatedAt are assigned by the database
// and written back into m.
func (s *pgMessageStore) Create(ctx context.Context, m *types.Message) error {
	query := `INSERT INTO messages (sender_id, receiver_id, content, is_read, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at`

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRow(ctx, query,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.IsRead,
		m.CreatedAt,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetConversation returns all messages between two users, oldest first.
func (s *pgMessageStore) GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]types.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, is_read, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND receiver_id = $2)
	             OR (sender_id = $2 AND receiver_id = $1)
	          ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetUnread returns unread messages addressed to the receiver, newest first.
func (s *pgMessageStore) GetUnread(ctx context.Context, receiverID uuid.UUID) ([]types.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, is_read, created_at
	          FROM messages
	          WHERE receiver_id = $1 AND is_read = FALSE
	          ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkRead marks a single message as read. Only the receiver may do so.
func (s *pgMessageStore) MarkRead(ctx context.Context, id int64, receiverID uuid.UUID) error {
	query := `UPDATE messages
	          SET is_read = TRUE
	          WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE`

	cmdTag, err := s.db.Exec(ctx, query, id, receiverID)
	if err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		receiverCheckQuery := `SELECT receiver_id FROM messages WHERE id = $1`
		var owner uuid.UUID
		if checkErr := s.db.QueryRow(ctx, receiverCheckQuery, id).Scan(&owner); checkErr != nil {
			if errors.Is(checkErr, pgx.ErrNoRows) {
				return fmt.Errorf("cannot mark message %d as read: %w", id, store.ErrNotFound)
			}
			return fmt.Errorf("failed to check message receiver: %w", checkErr)
		}
		if owner != receiverID {
			return fmt.Errorf("user %s not authorized to mark message %d as read: %w", receiverID, id, store.ErrForbidden)
		}
		// Already read.
	}

	return nil
}

// MarkConversationRead marks all unread messages from sender to receiver as read.
func (s *pgMessageStore) MarkConversationRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	query := `UPDATE messages
	          SET is_read = TRUE
	          WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE`

	cmdTag, err := s.db.Exec(ctx, query, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation as read: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func scanMessages(rows pgx.Rows) ([]types.Message, error) {
	messages := []types.Message{}
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration for messages: %w", err)
	}

	return messages, nil
}
