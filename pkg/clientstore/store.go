// Package clientstore is the client-side read model for notifications. It is
// the Go twin of the web client's notification store: a session keeps an
// in-memory snapshot ordered newest first, applies live pushes and read
// receipts as they arrive, and reconciles against server snapshots on
// reconnect.
package clientstore

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/types"
)

// Backend is the remote read-state API the store writes through to.
type Backend interface {
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
}

// Store holds one user's notification snapshot. All methods are safe for
// concurrent use. The unread count always equals the number of records with
// IsRead false.
type Store struct {
	mu          sync.RWMutex
	records     []types.Notification // newest first
	unreadCount int
	backend     Backend
	log         *zap.SugaredLogger
}

// New creates an empty store writing through to the given backend.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		log:     logger.GetLogger().Named("clientstore"),
	}
}

// ApplySnapshot replaces the local state with a server snapshot. The unread
// count is recomputed from the records' own flags, never carried over.
func (s *Store) ApplySnapshot(records []types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]types.Notification, len(records))
	copy(s.records, records)
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].CreatedAt.After(s.records[j].CreatedAt)
	})
	s.recomputeUnread()
}

// ApplyPush merges a pushed notification. New records are prepended and bump
// the unread count when unread; a record already present is a no-op, which
// makes duplicate pushes harmless.
func (s *Store) ApplyPush(n types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == n.ID {
			return
		}
	}

	s.records = append([]types.Notification{n}, s.records...)
	if !n.IsRead {
		s.unreadCount++
	}
}

// ApplyReadReceipt applies a read receipt pushed from another of the user's
// sessions. Receipts for unknown records are ignored.
func (s *Store) ApplyReadReceipt(receipt types.ReadReceiptPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt.All {
		s.markAllReadLocked()
		return
	}

	for i := range s.records {
		if s.records[i].ID == receipt.RecordID {
			if !s.records[i].IsRead {
				s.records[i].IsRead = true
				s.unreadCount--
			}
			return
		}
	}
}

// MarkRead optimistically marks a record read locally, then writes through to
// the backend. A backend failure is logged and the optimistic state kept; the
// next snapshot reconciles any divergence.
func (s *Store) MarkRead(ctx context.Context, id int64) {
	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].IsRead {
				s.records[i].IsRead = true
				s.unreadCount--
			}
			break
		}
	}
	s.mu.Unlock()

	if err := s.backend.MarkRead(ctx, id); err != nil {
		s.log.Warnw("Backend mark-read failed, keeping optimistic state",
			"recordID", id,
			"error", err)
	}
}

// MarkAllRead optimistically marks every record read locally, then writes
// through to the backend without rollback on failure.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	s.markAllReadLocked()
	s.mu.Unlock()

	if err := s.backend.MarkAllRead(ctx); err != nil {
		s.log.Warnw("Backend mark-all-read failed, keeping optimistic state",
			"error", err)
	}
}

// Records returns a copy of the current snapshot, newest first.
func (s *Store) Records() []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Notification, len(s.records))
	copy(out, s.records)
	return out
}

// UnreadCount returns the current number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) markAllReadLocked() {
	for i := range s.records {
		s.records[i].IsRead = true
	}
	s.unreadCount = 0
}

func (s *Store) recomputeUnread() {
	count := 0
	for i := range s.records {
		if !s.records[i].IsRead {
			count++
		}
	}
	s.unreadCount = count
}
