// Package registry tracks which live connections belong to which user.
// The mapping is purely in-memory and rebuilt from scratch on every process
// restart, since the connections themselves die with the process.
package registry

import "sync"

// ConnectionRegistry maps a user ID to the set of currently open connection
// IDs (a user may have multiple open tabs/devices). A reverse index from
// connection ID to user ID makes Unregister O(1) instead of a scan over all
// users. The registry provides its own synchronization; callers never lock.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{} // userID -> set of connectionIDs
	owner  map[string]string              // connectionID -> userID
}

// New creates an empty connection registry. A single instance is constructed
// by the composition root and injected wherever lookups are needed.
func New() *ConnectionRegistry {
	return &ConnectionRegistry{
		byUser: make(map[string]map[string]struct{}),
		owner:  make(map[string]string),
	}
}

// Register adds connID to the set for userID, creating the set if absent.
// Registering the same pair twice is idempotent.
func (r *ConnectionRegistry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	r.owner[connID] = userID
}

// Unregister removes connID from whichever user owns it. If that was the
// user's last connection, the user entry is removed entirely to bound memory.
// Unknown connection IDs are a no-op.
func (r *ConnectionRegistry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[connID]
	if !ok {
		return
	}
	delete(r.owner, connID)

	if conns, ok := r.byUser[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// Lookup returns the current live connection IDs for a user, empty if none
// are online. The returned slice is a copy and safe to use after concurrent
// register/unregister calls.
func (r *ConnectionRegistry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	return ids
}

// Owner returns the user ID that registered connID, if any.
func (r *ConnectionRegistry) Owner(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owner[connID]
	return userID, ok
}

// UserCount returns the number of users with at least one live connection.
func (r *ConnectionRegistry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// ConnectionCount returns the total number of live connections.
func (r *ConnectionRegistry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}
