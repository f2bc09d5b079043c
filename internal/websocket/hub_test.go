package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staynest/staynest-backend/internal/registry"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/types"
)

func init() {
	logger.IsTest = true
	logger.InitLogger()
}

func testEvent(eventType types.EventType, recipientID string) types.Event {
	return types.Event{
		ID:          "evt-1",
		Type:        eventType,
		RecipientID: recipientID,
		Timestamp:   time.Now(),
	}
}

func TestHub_RegisterMultiTab(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	// Two tabs for the same user get distinct connections.
	c1 := hub.Register("user-1", nil)
	c2 := hub.Register("user-1", nil)

	assert.NotEqual(t, c1.ConnectionID, c2.ConnectionID)
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.ElementsMatch(t, []string{c1.ConnectionID, c2.ConnectionID}, reg.Lookup("user-1"))
}

func TestHub_Unregister(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	c1 := hub.Register("user-1", nil)
	c2 := hub.Register("user-1", nil)

	hub.Unregister(c1.ConnectionID)

	assert.Equal(t, 1, hub.ConnectionCount())
	assert.ElementsMatch(t, []string{c2.ConnectionID}, reg.Lookup("user-1"))
	assert.True(t, c1.IsClosed())
	assert.False(t, c2.IsClosed())

	// Unknown IDs are a no-op.
	hub.Unregister("no-such-conn")
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_Send(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	conn := hub.Register("user-1", nil)

	event := testEvent(types.EventTypeNotificationCreated, "user-1")
	require.NoError(t, hub.Send(conn.ConnectionID, event))

	select {
	case got := <-conn.SendChannel():
		assert.Equal(t, event.ID, got.ID)
	default:
		t.Fatal("expected event on send channel")
	}
}

func TestHub_Send_UnknownConnection(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	// A send racing a disconnect is not an error.
	err := hub.Send("gone", testEvent(types.EventTypeNotificationCreated, "user-1"))
	assert.NoError(t, err)
}

func TestHub_Send_BufferFull(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg, HubConfig{
		PingInterval: time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   1,
	})

	conn := hub.Register("user-1", nil)

	require.NoError(t, hub.Send(conn.ConnectionID, testEvent(types.EventTypeNotificationCreated, "user-1")))

	// Nothing drains the channel, so the second send is dropped with an error.
	err := hub.Send(conn.ConnectionID, testEvent(types.EventTypeNotificationCreated, "user-1"))
	assert.Error(t, err)
}

func TestHub_Send_ClosedConnection(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	conn := hub.Register("user-1", nil)
	hub.Unregister(conn.ConnectionID)

	// The hub no longer knows the connection; sends are a quiet no-op.
	assert.NoError(t, hub.Send(conn.ConnectionID, testEvent(types.EventTypeNotificationCreated, "user-1")))
}

func TestHub_Shutdown(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)

	c1 := hub.Register("user-1", nil)
	c2 := hub.Register("user-2", nil)

	require.NoError(t, hub.Shutdown(context.Background()))

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, reg.ConnectionCount())
	assert.True(t, c1.IsClosed())
	assert.True(t, c2.IsClosed())

	// Shutdown is idempotent.
	require.NoError(t, hub.Shutdown(context.Background()))
}
