package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staynest/staynest-backend/internal/delivery"
	"github.com/staynest/staynest-backend/types"
)

// pushViaPool builds a push event and submits its delivery to the worker pool.
// Marshal failures, a full queue and downstream publish failures are logged
// and swallowed so the triggering domain action never sees them.
func pushViaPool(pool *WorkerPool, publisher delivery.Publisher, log *zap.SugaredLogger, name string, eventType types.EventType, recipientID string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Errorw("Failed to marshal push payload",
			"job", name,
			"error", err)
		return
	}

	event := types.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		RecipientID: recipientID,
		Timestamp:   time.Now().UTC(),
		Payload:     raw,
	}

	pool.Submit(Job{
		Name: name,
		Execute: func(ctx context.Context) error {
			return publisher.Publish(ctx, event)
		},
	})
}
