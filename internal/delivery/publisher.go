// Package delivery pushes freshly persisted records to all live connections
// of their target user. Push delivery is a best-effort optimization layered
// on top of the durable pull-based fetch: losing a push is never an error
// the triggering domain action can see.
package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/types"
)

// ConnectionResolver resolves a user's live connection IDs.
// Satisfied by *registry.ConnectionRegistry.
type ConnectionResolver interface {
	Lookup(userID string) []string
}

// ConnectionSender sends one event to one live connection.
// Satisfied by *websocket.Hub.
type ConnectionSender interface {
	Send(connID string, event types.Event) error
}

// Publisher is the interface services use to push events.
type Publisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// metrics holds Prometheus metrics for push delivery.
type metrics struct {
	pushCount *prometheus.CounterVec
	dropCount prometheus.Counter
}

var (
	metricsInstance *metrics
	metricsOnce     sync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

// newMetrics initializes and registers Prometheus metrics using a singleton
// pattern to avoid double registration in tests.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			pushCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "push_delivery_total",
				Help: "Total number of push deliveries by event type and outcome",
			}, []string{"type", "outcome"}),
			dropCount: promauto.With(defaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "push_delivery_offline_total",
				Help: "Total number of publishes with no live connections",
			}),
		}
	})
	return metricsInstance
}

// resetMetricsForTesting resets the metrics singleton for test isolation.
func resetMetricsForTesting() {
	reg := prometheus.NewRegistry()
	defaultRegistry = reg
	metricsInstance = nil
	metricsOnce = sync.Once{}
}

// PushPublisher fans events out to every live connection of the recipient.
type PushPublisher struct {
	resolver ConnectionResolver
	sender   ConnectionSender
	log      *zap.SugaredLogger
	metrics  *metrics
}

var _ Publisher = (*PushPublisher)(nil)

// NewPushPublisher creates a publisher over the given registry and hub.
func NewPushPublisher(resolver ConnectionResolver, sender ConnectionSender) *PushPublisher {
	return &PushPublisher{
		resolver: resolver,
		sender:   sender,
		log:      logger.GetLogger().Named("delivery"),
		metrics:  newMetrics(),
	}
}

// Publish pushes the event to all live connections of its recipient.
// Zero live connections is a successful no-op: the record is already durable
// and the client picks it up on its next reconciliation pull. A failed send
// to one connection never blocks or fails delivery to the others; transport
// failures are logged and swallowed.
func (p *PushPublisher) Publish(ctx context.Context, event types.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	connIDs := p.resolver.Lookup(event.RecipientID)
	if len(connIDs) == 0 {
		p.metrics.dropCount.Inc()
		p.log.Debugw("No live connections for recipient, skipping push",
			"recipientID", event.RecipientID,
			"eventType", event.Type)
		return nil
	}

	for _, connID := range connIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.sender.Send(connID, event); err != nil {
			p.metrics.pushCount.WithLabelValues(string(event.Type), "failed").Inc()
			p.log.Warnw("Failed to push event to connection",
				"connectionID", connID,
				"recipientID", event.RecipientID,
				"eventType", event.Type,
				"error", err)
			continue
		}
		p.metrics.pushCount.WithLabelValues(string(event.Type), "delivered").Inc()
	}

	return nil
}
