package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/brisaerp/order-engine/internal/kafka"
	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/redisx"
)

// Sink persists delivered notifications.
type Sink interface {
	InsertNotification(ctx context.Context, n Notification) error
}

// Service is the consumer side: it receives permission-addressed events,
// resolves recipients and writes one row per user.
type Service struct {
	Resolver *Resolver
	Sink     Sink
	Redis    *redis.Client
	Log      *zap.Logger
}

// HandleEvent is wired as the kafka consumer handler. A non-nil return
// leaves the offset uncommitted so the event is retried.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// Poison message: log and commit, retrying cannot fix it.
		s.Log.Error("undecodable notification event", zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventNotification {
		return nil
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	ev, err := kafkax.UnwrapPayload[Event](env.Payload)
	if err != nil {
		s.Log.Error("undecodable notification payload", zap.Error(err))
		return nil
	}

	userIDs, err := s.Resolver.Resolve(ctx, ev.TenantID, ev.Permission)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	now := time.Now().UTC()
	for _, uid := range userIDs {
		n := Notification{
			ID:        uuid.NewString(),
			TenantID:  ev.TenantID,
			UserID:    uid,
			Title:     ev.Title,
			Body:      ev.Body,
			Severity:  ev.Severity,
			Priority:  ev.Priority,
			CreatedAt: now,
		}
		if err := s.Sink.InsertNotification(ctx, n); err != nil {
			return fmt.Errorf("insert notification for %s: %w", uid, err)
		}
	}
	s.Log.Info("notification fanned out",
		zap.String("tenant_id", ev.TenantID),
		zap.String("permission", ev.Permission),
		zap.Int("recipients", len(userIDs)))
	return nil
}
