// Package notify delivers fire-and-forget alerts. Delivery failures never
// fail the operation that raised the alert.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/util"
)

// Notifier delivers a notification to its recipients.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// ============================================================================
// STORE
// ============================================================================

// StoreSink writes one notifications row per recipient.
type StoreSink struct {
	repo  *repository.NotificationRepository
	ids   *util.IDGenerator
	clock util.Clock
}

// NewStoreSink creates a sink over the notifications table.
func NewStoreSink(repo *repository.NotificationRepository, clock util.Clock) *StoreSink {
	return &StoreSink{repo: repo, ids: util.NewIDGenerator(), clock: clock}
}

// Send stores a copy for every recipient.
func (s *StoreSink) Send(ctx context.Context, n models.Notification) error {
	now := s.clock.Now()
	var errs []error
	for _, userID := range n.UserIDs {
		err := s.repo.Insert(ctx, &models.StoredNotification{
			ID:            s.ids.NewID(),
			UserID:        userID,
			Title:         n.Title,
			Message:       n.Message,
			Severity:      n.Severity,
			ReferenceType: n.ReferenceType,
			ReferenceID:   n.ReferenceID,
			CreatedAt:     now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// ============================================================================
// PUB/SUB
// ============================================================================

// PubSubSink publishes each notification as one JSON message.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink connects to projectID and publishes to topic, creating the
// topic when it does not exist yet.
func NewPubSubSink(ctx context.Context, projectID, topic string) (*PubSubSink, error) {
	if projectID == "" || topic == "" {
		return nil, errors.New("pubsub project and topic are required")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	t := client.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("checking topic %q: %w", topic, err)
	}
	if !ok {
		if t, err = client.CreateTopic(ctx, topic); err != nil {
			client.Close()
			return nil, fmt.Errorf("creating topic %q: %w", topic, err)
		}
	}

	return &PubSubSink{client: client, topic: t}, nil
}

// Send publishes n and waits for the server to acknowledge it.
func (s *PubSubSink) Send(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"severity":       string(n.Severity),
			"reference_type": n.ReferenceType,
			"reference_id":   n.ReferenceID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}

// ============================================================================
// FANOUT
// ============================================================================

// Fanout sends to every sink and joins their errors.
type Fanout []Notifier

// Send delivers n to all sinks.
func (f Fanout) Send(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

// New builds the Notifier selected by cfg. The returned close function
// flushes and closes any Pub/Sub client.
func New(ctx context.Context, cfg config.NotificationsConfig, db *sql.DB, clock util.Clock) (Notifier, func() error, error) {
	store := NewStoreSink(repository.NewNotificationRepository(db), clock)
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.NotificationBackendPubSub, config.NotificationBackendBoth:
		ps, err := NewPubSubSink(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Backend == config.NotificationBackendPubSub {
			return ps, ps.Close, nil
		}
		return Fanout{store, ps}, ps.Close, nil
	default:
		return store, noop, nil
	}
}
