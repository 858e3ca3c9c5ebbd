// Package notify creates user notifications. The row insert happens
// inside the caller's transaction so it commits or rolls back with the
// transition that produced it; the broker publish happens only after
// commit, best-effort, so a broker outage never fails a user request.
package notify

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/queue"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// Notifier creates notification rows and publishes created events.
type Notifier struct {
	repo    *repository.NotificationRepo
	publish func(context.Context, queue.NotificationCreatedEvent) error
}

// New constructs a Notifier backed by the RabbitMQ publisher.
func New(repo *repository.NotificationRepo) *Notifier {
	return &Notifier{repo: repo, publish: queue.PublishNotificationCreated}
}

// NewWithPublisher constructs a Notifier with an injected publish
// function. Tests use this to capture events without a broker.
func NewWithPublisher(repo *repository.NotificationRepo, publish func(context.Context, queue.NotificationCreatedEvent) error) *Notifier {
	return &Notifier{repo: repo, publish: publish}
}

// Batch accumulates notifications created inside one transaction.
// Flush is only called after the transaction commits; on rollback the
// batch is simply dropped, so no event escapes for a row that never
// existed.
type Batch struct {
	n       *Notifier
	created []model.Notification
}

// Begin starts an empty batch for one unit of work.
func (n *Notifier) Begin() *Batch {
	return &Batch{n: n}
}

// CreateTx inserts the notification in the caller's transaction and
// remembers it for post-commit publishing.
func (b *Batch) CreateTx(ctx context.Context, tx *sql.Tx, notification model.Notification) error {
	if err := b.n.repo.CreateTx(ctx, tx, &notification); err != nil {
		return err
	}
	b.created = append(b.created, notification)
	return nil
}

// Flush publishes one event per created notification. Publish failures
// are logged and swallowed; the committed rows are the durable record
// and the consumer log is best-effort.
func (b *Batch) Flush(ctx context.Context) {
	for _, notification := range b.created {
		ev := queue.NotificationCreatedEvent{
			EventID:        uuid.NewString(),
			NotificationID: notification.ID,
			UserID:         notification.UserID,
			Type:           notification.Type,
			Title:          notification.Title,
			Message:        notification.Message,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if notification.ActionURL != nil {
			ev.ActionURL = *notification.ActionURL
		}
		if err := b.n.publish(ctx, ev); err != nil {
			log.Printf("notify: publish notification %d failed: %v", notification.ID, err)
		}
	}
}
