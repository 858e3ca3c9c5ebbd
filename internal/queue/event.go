// Package queue defines message payloads exchanged over the message
// broker, plus the publisher and the background consumer.
package queue

// NotificationCreatedEvent is published after a notification row has
// been committed. It carries enough for downstream consumers to log or
// deliver without querying the primary database. EventID is a UUID
// assigned at publish time so consumers can deduplicate redeliveries.
type NotificationCreatedEvent struct {
	EventID        string `json:"event_id"`
	NotificationID uint64 `json:"notification_id"`
	UserID         uint64 `json:"user_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	ActionURL      string `json:"action_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}
