// Package notifier delivers announcement notifications, best-effort.
package notifier

import (
	"context"
	"time"
)

// Subject codes understood by delivery sinks.
const SubjectAnnounced = "announced"

// Notification is the structured unit handed to a delivery sink. The sink
// owns rendering; this layer only constructs and submits.
type Notification struct {
	App           string
	Time          time.Time
	ObjectType    string
	ObjectID      string
	Subject       string
	SubjectParams []string
	Link          string

	UserID string
	ChatID int64
}

// Sink is the delivery collaborator. Delivery is fire-and-forget,
// at-least-once; a sink error never aborts anything upstream.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}
