// Package events publishes account lifecycle notifications.
//
// Publishing happens after the account change has been stored and is best
// effort: a broker outage is logged by the caller and never undoes or fails
// the change itself.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle event. It doubles as the routing key.
type Type string

const (
	AccountRegistered Type = "account.registered"
	AccountUpdated    Type = "account.updated"
	AccountDeleted    Type = "account.deleted"
)

// Event is the message body.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// Only set on AccountDeleted.
	ReviewsDeleted  int  `json:"reviews_deleted,omitempty"`
	FavoriteDeleted bool `json:"favorite_deleted,omitempty"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type requestIDKey struct{}

// WithRequestID stores the request id published alongside events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
