package events

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Event types
const (
	TypeCreated  = "created"
	TypeUpdated  = "updated"
	TypeDeleted  = "deleted"
	TypeImported = "imported"
	TypeApproved = "approved"
	TypeRejected = "rejected"
)

// Event describes a change to a CRM record
type Event struct {
	Type       string    `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   uint      `json:"entityId,omitempty"`
	Text       string    `json:"text"`
	UserID     uint      `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RoutingKey returns the topic routing key, e.g. "lead.created"
func (e Event) RoutingKey() string {
	return e.Entity + "." + e.Type
}

// Publisher delivers events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher
func (NopPublisher) Close() error { return nil }

const publisherKey = "events"

// Middleware stores the publisher in the echo context
func Middleware(p Publisher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(publisherKey, p)
			return next(c)
		}
	}
}

// FromEcho retrieves the publisher from the echo context
func FromEcho(c echo.Context) Publisher {
	p, ok := c.Get(publisherKey).(Publisher)
	if !ok {
		return NopPublisher{}
	}
	return p
}
