package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/peakscape/tours-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopPublisher drops every event. Used when NATS is not configured and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// Subjects
const (
	UserSignedUp   = "user.signed_up"
	BookingCreated = "booking.created"
	ReviewWritten  = "review.written"
)

type UserSignedUpEvent struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingCreatedEvent struct {
	BookingID int64     `json:"booking_id"`
	TourID    int64     `json:"tour_id"`
	UserID    int64     `json:"user_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewWrittenEvent struct {
	ReviewID int64   `json:"review_id"`
	TourID   int64   `json:"tour_id"`
	UserID   int64   `json:"user_id"`
	Rating   float64 `json:"rating"`
}
