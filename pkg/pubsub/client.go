package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentSlipUpload  = "payment_slip.uploaded"

	attrEventType = "event_type"
	attrOrderID   = "order_id"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Event is an order lifecycle notification.
type Event struct {
	Type        string    `json:"type"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Client publishes order events to a single Pub/Sub topic.
type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
}

// NewPublisher returns a Pub/Sub backed publisher, or a no-op one when no topic is configured.
func NewPublisher(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (Publisher, func() error, error) {
	if strings.TrimSpace(cfg.OrdersTopic) == "" {
		if logg != nil {
			logg.Info(ctx, "pubsub orders topic not configured; events disabled")
		}
		return NoopPublisher{}, func() error { return nil }, nil
	}
	client, err := NewClient(ctx, gcp, cfg, logg)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	topic := topicResourceName(gcp.ProjectID, cfg.OrdersTopic)
	c := &Client{
		client:    psClient,
		publisher: psClient.Publisher(topic),
		topic:     topic,
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// Publish waits for the server ack so callers can log failures.
func (c *Client) Publish(ctx context.Context, evt Event) error {
	if c == nil || c.publisher == nil {
		return errors.New("pubsub client not initialized")
	}
	msg, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	if _, err := c.publisher.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

func encodeEvent(evt Event) (*pubsub.Message, error) {
	if strings.TrimSpace(evt.Type) == "" {
		return nil, errors.New("event type is required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			attrEventType: evt.Type,
			attrOrderID:   evt.OrderID.String(),
		},
	}, nil
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", strings.TrimSpace(projectID), n)
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
