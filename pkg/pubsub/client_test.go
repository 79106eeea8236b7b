package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/google/uuid"
)

func TestEncodeEvent(t *testing.T) {
	orderID := uuid.New()
	msg, err := encodeEvent(Event{Type: EventOrderCreated, OrderID: orderID, OrderNumber: "TS-1", Status: "pending_payment"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.Attributes[attrEventType] != EventOrderCreated {
		t.Fatalf("unexpected event type attribute %q", msg.Attributes[attrEventType])
	}
	if msg.Attributes[attrOrderID] != orderID.String() {
		t.Fatalf("unexpected order id attribute %q", msg.Attributes[attrOrderID])
	}

	var decoded Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OrderNumber != "TS-1" || decoded.OccurredAt.IsZero() {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestEncodeEventRequiresType(t *testing.T) {
	if _, err := encodeEvent(Event{}); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestTopicResourceName(t *testing.T) {
	if got := topicResourceName("proj", "orders"); got != "projects/proj/topics/orders" {
		t.Fatalf("unexpected topic %q", got)
	}
	full := "projects/other/topics/orders"
	if got := topicResourceName("proj", full); got != full {
		t.Fatalf("expected full name preserved, got %q", got)
	}
}

func TestNewPublisherWithoutTopicIsNoop(t *testing.T) {
	pub, closeFn, err := NewPublisher(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := pub.(NoopPublisher); !ok {
		t.Fatalf("expected noop publisher, got %T", pub)
	}
	if err := pub.Publish(context.Background(), Event{Type: EventOrderCreated}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil); err == nil {
		t.Fatal("expected error without project id")
	}
}
