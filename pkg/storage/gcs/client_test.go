package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCSConfig{}, config.GCPConfig{}, nil)
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestSlipKey(t *testing.T) {
	orderID := uuid.MustParse("6f1c1a57-8f39-4c8c-9d0d-0d9a1e3d6b11")
	slipID := uuid.MustParse("0b5b8e86-5a3b-4c43-9c4a-2f3f17a4e0aa")

	got := SlipKey("/payment-slips/", orderID, slipID, ".png")
	want := "payment-slips/6f1c1a57-8f39-4c8c-9d0d-0d9a1e3d6b11/0b5b8e86-5a3b-4c43-9c4a-2f3f17a4e0aa.png"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}

	if got := SlipKey("", orderID, slipID, ".pdf"); got != orderID.String()+"/"+slipID.String()+".pdf" {
		t.Fatalf("unexpected key without prefix %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	wrapped := fmt.Errorf("download: %w", &googleapi.Error{Code: http.StatusNotFound})
	if !IsNotFound(wrapped) {
		t.Fatal("expected wrapped 404 to be not found")
	}
	if IsNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a not-found")
	}
	if IsNotFound(errors.New("boom")) {
		t.Fatal("plain error is not a not-found")
	}
}

func TestNilClientMethods(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
	if err := c.Delete(context.Background(), "k"); err == nil {
		t.Fatal("expected delete error on nil client")
	}
	if c.Bucket() != "" || c.Prefix() != "" {
		t.Fatal("expected empty bucket and prefix")
	}
}
