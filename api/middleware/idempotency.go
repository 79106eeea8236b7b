package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/tirestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tirestore-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// DefaultIdempotencyTTL covers admin actions and slip uploads.
	DefaultIdempotencyTTL = 24 * time.Hour
	// CheckoutIdempotencyTTL outlives the payment window so a late retry
	// never opens a second order.
	CheckoutIdempotencyTTL = 7 * 24 * time.Hour

	// reservationTTL bounds how long an in-flight marker blocks retries if the
	// process dies before the handler finishes.
	reservationTTL = 2 * time.Minute
)

// IdempotencyPolicy tunes one route. HeaderOnly skips the body fingerprint,
// which multipart uploads need because each retry carries a fresh boundary.
type IdempotencyPolicy struct {
	TTL        time.Duration
	HeaderOnly bool
}

type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency requires an Idempotency-Key header and replays the first
// non-5xx response for the same key, caller and path. A concurrent duplicate
// is rejected while the first request is still running.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, policy IdempotencyPolicy) func(http.Handler) http.Handler {
	if policy.TTL <= 0 {
		policy.TTL = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			fingerprint := ""
			if !policy.HeaderOnly {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				sum := sha256.Sum256(body)
				fingerprint = hex.EncodeToString(sum[:])
			}

			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reserved, err := reserve(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !reserved {
				replayExisting(ctx, logg, w, store, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				// release so the caller can retry with the same key
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			final := storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				Fingerprint: fingerprint,
			}
			if err := persist(context.WithoutCancel(ctx), store, key, final, policy.TTL); err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (bool, error) {
	payload, err := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(payload), reservationTTL)
}

// persist swaps the in-flight marker for the final response.
func persist(ctx context.Context, store pkgredis.IdempotencyStore, key string, resp storedResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := store.Del(ctx, key); err != nil {
		return err
	}
	_, err = store.SetNX(ctx, key, string(payload), ttl)
	return err
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNil(err) {
			// marker expired between SetNX and Get
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request is still being processed, retry shortly"))
			return
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if stored.InFlight {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request is still being processed, retry shortly"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(stored.Body)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
