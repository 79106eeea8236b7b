package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/tirestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
)

// maxPeekBytes bounds how much of a JSON body is buffered to find the email.
const maxPeekBytes = 64 << 10

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitPolicy is a fixed-window budget for one route. PerEmail reads the
// "email" field of a JSON body; leave it zero on routes without one.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p RateLimitPolicy) key(scope, subject string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return name + ":" + scope + ":" + subject
}

func (p RateLimitPolicy) retryAfter() string {
	secs := int(p.Window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RateLimit rejects requests over budget with 429 RATE_LIMITED and a
// Retry-After header. A nil store or inactive policy disables it.
func RateLimit(policy RateLimitPolicy, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					if !checkBudget(ctx, w, logg, store, policy, "ip", ip, policy.PerIP) {
						return
					}
				}
			}

			if policy.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
				if err != nil {
					responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := emailFromJSON(body); email != "" {
					if !checkBudget(ctx, w, logg, store, policy, "email", fingerprint(email), policy.PerEmail) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkBudget counts the hit and writes the 429 when the budget is spent.
// Counter failures surface as DEPENDENCY_UNAVAILABLE rather than failing open.
func checkBudget(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store counterStore, policy RateLimitPolicy, scope, subject string, limit int) bool {
	hits, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.key(scope, subject)), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
		return false
	}
	if hits <= int64(limit) {
		return true
	}

	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":  policy.Name,
			"scope":   scope,
			"subject": subject,
			"hits":    hits,
			"limit":   limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", policy.retryAfter())
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, try again later"))
	return false
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailFromJSON(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

// fingerprint keeps raw emails out of Redis keys and logs.
func fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:12])
}
