package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

type memoryCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{hits: map[string]int64{}}
}

func (m *memoryCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key], nil
}

func (m *memoryCounter) RateLimitKey(scope string) string { return "rl:" + scope }

func okHandlerFunc(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func loginRequest(email, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = remote
	return req
}

func TestRateLimitBodyStillReadableDownstream(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 2, PerEmail: 2}
	handler := RateLimit(policy, newMemoryCounter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"email":"somchai@example.com"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("somchai@example.com", "1.2.3.4:5678"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitEmailBudgetIgnoresCase(t *testing.T) {
	policy := RateLimitPolicy{Name: "login", Window: time.Minute, PerEmail: 2}
	handler := RateLimit(policy, newMemoryCounter(), nil)(http.HandlerFunc(okHandlerFunc))

	emails := []string{"Buyer@Example.com", "buyer@example.com", " BUYER@example.com"}
	var last *httptest.ResponseRecorder
	for i, email := range emails {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, loginRequest(email, "10.0.0."+string(rune('1'+i))+":80"))
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
}

func TestRateLimitPerIP(t *testing.T) {
	policy := RateLimitPolicy{Name: "register", Window: time.Minute, PerIP: 1}
	handler := RateLimit(policy, newMemoryCounter(), nil)(http.HandlerFunc(okHandlerFunc))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, loginRequest("a@example.com", "5.6.7.8:1234"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, loginRequest("b@example.com", "5.6.7.8:4321"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimitRetryAfterAndForwardedKey(t *testing.T) {
	counter := newMemoryCounter()
	policy := RateLimitPolicy{Name: "track", Window: 90 * time.Second, PerIP: 1}
	handler := RateLimit(policy, counter, nil)(http.HandlerFunc(okHandlerFunc))

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track?number=TS260310-ABCDEF&phone=0812345678", nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "90", last.Header().Get("Retry-After"))
	assert.Contains(t, counter.hits, "rl:track:ip:9.9.9.9")
}

func TestRateLimitInactivePolicyPassesThrough(t *testing.T) {
	calls := 0
	handler := RateLimit(RateLimitPolicy{Name: "login", PerIP: 1, PerEmail: 1}, newMemoryCounter(), nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }),
	)
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), loginRequest("x@example.com", "1.1.1.1:1"))
	}
	assert.Equal(t, 3, calls)
}

func TestRateLimitCounterFailureIsDependencyError(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("redis down")
	handler := RateLimit(RateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 5}, counter, nil)(http.HandlerFunc(okHandlerFunc))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("x@example.com", "1.1.1.1:1"))
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeDependency).HTTPStatus, rec.Code)
}
