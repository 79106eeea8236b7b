package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tirestore-backend/api/controllers"
	"github.com/angelmondragon/tirestore-backend/internal/cart"
	"github.com/angelmondragon/tirestore-backend/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubKV struct {
	counts map[string]int64
	data   map[string]string
}

func newStubKV() *stubKV {
	return &stubKV{counts: map[string]int64{}, data: map[string]string{}}
}

func (s *stubKV) RateLimitKey(scope string) string { return "rl:" + scope }

func (s *stubKV) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.counts[key]++
	return s.counts[key], nil
}

func (s *stubKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *stubKV) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	s.data[key] = str
	return true, nil
}

func (s *stubKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *stubKV) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type stubCart struct {
	lastOwner cart.Owner
}

func (s *stubCart) Get(_ context.Context, owner cart.Owner) (*cart.CartView, error) {
	s.lastOwner = owner
	return &cart.CartView{Lines: []cart.CartLineView{}}, nil
}

func (s *stubCart) AddItem(context.Context, cart.Owner, uuid.UUID, *int) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (s *stubCart) SetQuantity(context.Context, cart.Owner, uuid.UUID, int) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (s *stubCart) RemoveOne(context.Context, cart.Owner, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (s *stubCart) RemoveLine(context.Context, cart.Owner, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (s *stubCart) Clear(context.Context, cart.Owner) error { return nil }

func (s *stubCart) MergeAnonymous(context.Context, uuid.UUID, string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "tirestore", ExpirationMinutes: 30},
		AuthRateLimit: config.AuthRateLimitConfig{
			TrackWindow:  time.Minute,
			TrackIPLimit: 1,
		},
		Orders: config.OrdersConfig{SlipMaxBytes: 5 << 20},
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.1.1.1:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := NewRouter(testConfig(), nil, Services{}, Infra{
		Readiness: map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("down")}},
	})

	if rec := serve(h, http.MethodGet, "/health/live"); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/health/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready: expected 503 got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := NewRouter(testConfig(), nil, Services{}, Infra{Sessions: stubSessions{}})

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/admin/orders"},
		{http.MethodPut, "/api/v1/admin/settings"},
		{http.MethodPost, "/api/v1/auth/logout"},
	}
	for _, p := range paths {
		if rec := serve(h, p.method, p.path); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestCartRouteIssuesSession(t *testing.T) {
	carts := &stubCart{}
	h := NewRouter(testConfig(), nil, Services{Cart: carts}, Infra{Sessions: stubSessions{}})

	rec := serve(h, http.MethodGet, "/api/v1/cart")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	issued := rec.Header().Get("X-Cart-Session")
	if issued == "" {
		t.Fatal("expected X-Cart-Session header")
	}
	if carts.lastOwner.SessionID != issued || carts.lastOwner.IsAccount() {
		t.Fatalf("expected anonymous owner %s got %+v", issued, carts.lastOwner)
	}
}

func TestTrackRouteIsRateLimited(t *testing.T) {
	h := NewRouter(testConfig(), nil, Services{}, Infra{KV: newStubKV()})

	first := serve(h, http.MethodGet, "/api/v1/orders/track?number=TS260310-ABCDEF&phone=0812345678")
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first request should not be limited")
	}
	second := serve(h, http.MethodGet, "/api/v1/orders/track?number=TS260310-ABCDEF&phone=0812345678")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(testConfig(), nil, Services{}, Infra{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	rec := serve(h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}
