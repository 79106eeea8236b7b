package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tirestore-backend/api/middleware"
	"github.com/angelmondragon/tirestore-backend/internal/cart"
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	productsvc "github.com/angelmondragon/tirestore-backend/internal/products"
	"github.com/angelmondragon/tirestore-backend/internal/users"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

type stubOrders struct {
	orders.Service
	uploaded     []byte
	statusInput  orders.StatusUpdateInput
	statusActor  orders.Actor
	download     *orders.SlipDownload
	uploadCalled bool
}

func (s *stubOrders) UploadPaymentSlip(_ context.Context, _, _ uuid.UUID, file io.Reader) (*orders.PaymentSlipDTO, error) {
	s.uploadCalled = true
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.uploaded = data
	return &orders.PaymentSlipDTO{ID: uuid.New()}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, input orders.StatusUpdateInput, actor orders.Actor) (*orders.OrderDTO, error) {
	s.statusInput = input
	s.statusActor = actor
	return &orders.OrderDTO{ID: id, Status: input.Status}, nil
}

func (s *stubOrders) DownloadPaymentSlip(context.Context, uuid.UUID) (*orders.SlipDownload, error) {
	if s.download == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment slip not found")
	}
	return s.download, nil
}

type stubProfiles struct{ email string }

func (s stubProfiles) GetProfile(_ context.Context, id uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: id, Email: s.email}, nil
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withUser(r *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithRole(middleware.WithUserID(r.Context(), userID.String()), role)
	return r.WithContext(ctx)
}

func multipartBody(t *testing.T, fields map[string]string, fileField string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, "slip.png")
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return payload.Error.Code
}

func TestOrderUploadSlipStreamsFilePart(t *testing.T) {
	svc := &stubOrders{}
	content := []byte("\x89PNG\r\n\x1a\nslip-bytes")
	body, contentType := multipartBody(t, map[string]string{"note": "paid"}, slipFormField, content)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/payment-slip", body)
	req.Header.Set("Content-Type", contentType)
	req = withParams(withUser(req, uuid.New(), "customer"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	OrderUploadSlip(svc, 1<<20, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(svc.uploaded, content) {
		t.Fatalf("expected file bytes forwarded, got %q", svc.uploaded)
	}
}

func TestOrderUploadSlipRequiresFilePart(t *testing.T) {
	svc := &stubOrders{}
	body, contentType := multipartBody(t, map[string]string{"note": "paid"}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/payment-slip", body)
	req.Header.Set("Content-Type", contentType)
	req = withParams(withUser(req, uuid.New(), "customer"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	OrderUploadSlip(svc, 1<<20, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.uploadCalled {
		t.Fatal("service should not be called without a file part")
	}
}

func TestOrderUploadSlipRejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/payment-slip", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = withParams(withUser(req, uuid.New(), "customer"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	OrderUploadSlip(&stubOrders{}, 1<<20, nil).ServeHTTP(rec, req)

	if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %s", code)
	}
}

func TestOrderUploadSlipBodyTooLarge(t *testing.T) {
	svc := &stubOrders{}
	content := bytes.Repeat([]byte("a"), multipartOverhead+64)
	body, contentType := multipartBody(t, nil, slipFormField, content)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/payment-slip", body)
	req.Header.Set("Content-Type", contentType)
	req = withParams(withUser(req, uuid.New(), "customer"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	OrderUploadSlip(svc, 16, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminOrderStatusResolvesActor(t *testing.T) {
	svc := &stubOrders{}
	adminID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/x/status", strings.NewReader(`{"status":"shipped","tracking_number":"TH123"}`))
	req = withParams(withUser(req, adminID, "admin"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminOrderStatus(svc, stubProfiles{email: "owner@tirestore.test"}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.statusInput.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped got %s", svc.statusInput.Status)
	}
	if svc.statusInput.TrackingNumber == nil || *svc.statusInput.TrackingNumber != "TH123" {
		t.Fatal("expected tracking number forwarded")
	}
	if svc.statusActor.UserID != adminID || svc.statusActor.Email != "owner@tirestore.test" {
		t.Fatalf("unexpected actor %+v", svc.statusActor)
	}
}

func TestAdminOrderStatusRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/x/status", strings.NewReader(`{"status":"teleported"}`))
	req = withParams(withUser(req, uuid.New(), "admin"), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminOrderStatus(&stubOrders{}, stubProfiles{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminSlipDownloadWritesHeaders(t *testing.T) {
	svc := &stubOrders{download: &orders.SlipDownload{
		Body:        io.NopCloser(strings.NewReader("%PDF-1.4")),
		ContentType: "application/pdf",
		Size:        8,
		FileName:    "slip.pdf",
	}}
	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/admin/payment-slips/x", nil), "slipId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminSlipDownload(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Length") != "8" {
		t.Fatalf("unexpected content length %q", rec.Header().Get("Content-Length"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "slip.pdf") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestAdminSlipDownloadNotFound(t *testing.T) {
	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/admin/payment-slips/x", nil), "slipId", uuid.NewString())
	rec := httptest.NewRecorder()

	AdminSlipDownload(&stubOrders{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestParseProductListInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?q=apollo&brand=Apollo&width=205&aspect_ratio=55&rim=16&season=summer&min_price=1000&max_price=5000&in_stock=true&sort=price_asc&page=2&limit=12", nil)

	input, err := parseProductListInput(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := input.Filter
	if f.Query != "apollo" || f.Brand != "Apollo" || !f.InStockOnly {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.Width == nil || *f.Width != 205 || f.AspectRatio == nil || *f.AspectRatio != 55 || f.RimDiameter == nil || *f.RimDiameter != 16 {
		t.Fatalf("unexpected size filter %+v", f)
	}
	if f.Season == nil || *f.Season != enums.TireSeasonSummer {
		t.Fatalf("unexpected season %v", f.Season)
	}
	if f.Sort != productsvc.SortPriceAsc {
		t.Fatalf("unexpected sort %s", f.Sort)
	}
	if input.Page.Page != 2 || input.Page.Limit != 12 {
		t.Fatalf("unexpected page %+v", input.Page)
	}
}

func TestParseProductListInputRejectsBadValues(t *testing.T) {
	for _, query := range []string{"sort=cheapest", "season=monsoon", "width=wide", "limit=500", "min_price=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?"+query, nil)
		if _, err := parseProductListInput(req); err == nil {
			t.Fatalf("%s: expected error", query)
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error got %v", query, err)
		}
	}
}

func TestCartOwnerPrefersAccount(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithCartSession(middleware.WithUserID(req.Context(), userID.String()), uuid.NewString()))

	owner, err := cartOwner(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.UserID != userID || owner.SessionID != "" {
		t.Fatalf("expected account owner, got %+v", owner)
	}

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	if _, err := cartOwner(anon); err == nil {
		t.Fatal("expected error without user or session")
	}
}

type stubCart struct {
	cart.Service
	addCalled bool
}

func (s *stubCart) AddItem(_ context.Context, _ cart.Owner, _ uuid.UUID, _ *int) (*cart.CartView, error) {
	s.addCalled = true
	return &cart.CartView{}, nil
}

func TestCartAddItemRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []string{"0", "-3"} {
		svc := &stubCart{}
		body := `{"product_id":"` + uuid.NewString() + `","quantity":` + qty + `}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
		req = req.WithContext(middleware.WithCartSession(req.Context(), uuid.NewString()))
		rec := httptest.NewRecorder()

		CartAddItem(svc, nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("qty %s: expected 400, got %d", qty, rec.Code)
		}
		if svc.addCalled {
			t.Fatalf("qty %s: service must not be called", qty)
		}
	}
}
