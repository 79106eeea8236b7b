package orders

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	"github.com/angelmondragon/tirestore-backend/pkg/storage/gcs"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objects: map[string][]byte{}} }

func (f *fakeObjects) Upload(_ context.Context, key, contentType string, body io.Reader) (*gcs.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return &gcs.Object{Key: key, ContentType: contentType, Size: int64(len(data))}, nil
}

func (f *fakeObjects) Open(_ context.Context, key string) (io.ReadCloser, *gcs.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, nil, errors.New("object missing")
	}
	return io.NopCloser(bytes.NewReader(data)), &gcs.Object{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeLedger struct {
	entries []ledger.OrderIncomeInput
}

func (f *fakeLedger) RecordOrderIncome(_ context.Context, input ledger.OrderIncomeInput) error {
	f.entries = append(f.entries, input)
	return nil
}

type fakePublisher struct {
	events []pubsub.Event
}

func (f *fakePublisher) Publish(_ context.Context, evt pubsub.Event) error {
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) types() []string {
	out := make([]string, 0, len(f.events))
	for _, evt := range f.events {
		out = append(out, evt.Type+":"+evt.Status)
	}
	return out
}

// failingSlipRepo fails slip inserts so the upload cleanup path runs.
type failingSlipRepo struct {
	Repository
}

func (r failingSlipRepo) WithTx(tx *gorm.DB) Repository {
	return failingSlipRepo{Repository: r.Repository.WithTx(tx)}
}

func (r failingSlipRepo) CreateSlip(context.Context, *models.PaymentSlip) error {
	return errors.New("insert failed")
}

type harness struct {
	conn      *gorm.DB
	repo      Repository
	svc       *service
	objects   *fakeObjects
	ledger    *fakeLedger
	publisher *fakePublisher
	now       time.Time
	user      models.User
	product   models.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{
		conn:      conn,
		repo:      NewRepository(conn),
		objects:   newFakeObjects(),
		ledger:    &fakeLedger{},
		publisher: &fakePublisher{},
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	h.svc = h.build(t, h.repo)

	h.user = models.User{Email: "buyer@example.com", PasswordHash: "x", FullName: "Buyer", Role: enums.UserRoleCustomer}
	require.NoError(t, conn.Create(&h.user).Error)
	h.product = models.Product{
		SKU: "AP-205", Name: "Apollo Alnac", Brand: "Apollo", Width: 205, AspectRatio: 55, RimDiameter: 16,
		Season: enums.TireSeasonAllSeason, Price: decimal.NewFromInt(2000), Stock: 6, IsActive: true,
	}
	require.NoError(t, conn.Create(&h.product).Error)
	return h
}

func (h *harness) build(t *testing.T, repo Repository) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:       repo,
		Tx:         db.FromGorm(h.conn),
		Objects:    h.objects,
		Ledger:     h.ledger,
		Publisher:  h.publisher,
		SlipPrefix: "payment-slips",
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return h.now }
	return impl
}

func (h *harness) placeOrder(t *testing.T, status enums.OrderStatus, expiresAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		OrderNumber:     NewOrderNumber(h.now),
		UserID:          h.user.ID,
		Status:          status,
		ShippingName:    "Buyer",
		ShippingPhone:   "081-234-5678",
		ShippingAddress: "1 Rama IV Rd, Bangkok",
		Subtotal:        decimal.NewFromInt(7000),
		SetsOf4:         1,
		ExpiresAt:       expiresAt,
		CreatedAt:       h.now,
		Items: []models.OrderItem{{
			ProductID:   h.product.ID,
			ProductName: h.product.Name,
			Brand:       h.product.Brand,
			UnitPrice:   h.product.Price,
			Quantity:    4,
			LineTotal:   decimal.NewFromInt(7000),
		}},
	}
	require.NoError(t, h.repo.Create(context.Background(), &order))
	return order
}

func (h *harness) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.conn.First(&p, "id = ?", h.product.ID).Error)
	return p.Stock
}

func (h *harness) status(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	order, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func TestNewOrderNumberFormat(t *testing.T) {
	number := NewOrderNumber(time.Date(2026, 1, 18, 23, 0, 0, 0, time.UTC))
	require.True(t, strings.HasPrefix(number, "TS260118-"), number)
	require.Len(t, number, len("TS260118-")+6)
	require.Equal(t, strings.ToUpper(number), number)
}

func TestExpireIfDueRestoresStockOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	due := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(-time.Minute))
	fresh := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))

	n, err := h.svc.ExpireIfDue(ctx, h.now)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, enums.OrderStatusExpired, h.status(t, due.ID))
	require.Equal(t, enums.OrderStatusPendingPayment, h.status(t, fresh.ID))
	require.Equal(t, 10, h.stock(t))

	n, err = h.svc.ExpireIfDue(ctx, h.now)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 10, h.stock(t), "stock is restored only once")
	require.Equal(t, []string{"order.status_changed:expired"}, h.publisher.types())
}

func TestGetMineExpiresOverdueOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(-time.Second))

	dto, err := h.svc.GetMine(ctx, h.user.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusExpired, dto.Status)
	require.NotNil(t, dto.ExpiredAt)
	require.Equal(t, 4, dto.ItemCount)

	_, err = h.svc.GetMine(ctx, uuid.New(), order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListMineRunsExpiry(t *testing.T) {
	h := newHarness(t)
	h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(-time.Hour))
	h.placeOrder(t, enums.OrderStatusPaid, h.now.Add(-time.Hour))

	list, err := h.svc.ListMine(context.Background(), h.user.ID, pagination.Page{Page: 1})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	require.EqualValues(t, 2, list.Meta.Total)

	statuses := map[enums.OrderStatus]bool{}
	for _, o := range list.Orders {
		statuses[o.Status] = true
	}
	require.True(t, statuses[enums.OrderStatusExpired])
	require.True(t, statuses[enums.OrderStatusPaid])
}

func TestTrackMatchesPhoneDigits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, enums.OrderStatusPaid, h.now.Add(time.Hour))

	got, err := h.svc.Track(ctx, strings.ToLower(order.OrderNumber), "0812345678")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, got.Status)
	require.Equal(t, 4, got.ItemCount)

	_, err = h.svc.Track(ctx, order.OrderNumber, "0899999999")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Track(ctx, "", "081")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUploadPaymentSlip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))

	slip, err := h.svc.UploadPaymentSlip(ctx, h.user.ID, order.ID, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Equal(t, "image/png", slip.ContentType)
	require.Equal(t, enums.PaymentSlipStatusSubmitted, slip.Status)
	require.Equal(t, enums.OrderStatusPaymentReview, h.status(t, order.ID))

	key := gcs.SlipKey("payment-slips", order.ID, slip.ID, ".png")
	require.Contains(t, h.objects.objects, key)
	require.Equal(t, []string{"payment_slip.uploaded:payment_review"}, h.publisher.types())

	_, err = h.svc.UploadPaymentSlip(ctx, h.user.ID, order.ID, bytes.NewReader(pngHeader))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "order already in review")
}

func TestUploadPaymentSlipRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))

	_, err := h.svc.UploadPaymentSlip(ctx, h.user.ID, order.ID, strings.NewReader("plain text, not a slip"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	h.svc.slipMaxBytes = 8
	_, err = h.svc.UploadPaymentSlip(ctx, h.user.ID, order.ID, bytes.NewReader(pngHeader))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTooLarge))
	h.svc.slipMaxBytes = DefaultSlipMaxBytes

	_, err = h.svc.UploadPaymentSlip(ctx, uuid.New(), order.ID, bytes.NewReader(pngHeader))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	expired := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(-time.Minute))
	_, err = h.svc.UploadPaymentSlip(ctx, h.user.ID, expired.ID, bytes.NewReader(pngHeader))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Empty(t, h.objects.objects)
}

func TestUploadPaymentSlipDeletesObjectWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))
	svc := h.build(t, failingSlipRepo{Repository: h.repo})

	_, err := svc.UploadPaymentSlip(context.Background(), h.user.ID, order.ID, bytes.NewReader(pngHeader))
	require.Error(t, err)
	require.Empty(t, h.objects.objects)
	require.Len(t, h.objects.deleted, 1)
	require.Equal(t, enums.OrderStatusPendingPayment, h.status(t, order.ID))
}

func TestUpdateStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Email: "admin@example.com"}
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))

	dto, err := h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: enums.OrderStatusPaid}, actor)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, dto.Status)
	require.NotNil(t, dto.PaidAt)
	require.Len(t, h.ledger.entries, 1)
	require.Equal(t, order.OrderNumber, h.ledger.entries[0].OrderNumber)
	require.True(t, decimal.NewFromInt(7000).Equal(h.ledger.entries[0].Amount))
	require.Equal(t, "admin@example.com", h.ledger.entries[0].RecordedBy)

	_, err = h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: enums.OrderStatusPaid}, actor)
	require.NoError(t, err, "same status is a no-op")
	require.Len(t, h.ledger.entries, 1)

	_, err = h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: enums.OrderStatusPendingPayment}, actor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	tracking := " TH123 "
	dto, err = h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: enums.OrderStatusShipped, TrackingNumber: &tracking}, actor)
	require.NoError(t, err)
	require.NotNil(t, dto.TrackingNumber)
	require.Equal(t, "TH123", *dto.TrackingNumber)

	_, err = h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: enums.OrderStatusCancelled}, actor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.UpdateStatus(ctx, order.ID, StatusUpdateInput{Status: "bogus"}, actor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.Equal(t, []string{"order.status_changed:paid", "order.status_changed:shipped"}, h.publisher.types())
}

func TestCancelRestocks(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.OrderStatusPaid, h.now.Add(time.Hour))

	dto, err := h.svc.UpdateStatus(context.Background(), order.ID, StatusUpdateInput{Status: enums.OrderStatusCancelled}, Actor{})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, dto.Status)
	require.NotNil(t, dto.CancelledAt)
	require.Equal(t, 10, h.stock(t))
}

func TestReviewPaymentSlip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Email: "admin@example.com"}

	rejected := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))
	slip, err := h.svc.UploadPaymentSlip(ctx, h.user.ID, rejected.ID, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	h.now = h.now.Add(30 * time.Minute)
	dto, err := h.svc.ReviewPaymentSlip(ctx, slip.ID, SlipReviewInput{Approve: false, Note: "blurry"}, actor)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPendingPayment, dto.Status)
	require.True(t, dto.ExpiresAt.Equal(h.now.Add(DefaultPaymentWindow)), "rejection reopens the window")
	require.Equal(t, enums.PaymentSlipStatusRejected, dto.Slips[0].Status)
	require.Empty(t, h.ledger.entries)

	_, err = h.svc.ReviewPaymentSlip(ctx, slip.ID, SlipReviewInput{Approve: true}, actor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "slip already reviewed")

	second, err := h.svc.UploadPaymentSlip(ctx, h.user.ID, rejected.ID, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	dto, err = h.svc.ReviewPaymentSlip(ctx, second.ID, SlipReviewInput{Approve: true}, actor)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, dto.Status)
	require.Len(t, h.ledger.entries, 1)

	_, err = h.svc.ReviewPaymentSlip(ctx, uuid.New(), SlipReviewInput{Approve: true}, actor)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDownloadPaymentSlip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, enums.OrderStatusPendingPayment, h.now.Add(time.Hour))
	slip, err := h.svc.UploadPaymentSlip(ctx, h.user.ID, order.ID, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	download, err := h.svc.DownloadPaymentSlip(ctx, slip.ID)
	require.NoError(t, err)
	defer download.Body.Close()
	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	require.Equal(t, pngHeader, body)
	require.Equal(t, slip.ID.String()+".png", download.FileName)
	require.Equal(t, "image/png", download.ContentType)
}

func TestAdminListCursor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := h.now
	for i := 0; i < 3; i++ {
		h.now = base.Add(time.Duration(i) * time.Minute)
		h.placeOrder(t, enums.OrderStatusPaid, base.Add(time.Hour))
	}
	h.now = base.Add(time.Hour)

	first, err := h.svc.AdminList(ctx, AdminFilter{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt))

	second, err := h.svc.AdminList(ctx, AdminFilter{}, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	require.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(first.Orders, second.Orders...) {
		require.False(t, seen[o.ID], "order listed twice")
		seen[o.ID] = true
	}

	status := enums.OrderStatusCancelled
	none, err := h.svc.AdminList(ctx, AdminFilter{Status: &status}, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, none.Orders)

	_, err = h.svc.AdminList(ctx, AdminFilter{}, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
