package orders

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/metrics"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	"github.com/angelmondragon/tirestore-backend/pkg/storage/gcs"
)

const (
	// DefaultPaymentWindow is how long a new order waits for a payment slip.
	DefaultPaymentWindow = 24 * time.Hour
	// DefaultSlipMaxBytes caps an uploaded payment slip.
	DefaultSlipMaxBytes int64 = 5 << 20
	defaultListLimit          = 10
)

// Actor identifies the admin performing a back-office change.
type Actor struct {
	UserID uuid.UUID
	Email  string
}

// StatusUpdateInput is an admin status change.
type StatusUpdateInput struct {
	Status         enums.OrderStatus
	TrackingNumber *string
}

// SlipReviewInput is an admin decision on a payment slip.
type SlipReviewInput struct {
	Approve bool
	Note    string
}

// Service exposes customer and back-office order operations.
type Service interface {
	ListMine(ctx context.Context, userID uuid.UUID, page pagination.Page) (*OrderList, error)
	GetMine(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Track(ctx context.Context, orderNumber, phone string) (*TrackingDTO, error)
	UploadPaymentSlip(ctx context.Context, userID, orderID uuid.UUID, file io.Reader) (*PaymentSlipDTO, error)
	AdminList(ctx context.Context, filter AdminFilter, params pagination.Params) (*AdminOrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input StatusUpdateInput, actor Actor) (*OrderDTO, error)
	ReviewPaymentSlip(ctx context.Context, slipID uuid.UUID, input SlipReviewInput, actor Actor) (*OrderDTO, error)
	DownloadPaymentSlip(ctx context.Context, slipID uuid.UUID) (*SlipDownload, error)
	ExpireIfDue(ctx context.Context, now time.Time) (int, error)
}

// ServiceParams bundles the dependencies of the order service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Objects       gcs.ObjectStore
	Ledger        ledgerRecorder
	Publisher     eventPublisher
	Metrics       orderMetrics
	Logger        *logger.Logger
	PaymentWindow time.Duration
	SlipMaxBytes  int64
	SlipPrefix    string
}

type service struct {
	repo          Repository
	tx            txRunner
	objects       gcs.ObjectStore
	ledger        ledgerRecorder
	publisher     eventPublisher
	metrics       orderMetrics
	logg          *logger.Logger
	paymentWindow time.Duration
	slipMaxBytes  int64
	slipPrefix    string
	now           func() time.Time
}

// NewService builds the order service. Ledger, publisher and metrics fall back
// to no-op implementations.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	svc := &service{
		repo:          params.Repo,
		tx:            params.Tx,
		objects:       params.Objects,
		ledger:        params.Ledger,
		publisher:     params.Publisher,
		metrics:       params.Metrics,
		logg:          params.Logger,
		paymentWindow: params.PaymentWindow,
		slipMaxBytes:  params.SlipMaxBytes,
		slipPrefix:    params.SlipPrefix,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if svc.ledger == nil {
		svc.ledger = ledger.NewDisabledService()
	}
	if svc.publisher == nil {
		svc.publisher = pubsub.NoopPublisher{}
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewOrderMetrics(nil)
	}
	if svc.paymentWindow <= 0 {
		svc.paymentWindow = DefaultPaymentWindow
	}
	if svc.slipMaxBytes <= 0 {
		svc.slipMaxBytes = DefaultSlipMaxBytes
	}
	return svc, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, page pagination.Page) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	s.sweep(ctx, ExpiryScope{UserID: userID})

	page = page.Normalize(defaultListLimit)
	rows, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), Meta: page.Meta(total)}
	for _, row := range rows {
		list.Orders = append(list.Orders, MapOrder(row))
	}
	return list, nil
}

func (s *service) GetMine(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := MapOrder(*order)
	return &dto, nil
}

// Track lets a guest look up an order by its number and the shipping phone.
// Any mismatch reads as not found.
func (s *service) Track(ctx context.Context, orderNumber, phone string) (*TrackingDTO, error) {
	number := strings.TrimSpace(orderNumber)
	digits := phoneDigits(phone)
	if number == "" || digits == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and phone are required")
	}

	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err, "order not found")
	}
	if phoneDigits(order.ShippingPhone) != digits {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentOverdue(s.now()) {
		if order, err = s.loadFresh(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	dto := mapTracking(*order)
	return &dto, nil
}

func (s *service) AdminList(ctx context.Context, filter AdminFilter, params pagination.Params) (*AdminOrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	s.sweep(ctx, ExpiryScope{})

	rows, next, err := s.repo.ListAdmin(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &AdminOrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		list.Orders = append(list.Orders, MapOrder(row))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := MapOrder(*order)
	return &dto, nil
}

// UpdateStatus applies an admin transition. Re-applying the current status is a no-op.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input StatusUpdateInput, actor Actor) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	s.sweep(ctx, ExpiryScope{OrderID: orderID})

	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return mapLookupError(err, "order not found")
		}
		if order.Status == input.Status {
			result = order
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return transitionConflict(order.Status, input.Status)
		}

		now := s.now()
		ok, err := repo.TransitionStatus(ctx, order.ID, order.Status, input.Status, s.transitionUpdates(input.Status, now, input.TrackingNumber))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		if input.Status == enums.OrderStatusCancelled && order.Status.HoldsStock() {
			if err := repo.RestoreStock(ctx, order.Items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
			}
		}

		if result, err = repo.FindByID(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterTransition(ctx, *result, actor)
	}
	dto := MapOrder(*result)
	return &dto, nil
}

// transitionUpdates returns the timestamp columns set when entering status.
func (s *service) transitionUpdates(status enums.OrderStatus, now time.Time, tracking *string) map[string]any {
	updates := map[string]any{}
	switch status {
	case enums.OrderStatusPaid:
		updates["paid_at"] = now
	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
		if tracking != nil && strings.TrimSpace(*tracking) != "" {
			updates["tracking_number"] = strings.TrimSpace(*tracking)
		}
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	case enums.OrderStatusPendingPayment:
		updates["expires_at"] = now.Add(s.paymentWindow)
	}
	return updates
}

// afterTransition runs the side effects of a committed status change. Failures
// are logged; the change itself already stands.
func (s *service) afterTransition(ctx context.Context, order models.Order, actor Actor) {
	s.metrics.IncTransition(order.Status.String())

	if order.Status == enums.OrderStatusPaid {
		paidAt := s.now()
		if order.PaidAt != nil {
			paidAt = *order.PaidAt
		}
		err := s.ledger.RecordOrderIncome(ctx, ledger.OrderIncomeInput{
			OrderNumber: order.OrderNumber,
			Amount:      order.Subtotal,
			PaidAt:      paidAt,
			RecordedBy:  actor.Email,
		})
		if err != nil {
			s.warn(ctx, order.ID, "ledger income entry failed", err)
		}
	}

	s.publish(ctx, pubsub.EventOrderStatusChanged, order)
}

func (s *service) publish(ctx context.Context, eventType string, order models.Order) {
	err := s.publisher.Publish(ctx, pubsub.Event{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status.String(),
		OccurredAt:  s.now(),
	})
	if err != nil {
		s.warn(ctx, order.ID, "publish order event failed", err)
	}
}

// loadFresh reads an order and expires it first when its payment window closed.
func (s *service) loadFresh(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, "order not found")
	}
	if !order.PaymentOverdue(s.now()) {
		return order, nil
	}
	s.sweep(ctx, ExpiryScope{OrderID: orderID})
	order, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, "order not found")
	}
	return order, nil
}

func (s *service) warn(ctx context.Context, orderID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), msg)
}

func transitionConflict(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").WithDetails(map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})
}

func mapLookupError(err error, notFound string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
