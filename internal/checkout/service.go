package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/internal/cart"
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	"github.com/angelmondragon/tirestore-backend/internal/pricing"
	product "github.com/angelmondragon/tirestore-backend/internal/products"
	"github.com/angelmondragon/tirestore-backend/internal/settings"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	redisclient "github.com/angelmondragon/tirestore-backend/pkg/redis"
)

const (
	lockScope      = "checkout"
	maxNameLength  = 120
	maxPhoneLength = 32
	maxAddrLength  = 500
	maxNotesLength = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

type paymentInfo interface {
	PaymentInstructions(ctx context.Context) (*settings.PaymentInstructions, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, evt pubsub.Event) error
}

type placedCounter interface {
	IncPlaced()
}

// Service turns an account cart into a pending order.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	Tx            txRunner
	Carts         *cart.Repository
	Products      *product.Repository
	Orders        orders.Repository
	Locks         lockStore
	Settings      paymentInfo
	Publisher     eventPublisher
	Metrics       placedCounter
	Logger        *logger.Logger
	PaymentWindow time.Duration
	LockTTL       time.Duration
}

type service struct {
	tx            txRunner
	carts         *cart.Repository
	products      *product.Repository
	orders        orders.Repository
	locks         lockStore
	settings      paymentInfo
	publisher     eventPublisher
	metrics       placedCounter
	logg          *logger.Logger
	paymentWindow time.Duration
	lockTTL       time.Duration
	now           func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	svc := &service{
		tx:            params.Tx,
		carts:         params.Carts,
		products:      params.Products,
		orders:        params.Orders,
		locks:         params.Locks,
		settings:      params.Settings,
		publisher:     params.Publisher,
		metrics:       params.Metrics,
		logg:          params.Logger,
		paymentWindow: params.PaymentWindow,
		lockTTL:       params.LockTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if svc.publisher == nil {
		svc.publisher = pubsub.NoopPublisher{}
	}
	if svc.paymentWindow <= 0 {
		svc.paymentWindow = orders.DefaultPaymentWindow
	}
	return svc, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	lock, err := redisclient.NewLock(s.locks, s.locks.LockKey(lockScope, userID.String()), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build checkout lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.warn(ctx, "release checkout lock failed", err)
		}
	}()

	var (
		placed    *models.Order
		breakdown pricing.Breakdown
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		productRepo := s.products.WithTx(tx)
		owner := cart.ForUser(userID)

		stored, err := cartRepo.Lines(ctx, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(stored) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		ids := make([]uuid.UUID, 0, len(stored))
		for _, line := range stored {
			ids = append(ids, line.ProductID)
		}
		catalog, err := productRepo.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}

		lines, items, err := reprice(stored, catalog)
		if err != nil {
			return err
		}

		now := s.now()
		breakdown = pricing.ComputeBreakdown(lines)
		order := &models.Order{
			OrderNumber:     orders.NewOrderNumber(now),
			UserID:          userID,
			Status:          enums.OrderStatusPendingPayment,
			ShippingName:    input.ShippingName,
			ShippingPhone:   input.ShippingPhone,
			ShippingAddress: input.ShippingAddress,
			Notes:           input.Notes,
			Subtotal:        pricing.ComputeSubtotal(lines),
			SetsOf4:         breakdown.SetsOf4,
			Remainder:       breakdown.Remainder,
			ExpiresAt:       now.Add(s.paymentWindow),
			Items:           items,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		for _, line := range lines {
			if err := productRepo.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").WithDetails(map[string]string{
						"product_id": line.ProductID.String(),
					})
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
		}
		if err := cartRepo.Clear(ctx, owner); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncPlaced()
	}
	if err := s.publisher.Publish(ctx, pubsub.Event{
		Type:        pubsub.EventOrderCreated,
		OrderID:     placed.ID,
		OrderNumber: placed.OrderNumber,
		Status:      placed.Status.String(),
		OccurredAt:  s.now(),
	}); err != nil {
		s.warn(ctx, "publish order created failed", err)
	}

	result := &Result{Order: orders.MapOrder(*placed), Breakdown: breakdown}
	if s.settings != nil {
		instructions, err := s.settings.PaymentInstructions(ctx)
		if err != nil {
			s.warn(ctx, "load payment instructions failed", err)
		} else {
			result.PaymentInstructions = instructions
		}
	}
	return result, nil
}

// reprice rebuilds each cart line from the current catalog and snapshots it as
// an order item. Inactive, missing or understocked products abort checkout.
func reprice(stored []cart.StoredLine, catalog map[uuid.UUID]models.Product) ([]pricing.CartLine, []models.OrderItem, error) {
	lines := make([]pricing.CartLine, 0, len(stored))
	items := make([]models.OrderItem, 0, len(stored))
	unavailable := map[string]string{}

	for _, line := range stored {
		p, ok := catalog[line.ProductID]
		switch {
		case !ok || !p.IsActive:
			unavailable[line.ProductID.String()] = "no longer available"
			continue
		case line.Quantity > p.Stock:
			unavailable[line.ProductID.String()] = fmt.Sprintf("only %d in stock", p.Stock)
			continue
		}

		priced := pricing.CartLine{
			ProductID: p.ID,
			Brand:     p.Brand,
			UnitPrice: pricing.EffectiveUnitPrice(product.PromoInput(p)),
			Quantity:  line.Quantity,
		}
		lines = append(lines, priced)
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Brand:       p.Brand,
			UnitPrice:   priced.UnitPrice,
			Quantity:    priced.Quantity,
			LineTotal:   pricing.LineTotal(priced),
		})
	}

	if len(unavailable) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "some cart items cannot be ordered").WithDetails(unavailable)
	}
	if err := pricing.ValidateLines(lines); err != nil {
		return nil, nil, err
	}
	return lines, items, nil
}

func normalizeInput(in CheckoutInput) (CheckoutInput, error) {
	in.ShippingName = strings.TrimSpace(in.ShippingName)
	in.ShippingPhone = strings.TrimSpace(in.ShippingPhone)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)

	problems := map[string]string{}
	checkField(problems, "shipping_name", in.ShippingName, maxNameLength)
	checkField(problems, "shipping_phone", in.ShippingPhone, maxPhoneLength)
	checkField(problems, "shipping_address", in.ShippingAddress, maxAddrLength)
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		switch {
		case notes == "":
			in.Notes = nil
		case len(notes) > maxNotesLength:
			problems["notes"] = "too long"
		default:
			in.Notes = &notes
		}
	}
	if len(problems) > 0 {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping details").WithDetails(problems)
	}
	return in, nil
}

func checkField(problems map[string]string, name, value string, max int) {
	switch {
	case value == "":
		problems[name] = "required"
	case len(value) > max:
		problems[name] = "too long"
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
